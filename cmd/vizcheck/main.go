// Command vizcheck captures screenshots of a running page, aggregates
// gameplay notes over time, and asks a vision model whether what the page
// shows matches expectations.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vizcheck/internal/capture"
	"vizcheck/internal/config"
	"vizcheck/internal/judge"
	"vizcheck/internal/logging"
	"vizcheck/internal/persona"
	"vizcheck/internal/respcache"
	"vizcheck/internal/temporal"
	"vizcheck/internal/validate"
)

var (
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vizcheck",
	Short: "Visual regression testing with VLM judges and temporal note analysis",
	Long: `vizcheck drives a real browser against a running page, records
timestamped gameplay notes, aggregates them into time windows with
coherence scoring, and sends screenshots plus that temporal context to a
vision-language model for judgment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var (
	validatePrompt     string
	validateScreenshot string
	validateNoCache    bool
	validateJSON       bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [url]",
	Short: "Capture a screenshot (or use an existing one) and judge it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		path := validateScreenshot
		var agg *temporal.Result
		if path == "" {
			if len(args) == 0 {
				return fmt.Errorf("provide a URL to capture or --screenshot with an existing image")
			}
			session, err := capture.NewSession(ctx, cfg.Capture, logging.Component(logger, "capture"))
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.Navigate(args[0]); err != nil {
				return err
			}
			shot, err := session.CaptureScreenshot("validate")
			if err != nil {
				return err
			}
			path = shot.Path

			res, err := temporal.Aggregate(session.Notes(), aggregationOptions())
			if err != nil {
				return err
			}
			agg = res
		}

		v, cache, err := newValidator(cmd)
		if err != nil {
			return err
		}
		if cache != nil {
			defer cache.Close()
		}

		result, err := v.ValidateScreenshot(ctx, path, validate.Options{
			Prompt:    validatePrompt,
			Temporal:  agg,
			SkipCache: validateNoCache,
		})
		if err != nil {
			return err
		}
		return printResult(result, validateJSON)
	},
}

var (
	personaSteps int
	personaPause time.Duration
	personaJSON  bool
)

var personaCmd = &cobra.Command{
	Use:   "persona [url]",
	Short: "Walk the page as each configured persona and merge their verdicts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(cfg.Personas) == 0 {
			return fmt.Errorf("no personas configured; add a personas section to %s", cfgPath)
		}

		session, err := capture.NewSession(ctx, cfg.Capture, logging.Component(logger, "capture"))
		if err != nil {
			return err
		}
		defer session.Close()

		proc, err := temporal.NewProcessor(processorConfig(), logging.Component(logger, "temporal"))
		if err != nil {
			return err
		}
		defer proc.Wait()

		steps := observeSteps(personaSteps, personaPause)
		exp, err := persona.Experience(ctx, session, proc, cfg.Personas[0], args[0], steps)
		if err != nil {
			return err
		}
		if len(exp.Screenshots) == 0 {
			return fmt.Errorf("persona run produced no screenshots")
		}
		last := exp.Screenshots[len(exp.Screenshots)-1]

		v, cache, err := newValidator(cmd)
		if err != nil {
			return err
		}
		if cache != nil {
			defer cache.Close()
		}

		var agg *temporal.Result
		if exp.Aggregated != nil {
			agg = exp.Aggregated.Aggregated
		}
		merged, err := persona.EvaluatePerspectives(ctx, v, last.Path, cfg.Personas, agg)
		if err != nil {
			return err
		}

		if personaJSON {
			return printJSON(merged)
		}
		if merged.AggregatedScore != nil {
			fmt.Printf("Aggregated score: %.1f/10 across %d personas\n", *merged.AggregatedScore, len(merged.Perspectives))
		}
		for _, issue := range merged.AggregatedIssues {
			fmt.Printf("  - %s\n", issue)
		}
		for _, p := range merged.Perspectives {
			if p.Evaluation.Score != nil {
				fmt.Printf("%s: %.1f/10\n", p.Persona.Name, *p.Evaluation.Score)
			} else {
				fmt.Printf("%s: no score\n", p.Persona.Name)
			}
		}
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the judge response cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := respcache.Open(cfg.Cache.Path, cfg.Cache.TTL())
		if err != nil {
			return err
		}
		defer cache.Close()

		n, err := cache.Prune()
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d expired entries\n", n)
		return nil
	},
}

// newValidator builds the judge from config (falling back to environment
// detection) and pairs it with the response cache when enabled.
func newValidator(cmd *cobra.Command) (*validate.Validator, *respcache.Cache, error) {
	pc := judge.ProviderConfig{
		Provider: cfg.Judge.Provider,
		APIKey:   cfg.Judge.APIKey,
		Model:    cfg.Judge.Model,
		BaseURL:  cfg.Judge.BaseURL,
	}
	if pc.APIKey == "" {
		detected, err := judge.DetectProvider()
		if err != nil {
			return nil, nil, err
		}
		detected.Model = pc.Model
		pc = *detected
	}

	j, err := judge.NewJudge(cmd.Context(), pc)
	if err != nil {
		return nil, nil, err
	}

	var cache *respcache.Cache
	if cfg.Cache.Enabled {
		cache, err = respcache.Open(cfg.Cache.Path, cfg.Cache.TTL())
		if err != nil {
			logger.Warn("Response cache unavailable, continuing without it", zap.Error(err))
			cache = nil
		}
	}
	return validate.New(j, cache, logging.Component(logger, "validate")), cache, nil
}

func aggregationOptions() temporal.Options {
	return temporal.Options{
		WindowSize:  cfg.Temporal.WindowSize(),
		DecayFactor: cfg.Temporal.DecayFactor,
	}
}

func processorConfig() temporal.ProcessorConfig {
	pc := temporal.DefaultProcessorConfig()
	pc.CacheMaxAge = cfg.Temporal.CacheMaxAge()
	pc.Aggregation = aggregationOptions()
	pc.Prune.MaxNotes = cfg.Temporal.MaxNotes
	return pc
}

// observeSteps builds a passive script: dwell on the page and note what is
// visible at each beat.
func observeSteps(count int, pause time.Duration) []persona.Step {
	if count <= 0 {
		count = 3
	}
	steps := make([]persona.Step, count)
	for i := range steps {
		steps[i] = persona.Step{
			Name:  fmt.Sprintf("observe-%d", i+1),
			Pause: pause,
		}
	}
	return steps
}

func printResult(r *validate.Result, asJSON bool) error {
	if asJSON {
		return printJSON(r)
	}
	if r.Score != nil {
		fmt.Printf("Score: %.1f/10 (%s %s)\n", *r.Score, r.Provider, r.Model)
	} else {
		fmt.Printf("No score returned (%s %s)\n", r.Provider, r.Model)
	}
	if r.Cached {
		fmt.Println("(served from cache)")
	}
	for _, issue := range r.Issues {
		fmt.Printf("  - %s\n", issue)
	}
	if r.Reasoning != "" {
		fmt.Printf("Reasoning: %s\n", r.Reasoning)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "vizcheck.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	validateCmd.Flags().StringVarP(&validatePrompt, "prompt", "p", "", "judging prompt (default built in)")
	validateCmd.Flags().StringVar(&validateScreenshot, "screenshot", "", "judge an existing image instead of capturing")
	validateCmd.Flags().BoolVar(&validateNoCache, "no-cache", false, "bypass the response cache")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "emit JSON")

	personaCmd.Flags().IntVar(&personaSteps, "steps", 3, "number of observation beats")
	personaCmd.Flags().DurationVar(&personaPause, "pause", 2*time.Second, "dwell time per beat")
	personaCmd.Flags().BoolVar(&personaJSON, "json", false, "emit JSON")

	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(validateCmd, personaCmd, cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stacktide/enhancer/pkg/enhancer"
	"github.com/stacktide/enhancer/pkg/logging"
)

var (
	verbosity int
	cacheSize int

	rootCmd = &cobra.Command{
		Use:   "enhance",
		Short: "Apply stack trace enhancement rules to events",
		Long: `enhance parses a stack trace rule set and applies it to event payloads:
frame modifications (in-app overrides, categories) and grouping metadata
(contributing, prefix and sentinel flags).`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().IntVar(&cacheSize, "cache-size", 1000, "Compiled pattern cache capacity (0 disables caching)")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(versionCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check RULES_FILE",
	Short: "Validate a rule set without applying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := loadRules(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%d rules ok\n", len(rules.Rules()))
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply RULES_FILE EVENT_FILE",
	Short: "Apply a rule set to an event and print the result",
	Long: `apply reads a rule set and a JSON event, runs both enhancement passes,
and prints the modified frames, the per-frame grouping components, and the
resulting stacktrace state as JSON.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := loadRules(args[0])
		if err != nil {
			return err
		}

		event, err := loadEvent(args[1])
		if err != nil {
			return err
		}

		defer logging.LogDuration(time.Now(), "apply")

		frames := make([]enhancer.MatchFrame, len(event.Frames))
		for i, raw := range event.Frames {
			frames[i] = enhancer.CreateMatchFrame(raw, event.Platform)
		}

		exc := event.exceptionData()
		frames = rules.ApplyModificationsToFrames(frames, exc)

		components := make([]enhancer.Component, len(frames))
		state := rules.AssembleStacktraceComponent(frames, exc, components)

		return printResult(frames, components, state)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("enhance version 0.1.0")
	},
}

// event is the JSON shape the apply command consumes: the event platform,
// optional exception metadata, and the raw frames oldest-first.
type event struct {
	Platform  string           `json:"platform"`
	Exception *eventException  `json:"exception"`
	Frames    []map[string]any `json:"frames"`
}

type eventException struct {
	Type      *string `json:"type"`
	Value     *string `json:"value"`
	Mechanism *string `json:"mechanism"`
}

func (e *event) exceptionData() *enhancer.ExceptionData {
	if e.Exception == nil {
		return nil
	}
	return &enhancer.ExceptionData{
		Type:      e.Exception.Type,
		Value:     e.Exception.Value,
		Mechanism: e.Exception.Mechanism,
	}
}

func loadRules(path string) (*enhancer.Enhancements, error) {
	logger := logging.GetLogger("rules")

	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}

	cache := enhancer.NewPatternCache(cacheSize)
	rules, err := enhancer.Parse(string(text), cache)
	if err != nil {
		return nil, err
	}

	stats := cache.Stats()
	logger.Debug().
		Int("rules", len(rules.Rules())).
		Uint64("patternHits", stats.Hits).
		Uint64("patternMisses", stats.Misses).
		Msg("Rule set loaded")
	return rules, nil
}

func loadEvent(path string) (*event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading event: %w", err)
	}
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("parsing event: %w", err)
	}
	return &ev, nil
}

type frameResult struct {
	Function  *string `json:"function,omitempty"`
	Module    *string `json:"module,omitempty"`
	Package   *string `json:"package,omitempty"`
	Path      *string `json:"path,omitempty"`
	Category  *string `json:"category,omitempty"`
	InApp     *bool   `json:"in_app,omitempty"`
	OrigInApp *bool   `json:"orig_in_app,omitempty"`

	Contributes string `json:"contributes"`
	Prefix      bool   `json:"is_prefix_frame,omitempty"`
	Sentinel    bool   `json:"is_sentinel_frame,omitempty"`
	Hint        string `json:"hint,omitempty"`
}

type applyResult struct {
	Frames []frameResult `json:"frames"`

	MaxFrames        int  `json:"max_frames,omitempty"`
	MinFrames        int  `json:"min_frames,omitempty"`
	InvertStacktrace bool `json:"invert_stacktrace,omitempty"`
}

func printResult(frames []enhancer.MatchFrame, components []enhancer.Component, state enhancer.StacktraceState) error {
	result := applyResult{
		Frames:           make([]frameResult, len(frames)),
		MaxFrames:        state.MaxFrames,
		MinFrames:        state.MinFrames,
		InvertStacktrace: state.InvertStacktrace,
	}
	for i := range frames {
		result.Frames[i] = frameResult{
			Function:    frames[i].Function,
			Module:      frames[i].Module,
			Package:     frames[i].Package,
			Path:        frames[i].Path,
			Category:    frames[i].Category,
			InApp:       frames[i].InApp,
			OrigInApp:   frames[i].OrigInApp,
			Contributes: components[i].Contributes.String(),
			Prefix:      components[i].IsPrefixFrame,
			Sentinel:    components[i].IsSentinelFrame,
			Hint:        components[i].Hint,
		}
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

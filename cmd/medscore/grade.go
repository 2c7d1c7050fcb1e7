package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"medscore/internal/config"
	"medscore/internal/llm"
	"medscore/internal/logging"
	"medscore/internal/scoring"
)

type transcriptTurn struct {
	Role    string `yaml:"role" json:"role"`
	Content string `yaml:"content" json:"content"`
}

func newGradeCmd() *cobra.Command {
	var (
		rubricPath     string
		transcriptPath string
		configPath     string
		asJSON         bool
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a transcript file against a rubric file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			level := logging.LevelWarn
			if verbose {
				level = logging.LevelDebug
			}
			logger := logging.NewWriterLogger(os.Stderr, "medscore", level)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			source, err := loadYAML(rubricPath)
			if err != nil {
				return fmt.Errorf("load rubric: %w", err)
			}
			turns, err := loadTranscript(transcriptPath)
			if err != nil {
				return fmt.Errorf("load transcript: %w", err)
			}

			judge, err := buildJudge(cfg, logger)
			if err != nil {
				return err
			}

			engine, err := scoring.NewEngine(source, judge,
				scoring.WithDefaultThreshold(cfg.Engine.DefaultThreshold),
				scoring.WithContextWindow(cfg.Engine.ContextWindow),
				scoring.WithConcurrency(cfg.Engine.Concurrency),
				scoring.WithSkipAsked(cfg.Engine.SkipAsked),
				scoring.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			for i, turn := range turns {
				if err := engine.RecordTurn(turn.Content, scoring.Role(turn.Role)); err != nil {
					return fmt.Errorf("transcript turn %d: %w", i, err)
				}
			}

			if err := engine.Recompute(ctx); err != nil {
				return err
			}

			report := engine.Report()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			printReport(cmd, report, engine.Suggestions())
			return nil
		},
	}

	cmd.Flags().StringVar(&rubricPath, "rubric", "", "rubric YAML file (item list or label map)")
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "transcript YAML file (list of {role, content})")
	cmd.Flags().StringVar(&configPath, "config", "", "optional config file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the full report as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	_ = cmd.MarkFlagRequired("rubric")
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}

// buildJudge wires the semantic judge when a provider is configured and falls
// back to the deterministic heuristic judge otherwise.
func buildJudge(cfg *config.Config, logger logging.Logger) (scoring.Judge, error) {
	if cfg.Judge.APIKey == "" {
		logger.Warn("no judge API key configured, grading with the heuristic fallback judge")
		return scoring.FallbackJudge{}, nil
	}
	client, err := llm.NewOpenAIClient(llm.Config{
		BaseURL: cfg.Judge.BaseURL,
		APIKey:  cfg.Judge.APIKey,
		Model:   cfg.Judge.Model,
		Timeout: cfg.Judge.Timeout(),
	}, logger)
	if err != nil {
		return nil, err
	}
	return scoring.NewSemanticJudge(client,
		scoring.WithJudgeLogger(logger),
		scoring.WithJudgmentCacheSize(cfg.Judge.CacheSize),
	), nil
}

func loadYAML(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func loadTranscript(path string) ([]transcriptTurn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var turns []transcriptTurn
	if err := yaml.Unmarshal(data, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

func printReport(cmd *cobra.Command, report scoring.Report, suggestions []string) {
	out := cmd.OutOrStdout()
	summary := report.Summary

	fmt.Fprintf(out, "Recommended score: %.2f (%s)\n", summary.RecommendedScore, summary.Evaluation.Level)
	fmt.Fprintf(out, "Perfect: %.2f%%  Partial: %.2f%%  Asked: %d/%d\n",
		summary.PerfectScore, summary.PartialScore, summary.AskedQuestions, summary.TotalQuestions)
	fmt.Fprintln(out, summary.Evaluation.Comment)

	if len(summary.CategoryStats) > 0 {
		fmt.Fprintln(out, "\nBy category:")
		for _, cat := range sortedCategories(summary) {
			stats := summary.CategoryStats[cat]
			fmt.Fprintf(out, "  %-16s asked %d/%d  completion %.1f%%  avg match %.1f\n",
				cat, stats.AskedQuestions, stats.TotalQuestions, stats.PartialCompletionRate, stats.AvgMatchScore)
		}
	}

	printSection(out, "Fully matched", report.FullyMatched)
	printSection(out, "Partially matched", report.PartiallyMatched)
	printSection(out, "Missed", report.Missed)

	if len(suggestions) > 0 {
		fmt.Fprintln(out, "\nSuggestions:")
		for _, s := range suggestions {
			fmt.Fprintln(out, s)
		}
	}
}

func printSection(out io.Writer, title string, items []scoring.RubricItemView) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(out, "  - %s (best %.1f, weight %.1f)\n", item.Question, item.BestMatchScore, item.Weight)
	}
}

func sortedCategories(summary scoring.ScoreSummary) []string {
	cats := make([]string, 0, len(summary.CategoryStats))
	for cat := range summary.CategoryStats {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}

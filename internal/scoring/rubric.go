package scoring

import (
	"fmt"
	"sort"

	medscoreerrors "medscore/internal/errors"
)

// DefaultThreshold is the match threshold applied when a rubric item does not
// specify its own.
const DefaultThreshold = 60.0

// partialFloor is the minimum best-match score at which an unmatched item
// still earns weighted partial credit.
const partialFloor = 30.0

// recentJudgmentWindow bounds how many judgments are retained per item in
// rendered views. Internally the full history is kept for best-score
// tracking.
const recentJudgmentWindow = 3

// RubricConfig describes one gradable hidden information point.
type RubricConfig struct {
	Question  string   `json:"question" yaml:"question"`
	Answer    string   `json:"answer,omitempty" yaml:"answer,omitempty"`
	Weight    float64  `json:"weight" yaml:"weight"`
	Category  string   `json:"category" yaml:"category"`
	Keywords  []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Threshold float64  `json:"threshold" yaml:"threshold"`
}

// RubricItem holds one rubric point's configuration plus its mutable
// evaluation state. Items are created when the engine is constructed and live
// as long as the engine; only observe and reset mutate them.
type RubricItem struct {
	cfg RubricConfig

	judgments      []Judgment
	bestMatchScore float64
	isAsked        bool
	askedTurns     []string
}

func newRubricItem(cfg RubricConfig) *RubricItem {
	return &RubricItem{cfg: cfg}
}

// Config returns the item's immutable configuration.
func (it *RubricItem) Config() RubricConfig {
	return it.cfg
}

// BestMatchScore returns the highest overall score observed since the last
// reset. It is monotonically non-decreasing between resets.
func (it *RubricItem) BestMatchScore() float64 {
	return it.bestMatchScore
}

// IsAsked reports whether any judgment satisfied the match rule.
func (it *RubricItem) IsAsked() bool {
	return it.isAsked
}

// observe merges one judgment into the item's state. The best score merges
// via max, so observation order cannot decrease it. The asked flag requires
// both the threshold and the judge's own verdict; the conjunction is a
// deliberate policy choice (the stricter of the two signals wins) rather than
// a redundancy.
func (it *RubricItem) observe(j Judgment) {
	it.judgments = append(it.judgments, j)

	if j.OverallScore > it.bestMatchScore {
		it.bestMatchScore = j.OverallScore
	}

	if j.OverallScore >= it.cfg.Threshold && j.IsMatch && !it.isAsked {
		it.isAsked = true
		it.askedTurns = append(it.askedTurns, j.TurnText)
	}
}

// reset clears all mutable state back to construction defaults. Used
// exclusively at the start of a recompute.
func (it *RubricItem) reset() {
	it.judgments = nil
	it.bestMatchScore = 0
	it.isAsked = false
	it.askedTurns = nil
}

// partialScore awards weight-scaled credit for the current best match. The
// result is always in [0, weight].
func (it *RubricItem) partialScore() float64 {
	switch {
	case it.bestMatchScore >= it.cfg.Threshold:
		return it.cfg.Weight
	case it.bestMatchScore >= partialFloor:
		return it.cfg.Weight * (it.bestMatchScore / 100)
	default:
		return 0
	}
}

// recentJudgments returns up to the last three judgments, oldest first.
func (it *RubricItem) recentJudgments() []Judgment {
	start := len(it.judgments) - recentJudgmentWindow
	if start < 0 {
		start = 0
	}
	out := make([]Judgment, len(it.judgments)-start)
	copy(out, it.judgments[start:])
	return out
}

// ParseRubricSource normalizes a rubric source into item configurations. The
// source is either a sequence of item objects or plain question strings, or a
// label-to-value mapping auto-expanded into one derived item per label.
func ParseRubricSource(source any, defaultThreshold float64) ([]RubricConfig, error) {
	if defaultThreshold <= 0 {
		defaultThreshold = DefaultThreshold
	}

	switch src := source.(type) {
	case nil:
		return nil, nil
	case []RubricConfig:
		out := make([]RubricConfig, len(src))
		for i, cfg := range src {
			normalized, err := normalizeConfig(cfg, defaultThreshold, i)
			if err != nil {
				return nil, err
			}
			out[i] = normalized
		}
		return out, nil
	case []string:
		out := make([]RubricConfig, 0, len(src))
		for i, q := range src {
			cfg, err := normalizeConfig(RubricConfig{Question: q}, defaultThreshold, i)
			if err != nil {
				return nil, err
			}
			out = append(out, cfg)
		}
		return out, nil
	case []any:
		out := make([]RubricConfig, 0, len(src))
		for i, elem := range src {
			cfg, err := parseItem(elem, defaultThreshold, i)
			if err != nil {
				return nil, err
			}
			out = append(out, cfg)
		}
		return out, nil
	case map[string]any:
		return expandLabelMap(src, defaultThreshold), nil
	case map[string]string:
		m := make(map[string]any, len(src))
		for k, v := range src {
			m[k] = v
		}
		return expandLabelMap(m, defaultThreshold), nil
	default:
		return nil, medscoreerrors.NewConfigError("rubric", fmt.Sprintf("source must be a list or a mapping, got %T", source))
	}
}

func parseItem(elem any, defaultThreshold float64, idx int) (RubricConfig, error) {
	switch v := elem.(type) {
	case string:
		return normalizeConfig(RubricConfig{Question: v}, defaultThreshold, idx)
	case RubricConfig:
		return normalizeConfig(v, defaultThreshold, idx)
	case map[string]any:
		cfg := RubricConfig{
			Question: stringField(v, "question"),
			Answer:   stringField(v, "answer"),
			Category: stringField(v, "category"),
		}
		if w, ok := numberField(v, "weight"); ok {
			if w <= 0 {
				return RubricConfig{}, medscoreerrors.NewConfigError(
					fmt.Sprintf("rubric[%d].weight", idx),
					fmt.Sprintf("weight must be positive, got %v", w),
				)
			}
			cfg.Weight = w
		}
		if th, ok := numberField(v, "threshold"); ok {
			if th < 0 || th > 100 {
				return RubricConfig{}, medscoreerrors.NewConfigError(
					fmt.Sprintf("rubric[%d].threshold", idx),
					fmt.Sprintf("threshold must be within 0-100, got %v", th),
				)
			}
			cfg.Threshold = th
		}
		if raw, ok := v["keywords"]; ok {
			cfg.Keywords = stringSlice(raw)
		}
		return normalizeConfig(cfg, defaultThreshold, idx)
	default:
		return RubricConfig{}, medscoreerrors.NewConfigError(
			fmt.Sprintf("rubric[%d]", idx),
			fmt.Sprintf("item must be an object or string, got %T", elem),
		)
	}
}

func normalizeConfig(cfg RubricConfig, defaultThreshold float64, idx int) (RubricConfig, error) {
	if cfg.Weight == 0 {
		cfg.Weight = 1.0
	}
	if cfg.Weight <= 0 {
		return RubricConfig{}, medscoreerrors.NewConfigError(
			fmt.Sprintf("rubric[%d].weight", idx),
			fmt.Sprintf("weight must be positive, got %v", cfg.Weight),
		)
	}
	if cfg.Category == "" {
		cfg.Category = "general"
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.Threshold < 0 || cfg.Threshold > 100 {
		return RubricConfig{}, medscoreerrors.NewConfigError(
			fmt.Sprintf("rubric[%d].threshold", idx),
			fmt.Sprintf("threshold must be within 0-100, got %v", cfg.Threshold),
		)
	}
	return cfg, nil
}

// expandLabelMap turns a label-to-value mapping into one item per label.
// Labels are sorted so engine construction is deterministic.
func expandLabelMap(src map[string]any, defaultThreshold float64) []RubricConfig {
	labels := make([]string, 0, len(src))
	for label := range src {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make([]RubricConfig, 0, len(labels))
	for _, label := range labels {
		out = append(out, RubricConfig{
			Question:  fmt.Sprintf("what is %s?", label),
			Answer:    fmt.Sprintf("%v", src[label]),
			Weight:    1.0,
			Category:  "derived",
			Threshold: defaultThreshold,
		})
	}
	return out
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func numberField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func stringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			if s, ok := elem.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

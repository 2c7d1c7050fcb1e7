package scoring

import "math"

// ScoringMethod labels the strategy that produced a summary.
const ScoringMethod = "intelligent_partial_matching"

// Evaluation is the qualitative verdict attached to a summary.
type Evaluation struct {
	Level   string `json:"level"`
	Comment string `json:"comment"`
}

// CategoryStats aggregates rubric completion within one category.
type CategoryStats struct {
	TotalQuestions int     `json:"total_questions"`
	AskedQuestions int     `json:"asked_questions"`
	TotalWeight    float64 `json:"total_weight"`
	AskedWeight    float64 `json:"asked_weight"`
	PartialWeight  float64 `json:"partial_weight"`

	PerfectCompletionRate float64 `json:"perfect_completion_rate"`
	PartialCompletionRate float64 `json:"partial_completion_rate"`
	AvgMatchScore         float64 `json:"avg_match_score"`
}

// ScoreSummary is the aggregated grading result for one transcript.
type ScoreSummary struct {
	PerfectScore     float64 `json:"perfect_score"`
	PartialScore     float64 `json:"partial_score"`
	RecommendedScore float64 `json:"recommended_score"`

	AskedQuestions int `json:"asked_questions"`
	TotalQuestions int `json:"total_questions"`

	PerfectWeight float64 `json:"perfect_weight"`
	PartialWeight float64 `json:"partial_weight"`
	TotalWeight   float64 `json:"total_weight"`

	CategoryStats map[string]CategoryStats `json:"category_stats"`
	Evaluation    Evaluation               `json:"evaluation"`
	ScoringMethod string                   `json:"scoring_method"`
}

// Summary computes the score summary from current rubric state. Percentages
// use binary credit (perfect) and weighted partial credit (partial); the
// recommended score is the partial percentage. An empty rubric cannot be
// failed: zero total weight yields vacuous full credit.
func (e *Engine) Summary() ScoreSummary {
	totalWeight := 0.0
	for _, item := range e.items {
		totalWeight += item.cfg.Weight
	}

	summary := ScoreSummary{
		TotalQuestions: len(e.items),
		TotalWeight:    totalWeight,
		CategoryStats:  e.categoryStats(),
		ScoringMethod:  ScoringMethod,
	}

	if totalWeight == 0 {
		summary.PerfectScore = 100
		summary.PartialScore = 100
		summary.RecommendedScore = 100
		summary.Evaluation = evaluate(100)
		return summary
	}

	perfectWeight := 0.0
	partialWeight := 0.0
	for _, item := range e.items {
		if item.isAsked {
			summary.AskedQuestions++
			perfectWeight += item.cfg.Weight
		}
		partialWeight += item.partialScore()
	}

	summary.PerfectWeight = round2(perfectWeight)
	summary.PartialWeight = round2(partialWeight)
	summary.PerfectScore = round2(perfectWeight / totalWeight * 100)
	summary.PartialScore = round2(partialWeight / totalWeight * 100)
	summary.RecommendedScore = summary.PartialScore
	summary.Evaluation = evaluate(summary.PartialScore)
	return summary
}

func (e *Engine) categoryStats() map[string]CategoryStats {
	stats := make(map[string]CategoryStats)
	scoreSums := make(map[string]float64)

	for _, item := range e.items {
		cat := item.cfg.Category
		s := stats[cat]
		s.TotalQuestions++
		s.TotalWeight += item.cfg.Weight
		s.PartialWeight += item.partialScore()
		if item.isAsked {
			s.AskedQuestions++
			s.AskedWeight += item.cfg.Weight
		}
		stats[cat] = s
		scoreSums[cat] += item.bestMatchScore
	}

	for cat, s := range stats {
		if s.TotalWeight > 0 {
			s.PerfectCompletionRate = round2(s.AskedWeight / s.TotalWeight * 100)
			s.PartialCompletionRate = round2(s.PartialWeight / s.TotalWeight * 100)
		} else {
			s.PerfectCompletionRate = 100
			s.PartialCompletionRate = 100
		}
		s.AvgMatchScore = round2(scoreSums[cat] / float64(s.TotalQuestions))
		s.AskedWeight = round2(s.AskedWeight)
		s.PartialWeight = round2(s.PartialWeight)
		stats[cat] = s
	}
	return stats
}

func evaluate(percentage float64) Evaluation {
	switch {
	case percentage >= 90:
		return Evaluation{
			Level:   "excellent",
			Comment: "The interview was thorough, covering nearly every important point with precise, professional phrasing.",
		}
	case percentage >= 80:
		return Evaluation{
			Level:   "good",
			Comment: "The interview covered most important points with good professional quality.",
		}
	case percentage >= 70:
		return Evaluation{
			Level:   "fair",
			Comment: "The interview was adequate, but some important points were missed or probed too shallowly.",
		}
	case percentage >= 60:
		return Evaluation{
			Level:   "passing",
			Comment: "The interview was incomplete and missed several important points; it needs improvement.",
		}
	default:
		return Evaluation{
			Level:   "failing",
			Comment: "The interview was seriously deficient: most key information was never elicited.",
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package scoring

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Fallback judgment constants. The overall score is capped below the perfect
// range to signal that it came from a heuristic rather than a true semantic
// judgment.
const (
	fallbackScoreCap        = 85.0
	fallbackMatchFloor      = 50.0
	fallbackConfidence      = 0.6
	fallbackProfessionalism = 70.0
)

// FallbackJudge is a deterministic, call-free heuristic scorer. It never
// fails and always returns a fully populated, range-clamped Judgment, so it
// is safe to use as the terminal stage of every evaluation.
type FallbackJudge struct{}

// Judge scores the candidate text by token overlap with the target question.
func (FallbackJudge) Judge(_ context.Context, req JudgeRequest) (Judgment, error) {
	ratio := tokenOverlap(req.TurnText, req.Question)

	score := ratio * 100
	if score > fallbackScoreCap {
		score = fallbackScoreCap
	}

	j := Judgment{
		SemanticMatch:       score,
		InformationCoverage: score,
		Professionalism:     fallbackProfessionalism,
		Completeness:        score,
		OverallScore:        score,
		IsMatch:             score >= fallbackMatchFloor,
		Confidence:          fallbackConfidence,
		Reasoning:           fmt.Sprintf("fallback evaluation: token overlap ratio %.2f with target question", ratio),
		Suggestions:         "consider phrasing the question with more specific terminology",
		Timestamp:           time.Now(),
		TurnText:            req.TurnText,
	}
	j.clamp()
	return j, nil
}

// tokenOverlap computes |common tokens| / max(|target tokens|, 1) over
// lower-cased, whitespace-separated tokens.
func tokenOverlap(candidate, target string) float64 {
	candidateSet := tokenSet(candidate)
	targetSet := tokenSet(target)

	common := 0
	for tok := range targetSet {
		if _, ok := candidateSet[tok]; ok {
			common++
		}
	}

	denom := len(targetSet)
	if denom < 1 {
		denom = 1
	}
	return float64(common) / float64(denom)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}

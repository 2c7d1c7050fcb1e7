package scoring

import (
	"context"
	"time"
)

// Default values used when a judge response omits a field.
const (
	defaultConfidence = 0.5
	defaultReasoning  = "no detailed evaluation"
)

// Judgment is one structured quality judgment for a (turn, rubric item) pair.
// All numeric fields are clamped into their ranges at construction time,
// regardless of what the judge returned.
type Judgment struct {
	SemanticMatch       float64 `json:"semantic_match"`
	InformationCoverage float64 `json:"information_coverage"`
	Professionalism     float64 `json:"professionalism"`
	Completeness        float64 `json:"completeness"`

	OverallScore float64 `json:"overall_score"`
	IsMatch      bool    `json:"is_match"`
	Confidence   float64 `json:"confidence"`

	Reasoning   string `json:"reasoning"`
	Suggestions string `json:"suggestions"`

	Timestamp time.Time `json:"timestamp"`
	TurnText  string    `json:"turn_text"`
}

// JudgeRequest carries one candidate turn to be scored against one rubric
// target, with the rendered conversation context preceding the turn.
type JudgeRequest struct {
	Question string
	Answer   string
	TurnText string
	Context  string
}

// Judge produces a Judgment for a (turn, rubric item) pair. Implementations
// must degrade internally rather than fail: a returned error is treated by
// the engine as a local, recoverable event and replaced with a fallback
// judgment, never propagated out of a recompute.
type Judge interface {
	Judge(ctx context.Context, req JudgeRequest) (Judgment, error)
}

// clamp bounds all numeric fields into their documented ranges.
func (j *Judgment) clamp() {
	j.SemanticMatch = clamp01e2(j.SemanticMatch)
	j.InformationCoverage = clamp01e2(j.InformationCoverage)
	j.Professionalism = clamp01e2(j.Professionalism)
	j.Completeness = clamp01e2(j.Completeness)
	j.OverallScore = clamp01e2(j.OverallScore)
	if j.Confidence < 0 {
		j.Confidence = 0
	} else if j.Confidence > 1 {
		j.Confidence = 1
	}
}

func clamp01e2(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

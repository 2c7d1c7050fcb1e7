package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	medscoreerrors "medscore/internal/errors"
	"medscore/internal/llm"
)

// stubJudge scripts judgments per request for engine tests.
type stubJudge struct {
	mu       sync.Mutex
	fn       func(req JudgeRequest) (Judgment, error)
	requests []JudgeRequest
}

func (s *stubJudge) Judge(_ context.Context, req JudgeRequest) (Judgment, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.fn(req)
}

func (s *stubJudge) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func constantJudge(score float64, match bool) *stubJudge {
	return &stubJudge{fn: func(req JudgeRequest) (Judgment, error) {
		j := Judgment{OverallScore: score, IsMatch: match, TurnText: req.TurnText, Confidence: 0.9, Suggestions: "probe further"}
		j.clamp()
		return j, nil
	}}
}

func newTestEngine(t *testing.T, source any, judge Judge, opts ...Option) *Engine {
	t.Helper()
	opts = append(opts, WithMetrics(testMetrics()))
	engine, err := NewEngine(source, judge, opts...)
	require.NoError(t, err)
	return engine
}

func TestRecordTurnValidation(t *testing.T) {
	engine := newTestEngine(t, []string{"q"}, nil)

	err := engine.RecordTurn("", RoleDoctor)
	require.Error(t, err)
	assert.True(t, medscoreerrors.IsValidation(err))

	err = engine.RecordTurn("   \t ", RoleDoctor)
	require.Error(t, err)
	assert.True(t, medscoreerrors.IsValidation(err))

	err = engine.RecordTurn("hello", Role("nurse"))
	require.Error(t, err)
	assert.True(t, medscoreerrors.IsValidation(err))

	// Rejected input leaves no trace.
	assert.Equal(t, 0, engine.TurnCount())

	require.NoError(t, engine.RecordTurn("hello", RoleDoctor))
	require.NoError(t, engine.RecordTurn("hi doctor", RolePatient))
	assert.Equal(t, 2, engine.TurnCount())
}

func TestNewEngineRejectsBadRubric(t *testing.T) {
	_, err := NewEngine(3.14, nil)
	require.Error(t, err)
	assert.True(t, medscoreerrors.IsConfig(err))
}

func TestScenarioAFullMatch(t *testing.T) {
	source := []any{map[string]any{"question": "allergy history", "weight": 1, "threshold": 60}}
	engine := newTestEngine(t, source, constantJudge(80, true))

	require.NoError(t, engine.RecordTurn("Any allergies?", RoleDoctor))
	require.NoError(t, engine.Recompute(context.Background()))

	item := engine.Items()[0]
	assert.True(t, item.IsAsked())
	assert.Equal(t, 1.0, item.partialScore())

	summary := engine.Summary()
	assert.Equal(t, 100.0, summary.RecommendedScore)
	assert.Equal(t, 100.0, summary.PerfectScore)
	assert.Equal(t, 1, summary.AskedQuestions)
}

func TestScenarioBPartialMatch(t *testing.T) {
	source := []any{map[string]any{"question": "allergy history", "weight": 1, "threshold": 60}}
	engine := newTestEngine(t, source, constantJudge(40, false))

	require.NoError(t, engine.RecordTurn("Any allergies?", RoleDoctor))
	require.NoError(t, engine.Recompute(context.Background()))

	item := engine.Items()[0]
	assert.False(t, item.IsAsked())
	assert.InDelta(t, 0.4, item.partialScore(), 0.001)

	summary := engine.Summary()
	assert.Equal(t, 40.0, summary.RecommendedScore)
	assert.Equal(t, 0.0, summary.PerfectScore)
}

func TestScenarioCCategoryBreakdown(t *testing.T) {
	source := []any{
		map[string]any{"question": "first point", "weight": 1, "category": "A"},
		map[string]any{"question": "second point", "weight": 2, "category": "B"},
	}
	judge := &stubJudge{fn: func(req JudgeRequest) (Judgment, error) {
		if req.Question == "second point" {
			return judgmentWith(90, true), nil
		}
		return judgmentWith(10, false), nil
	}}
	engine := newTestEngine(t, source, judge)

	require.NoError(t, engine.RecordTurn("tell me about the second point", RoleDoctor))
	require.NoError(t, engine.Recompute(context.Background()))

	summary := engine.Summary()
	assert.InDelta(t, 66.67, summary.PerfectScore, 0.01)
	assert.Equal(t, 0.0, summary.CategoryStats["A"].PerfectCompletionRate)
	assert.Equal(t, 100.0, summary.CategoryStats["B"].PerfectCompletionRate)
}

func TestScenarioDAllJudgeCallsFail(t *testing.T) {
	source := []any{
		map[string]any{"question": "allergy history"},
		map[string]any{"question": "smoking status"},
	}
	semantic := newTestJudge(t, llm.NewFailingClient(errors.New("dial tcp: i/o timeout")))
	engine := newTestEngine(t, source, semantic)

	require.NoError(t, engine.RecordTurn("any allergy history?", RoleDoctor))
	require.NoError(t, engine.RecordTurn("do you smoke?", RoleDoctor))
	require.NoError(t, engine.Recompute(context.Background()))

	report := engine.Report()
	total := 0
	for _, views := range [][]RubricItemView{report.FullyMatched, report.PartiallyMatched, report.Missed} {
		for _, view := range views {
			for _, j := range view.Judgments {
				assert.Equal(t, fallbackConfidence, j.Confidence)
				total++
			}
		}
	}
	assert.Equal(t, 4, total) // 2 turns x 2 items
}

func TestRecomputeIsIdempotent(t *testing.T) {
	source := []any{
		map[string]any{"question": "allergy history", "weight": 1, "category": "history"},
		map[string]any{"question": "pain location", "weight": 2, "category": "symptoms"},
		map[string]any{"question": "medication list", "weight": 1.5, "category": "history"},
	}
	judge := &stubJudge{fn: func(req JudgeRequest) (Judgment, error) {
		// Deterministic score derived from input lengths.
		score := float64((len(req.Question)*7+len(req.TurnText)*3)%101)
		return judgmentWith(score, score >= 60), nil
	}}
	engine := newTestEngine(t, source, judge)

	require.NoError(t, engine.RecordTurn("hello, what brings you in?", RoleDoctor))
	require.NoError(t, engine.RecordTurn("my chest hurts", RolePatient))
	require.NoError(t, engine.RecordTurn("where exactly is the pain located?", RoleDoctor))
	require.NoError(t, engine.RecordTurn("are you taking any medication?", RoleDoctor))

	require.NoError(t, engine.Recompute(context.Background()))
	first, err := json.Marshal(engine.Summary())
	require.NoError(t, err)

	require.NoError(t, engine.Recompute(context.Background()))
	second, err := json.Marshal(engine.Summary())
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestEmptyRubricIsVacuouslyPerfect(t *testing.T) {
	engine := newTestEngine(t, []any{}, constantJudge(0, false))

	require.NoError(t, engine.RecordTurn("hello", RoleDoctor))
	require.NoError(t, engine.Recompute(context.Background()))

	summary := engine.Summary()
	assert.Equal(t, 100.0, summary.PerfectScore)
	assert.Equal(t, 100.0, summary.PartialScore)
	assert.Equal(t, 0.0, summary.TotalWeight)
}

func TestAllItemsMatchedScoresHundred(t *testing.T) {
	source := []any{
		map[string]any{"question": "a", "weight": 1},
		map[string]any{"question": "b", "weight": 3},
	}
	engine := newTestEngine(t, source, constantJudge(100, true))

	require.NoError(t, engine.RecordTurn("cover everything", RoleDoctor))
	require.NoError(t, engine.Recompute(context.Background()))

	summary := engine.Summary()
	assert.Equal(t, 100.0, summary.PerfectScore)
	assert.Equal(t, 100.0, summary.PartialScore)
}

func TestCategoryWeightsReconcileWithGlobal(t *testing.T) {
	source := []any{
		map[string]any{"question": "a", "weight": 1, "category": "x"},
		map[string]any{"question": "b", "weight": 2, "category": "y"},
		map[string]any{"question": "c", "weight": 4, "category": "y"},
	}
	judge := &stubJudge{fn: func(req JudgeRequest) (Judgment, error) {
		return judgmentWith(80, req.Question != "c"), nil
	}}
	engine := newTestEngine(t, source, judge)

	require.NoError(t, engine.RecordTurn("ask things", RoleDoctor))
	require.NoError(t, engine.Recompute(context.Background()))

	summary := engine.Summary()
	categoryAsked := 0.0
	for _, stats := range summary.CategoryStats {
		categoryAsked += stats.AskedWeight
		assert.GreaterOrEqual(t, stats.PerfectCompletionRate, 0.0)
		assert.LessOrEqual(t, stats.PerfectCompletionRate, 100.0)
		assert.GreaterOrEqual(t, stats.PartialCompletionRate, 0.0)
		assert.LessOrEqual(t, stats.PartialCompletionRate, 100.0)
	}
	assert.Equal(t, summary.PerfectWeight, categoryAsked)
}

func TestConcurrentRecomputeIsRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	judge := &stubJudge{fn: func(req JudgeRequest) (Judgment, error) {
		close(started)
		<-release
		return judgmentWith(50, false), nil
	}}
	engine := newTestEngine(t, []string{"q"}, judge)
	require.NoError(t, engine.RecordTurn("hello", RoleDoctor))

	done := make(chan error, 1)
	go func() { done <- engine.Recompute(context.Background()) }()

	<-started
	err := engine.Recompute(context.Background())
	require.Error(t, err)
	assert.True(t, medscoreerrors.IsPrecondition(err))

	close(release)
	require.NoError(t, <-done)
}

func TestRecomputeStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	judge := &stubJudge{fn: func(req JudgeRequest) (Judgment, error) {
		cancel()
		return Judgment{}, ctx.Err()
	}}
	engine := newTestEngine(t, []string{"q"}, judge, WithConcurrency(1))
	require.NoError(t, engine.RecordTurn("hello", RoleDoctor))

	err := engine.Recompute(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The gate is released: a retry succeeds.
	judge.fn = func(req JudgeRequest) (Judgment, error) { return judgmentWith(50, false), nil }
	require.NoError(t, engine.Recompute(context.Background()))
}

func TestSkipAskedCutsJudgeTraffic(t *testing.T) {
	judge := constantJudge(90, true)
	engine := newTestEngine(t, []string{"q"}, judge, WithSkipAsked(true))

	require.NoError(t, engine.RecordTurn("first", RoleDoctor))
	require.NoError(t, engine.RecordTurn("second", RoleDoctor))
	require.NoError(t, engine.Recompute(context.Background()))

	// The item matched on the first turn; the second is skipped.
	assert.Equal(t, 1, judge.callCount())

	// Default behavior replays exhaustively.
	exhaustive := constantJudge(90, true)
	engine = newTestEngine(t, []string{"q"}, exhaustive)
	require.NoError(t, engine.RecordTurn("first", RoleDoctor))
	require.NoError(t, engine.RecordTurn("second", RoleDoctor))
	require.NoError(t, engine.Recompute(context.Background()))
	assert.Equal(t, 2, exhaustive.callCount())
}

func TestContextWindowRendering(t *testing.T) {
	judge := &stubJudge{fn: func(req JudgeRequest) (Judgment, error) {
		return judgmentWith(10, false), nil
	}}
	engine := newTestEngine(t, []string{"q"}, judge, WithConcurrency(1))

	require.NoError(t, engine.RecordTurn("I feel dizzy", RolePatient))
	require.NoError(t, engine.RecordTurn("since when?", RoleDoctor))
	require.NoError(t, engine.RecordTurn("two days ago", RolePatient))
	require.NoError(t, engine.RecordTurn("any nausea?", RoleDoctor))
	require.NoError(t, engine.Recompute(context.Background()))

	require.Len(t, judge.requests, 2)

	assert.Equal(t, "since when?", judge.requests[0].TurnText)
	assert.Equal(t, "Patient: I feel dizzy", judge.requests[0].Context)

	assert.Equal(t, "any nausea?", judge.requests[1].TurnText)
	assert.Equal(t, "Patient: I feel dizzy\nDoctor: since when?\nPatient: two days ago", judge.requests[1].Context)
}

func TestPatientTurnsAreNotJudged(t *testing.T) {
	judge := constantJudge(100, true)
	engine := newTestEngine(t, []string{"q"}, judge)

	require.NoError(t, engine.RecordTurn("I have a headache", RolePatient))
	require.NoError(t, engine.RecordTurn("it started yesterday", RolePatient))
	require.NoError(t, engine.Recompute(context.Background()))

	assert.Equal(t, 0, judge.callCount())
	assert.False(t, engine.Items()[0].IsAsked())
}

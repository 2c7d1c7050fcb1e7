package scoring

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medscore/internal/llm"
)

func testMetrics() *Metrics {
	return MustNewMetrics(prometheus.NewRegistry())
}

func TestJudgeCallOutcomesAreCounted(t *testing.T) {
	metrics := testMetrics()
	client := llm.NewScriptedClient(
		`{"overall_score": 80, "is_match": true}`,
		"not json at all",
	)
	judge := NewSemanticJudge(client, WithJudgeMetrics(metrics), WithJudgmentCacheSize(0))

	_, err := judge.Judge(context.Background(), JudgeRequest{Question: "a", TurnText: "t"})
	require.NoError(t, err)
	_, err = judge.Judge(context.Background(), JudgeRequest{Question: "b", TurnText: "t"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.judgeCalls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.judgeCalls.WithLabelValues("fallback")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.observeJudgeCall(judgeOutcomeOK, 0)
	m.observeRecompute(0)
}

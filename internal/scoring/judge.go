package scoring

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kaptinlin/jsonrepair"

	"medscore/internal/llm"
	"medscore/internal/logging"
)

const judgeSystemPrompt = `You are a medical interview evaluation expert. You assess whether a doctor's question effectively elicits a target hidden information point.`

const judgeUserPromptTemplate = `Evaluate whether the doctor's question effectively asks for the target information point.

Target information point: %s
Expected answer: %s
Doctor's question: %s
Conversation context:
%s

Score the following dimensions (0-100 each):
1. semantic_match: semantic similarity between the doctor's question and the target
2. information_coverage: whether the question can elicit the target information
3. professionalism: medical precision and appropriateness of the question
4. completeness: whether the question fully covers the target information point

Evaluation rules:
- Different wording that elicits the same medical information should score high
- Account for medical synonyms and alternative phrasings
- Award partial credit for partial matches; do not require literal overlap
- Consider realistic clinical interviewing habits

Respond with ONLY a JSON object:
{
  "semantic_match": 85,
  "information_coverage": 90,
  "professionalism": 80,
  "completeness": 75,
  "overall_score": 82.5,
  "is_match": true,
  "confidence": 0.9,
  "reasoning": "<brief explanation>",
  "suggestions": "<improvement advice, if any>"
}

overall_score is the average of the four dimensions.
is_match: true when overall_score >= 60.
confidence: your confidence in this evaluation (0-1).`

// defaultJudgmentCacheSize bounds the semantic judge's judgment cache.
const defaultJudgmentCacheSize = 4096

// SemanticJudge wraps one external reasoning capability behind the Judge
// contract. Any failure of the capability, from transport errors to
// unparseable output, degrades to the deterministic fallback judge; Judge
// therefore never returns a non-nil error.
type SemanticJudge struct {
	client   llm.Client
	fallback FallbackJudge
	logger   logging.Logger
	metrics  *Metrics
	cache    *lru.Cache[string, Judgment]
}

// SemanticJudgeOption customizes a SemanticJudge.
type SemanticJudgeOption func(*semanticJudgeConfig)

type semanticJudgeConfig struct {
	logger    logging.Logger
	metrics   *Metrics
	cacheSize int
}

// WithJudgeLogger sets the judge's logger.
func WithJudgeLogger(logger logging.Logger) SemanticJudgeOption {
	return func(c *semanticJudgeConfig) { c.logger = logger }
}

// WithJudgeMetrics sets the judge's metrics collectors.
func WithJudgeMetrics(m *Metrics) SemanticJudgeOption {
	return func(c *semanticJudgeConfig) { c.metrics = m }
}

// WithJudgmentCacheSize sets the judgment cache capacity. Size 0 disables
// caching.
func WithJudgmentCacheSize(size int) SemanticJudgeOption {
	return func(c *semanticJudgeConfig) { c.cacheSize = size }
}

// NewSemanticJudge creates a judge backed by the given completion client.
func NewSemanticJudge(client llm.Client, opts ...SemanticJudgeOption) *SemanticJudge {
	cfg := semanticJudgeConfig{cacheSize: defaultJudgmentCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	var cache *lru.Cache[string, Judgment]
	if cfg.cacheSize > 0 {
		// lru.New only fails on non-positive size, which is excluded here.
		cache, _ = lru.New[string, Judgment](cfg.cacheSize)
	}
	if cfg.metrics == nil {
		cfg.metrics = defaultMetrics()
	}

	return &SemanticJudge{
		client:  client,
		logger:  logging.OrNop(cfg.logger),
		metrics: cfg.metrics,
		cache:   cache,
	}
}

// Judge scores one candidate turn against one rubric target. The returned
// error is always nil; failures are absorbed by the fallback judge.
func (j *SemanticJudge) Judge(ctx context.Context, req JudgeRequest) (Judgment, error) {
	key := judgmentCacheKey(req)
	if j.cache != nil {
		if cached, ok := j.cache.Get(key); ok {
			cached.Timestamp = time.Now()
			return cached, nil
		}
	}

	started := time.Now()
	judgment, outcome := j.judge(ctx, req)
	j.metrics.observeJudgeCall(outcome, time.Since(started))

	if j.cache != nil && outcome != judgeOutcomeFallback {
		j.cache.Add(key, judgment)
	}
	return judgment, nil
}

func (j *SemanticJudge) judge(ctx context.Context, req JudgeRequest) (Judgment, judgeOutcome) {
	if j.client == nil {
		judgment, _ := j.fallback.Judge(ctx, req)
		return judgment, judgeOutcomeFallback
	}

	resp, err := j.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: judgeSystemPrompt},
			{Role: "user", Content: buildJudgePrompt(req)},
		},
		Temperature: 0.0,
		MaxTokens:   512,
	})
	if err != nil {
		j.logger.Warn("judge call failed, using fallback: %v", err)
		judgment, _ := j.fallback.Judge(ctx, req)
		return judgment, judgeOutcomeFallback
	}

	judgment, outcome, err := parseJudgeResponse(resp.Content)
	if err != nil {
		j.logger.Warn("judge response unparseable, using fallback: %v", err)
		judgment, _ := j.fallback.Judge(ctx, req)
		return judgment, judgeOutcomeFallback
	}

	judgment.Timestamp = time.Now()
	judgment.TurnText = req.TurnText
	return judgment, outcome
}

func buildJudgePrompt(req JudgeRequest) string {
	contextBlock := req.Context
	if contextBlock == "" {
		contextBlock = "(none)"
	}
	return fmt.Sprintf(judgeUserPromptTemplate, req.Question, req.Answer, req.TurnText, contextBlock)
}

// judgePayload mirrors the judge wire contract. Pointer fields distinguish
// absent values from explicit zeros so documented defaults can be applied.
type judgePayload struct {
	SemanticMatch       *float64 `json:"semantic_match"`
	InformationCoverage *float64 `json:"information_coverage"`
	Professionalism     *float64 `json:"professionalism"`
	Completeness        *float64 `json:"completeness"`
	OverallScore        *float64 `json:"overall_score"`
	IsMatch             *bool    `json:"is_match"`
	Confidence          *float64 `json:"confidence"`
	Reasoning           string   `json:"reasoning"`
	Suggestions         string   `json:"suggestions"`
}

// parseJudgeResponse applies the first two stages of the parse chain: strict
// JSON, then extraction of the first balanced object-like substring with
// repair. The caller handles the final fallback stage.
func parseJudgeResponse(content string) (Judgment, judgeOutcome, error) {
	trimmed := strings.TrimSpace(content)

	var payload judgePayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
		return payload.toJudgment(), judgeOutcomeOK, nil
	}

	extracted, ok := extractBalancedObject(trimmed)
	if !ok {
		return Judgment{}, judgeOutcomeFallback, fmt.Errorf("no object-like substring in judge response")
	}
	if err := json.Unmarshal([]byte(extracted), &payload); err == nil {
		return payload.toJudgment(), judgeOutcomeRepaired, nil
	}

	repaired, err := jsonrepair.JSONRepair(extracted)
	if err != nil {
		return Judgment{}, judgeOutcomeFallback, fmt.Errorf("repair judge response: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
		return Judgment{}, judgeOutcomeFallback, fmt.Errorf("decode repaired judge response: %w", err)
	}
	return payload.toJudgment(), judgeOutcomeRepaired, nil
}

// extractBalancedObject returns the first substring that starts at '{' and
// ends at its matching '}', tracking nesting and string literals.
func extractBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	// Unterminated object: hand the remainder to the repair stage.
	return s[start:], true
}

// toJudgment applies documented defaults for missing fields and clamps every
// numeric field into range.
func (p judgePayload) toJudgment() Judgment {
	j := Judgment{
		SemanticMatch:       valueOr(p.SemanticMatch, 0),
		InformationCoverage: valueOr(p.InformationCoverage, 0),
		Professionalism:     valueOr(p.Professionalism, 0),
		Completeness:        valueOr(p.Completeness, 0),
		Confidence:          valueOr(p.Confidence, defaultConfidence),
		Reasoning:           p.Reasoning,
		Suggestions:         p.Suggestions,
	}
	if p.IsMatch != nil {
		j.IsMatch = *p.IsMatch
	}
	if p.OverallScore != nil {
		j.OverallScore = *p.OverallScore
	} else {
		// Equal weighting of the four dimensions.
		j.OverallScore = (j.SemanticMatch + j.InformationCoverage + j.Professionalism + j.Completeness) / 4
	}
	if j.Reasoning == "" {
		j.Reasoning = defaultReasoning
	}
	j.clamp()
	return j
}

func valueOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}

func judgmentCacheKey(req JudgeRequest) string {
	h := sha256.New()
	for _, part := range []string{req.Question, req.Answer, req.TurnText, req.Context} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

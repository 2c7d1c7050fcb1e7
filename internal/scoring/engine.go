package scoring

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	medscoreerrors "medscore/internal/errors"
	"medscore/internal/logging"
)

const (
	// DefaultContextWindow is how many preceding turns are rendered as
	// context for each judged doctor turn.
	DefaultContextWindow = 5

	// DefaultConcurrency bounds parallel judge calls within one turn. The
	// max-merge is commutative, so fan-out cannot change the outcome.
	DefaultConcurrency = 4
)

// Engine owns the rubric set and the turn store for one session and
// orchestrates evaluation and aggregation. One engine per session; callers
// serialize access to a given engine.
type Engine struct {
	judge    Judge
	fallback FallbackJudge

	items []*RubricItem
	turns turnStore

	defaultThreshold float64
	contextWindow    int
	concurrency      int
	skipAsked        bool

	recomputing atomic.Bool

	logger  logging.Logger
	metrics *Metrics
}

// Option customizes an Engine.
type Option func(*Engine)

// WithDefaultThreshold sets the match threshold applied to rubric items that
// do not carry their own.
func WithDefaultThreshold(threshold float64) Option {
	return func(e *Engine) { e.defaultThreshold = threshold }
}

// WithContextWindow sets how many preceding turns are rendered as judge
// context.
func WithContextWindow(n int) Option {
	return func(e *Engine) { e.contextWindow = n }
}

// WithConcurrency bounds parallel judge calls during a recompute. Values
// below 1 force sequential evaluation.
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.concurrency = n }
}

// WithSkipAsked makes a recompute skip items that already matched. This cuts
// judge traffic at the cost of not discovering a better example turn for the
// item's report.
func WithSkipAsked(skip bool) Option {
	return func(e *Engine) { e.skipAsked = skip }
}

// WithLogger sets the engine's logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the engine's metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine constructs an engine from a rubric source and a judge. The source
// is either an item list or a label-to-value mapping (see ParseRubricSource).
// A nil judge falls back to the deterministic heuristic judge.
func NewEngine(source any, judge Judge, opts ...Option) (*Engine, error) {
	e := &Engine{
		judge:            judge,
		defaultThreshold: DefaultThreshold,
		contextWindow:    DefaultContextWindow,
		concurrency:      DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrNop(e.logger)
	if e.metrics == nil {
		e.metrics = defaultMetrics()
	}
	if e.judge == nil {
		e.judge = FallbackJudge{}
	}
	if e.contextWindow < 0 {
		e.contextWindow = 0
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}

	configs, err := ParseRubricSource(source, e.defaultThreshold)
	if err != nil {
		return nil, err
	}
	e.items = make([]*RubricItem, 0, len(configs))
	for _, cfg := range configs {
		e.items = append(e.items, newRubricItem(cfg))
	}

	e.logger.Debug("engine constructed: %d rubric items, threshold %.0f", len(e.items), e.defaultThreshold)
	return e, nil
}

// RecordTurn appends one turn to the transcript. No judging happens here;
// scoring state is untouched until the next Recompute.
func (e *Engine) RecordTurn(content string, role Role) error {
	if strings.TrimSpace(content) == "" {
		return medscoreerrors.NewValidationError("content", "turn content must not be empty")
	}
	if !role.Valid() {
		return medscoreerrors.NewValidationError("role", "role must be doctor or patient")
	}
	e.turns.append(role, content)
	return nil
}

// TurnCount returns the total number of recorded turns.
func (e *Engine) TurnCount() int {
	return e.turns.len()
}

// Items returns the engine's rubric items.
func (e *Engine) Items() []*RubricItem {
	return e.items
}

// Recompute replays every doctor turn against every rubric item. It starts by
// resetting all item state, which makes the replay idempotent: the same
// transcript always yields the same scores. At most one recompute may be in
// flight per engine; a concurrent call fails with a precondition error and
// leaves state partially reset, so callers must retry a full recompute rather
// than trust partial progress.
func (e *Engine) Recompute(ctx context.Context) error {
	if !e.recomputing.CompareAndSwap(false, true) {
		return medscoreerrors.NewPreconditionError("recompute already in flight for this session")
	}
	defer e.recomputing.Store(false)

	started := time.Now()
	defer func() { e.metrics.observeRecompute(time.Since(started)) }()

	for _, item := range e.items {
		item.reset()
	}

	doctorIdxs := e.turns.doctorIndexes()
	if len(doctorIdxs) == 0 || len(e.items) == 0 {
		e.logger.Debug("recompute: nothing to evaluate (%d doctor turns, %d items)", len(doctorIdxs), len(e.items))
		return nil
	}

	e.logger.Info("recompute: replaying %d doctor turns against %d rubric items", len(doctorIdxs), len(e.items))

	for _, turnIdx := range doctorIdxs {
		turn := e.turns.turns[turnIdx]
		contextText := e.turns.contextWindow(turnIdx, e.contextWindow)

		targets := e.items
		if e.skipAsked {
			targets = pendingItems(e.items)
			if len(targets) == 0 {
				break
			}
		}

		if err := e.evaluateTurn(ctx, turn, contextText, targets); err != nil {
			return err
		}
	}
	return nil
}

// evaluateTurn fans judge calls for one turn out across a bounded pool, then
// merges the results in item order. Merging stays sequential so judgment
// history order is deterministic.
func (e *Engine) evaluateTurn(ctx context.Context, turn Turn, contextText string, targets []*RubricItem) error {
	results := make([]Judgment, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, item := range targets {
		req := JudgeRequest{
			Question: item.cfg.Question,
			Answer:   item.cfg.Answer,
			TurnText: turn.Content,
			Context:  contextText,
		}
		g.Go(func() error {
			judgment, err := e.judge.Judge(gctx, req)
			if err != nil {
				if gctx.Err() != nil {
					// Session gone or caller gave up: discard in-flight work.
					return gctx.Err()
				}
				e.logger.Warn("judge failed for turn %d, using fallback: %v", turn.Index, err)
				judgment, _ = e.fallback.Judge(gctx, req)
			}
			results[i] = judgment
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, item := range targets {
		item.observe(results[i])
	}
	return nil
}

func pendingItems(items []*RubricItem) []*RubricItem {
	out := make([]*RubricItem, 0, len(items))
	for _, item := range items {
		if !item.isAsked {
			out = append(out, item)
		}
	}
	return out
}

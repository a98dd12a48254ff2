package turn

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
	"github.com/zhouzirui/honeypot/backend/internal/model/intel"
	"github.com/zhouzirui/honeypot/backend/internal/service/ai"
	"github.com/zhouzirui/honeypot/backend/internal/service/report"
)

const (
	DefaultCallTimeout   = 4 * time.Second
	DefaultReportCadence = 5
)

type Replier interface {
	Reply(ctx context.Context, personaID string, history []chat.HistoryEntry, text string) string
}

type Scorer interface {
	Score(ctx context.Context, text string) chat.Verdict
}

type Extractor interface {
	Extract(ctx context.Context, text string) intel.Record
}

type SessionStore interface {
	GetOrCreate(ctx context.Context, key string) chat.Session
	Update(ctx context.Context, key string, delta intel.Record) chat.Session
}

type Reporter interface {
	Dispatch(snap report.Snapshot)
}

// Config tunes the orchestrator. Zero values select the defaults; a negative
// ReportCadence turns periodic reports off.
type Config struct {
	CallTimeout   time.Duration
	ReportCadence int
}

// Result is what the caller sees for one processed message.
type Result struct {
	Reply        string  `json:"reply"`
	ScamDetected bool    `json:"scam_detected"`
	Confidence   float64 `json:"confidence_score"`

	SessionID    string `json:"-"`
	Persona      string `json:"-"`
	MessageCount int    `json:"-"`
	Reported     bool   `json:"-"`
}

// Orchestrator runs one conversational turn: persona lookup, the three model calls
// in parallel, state update and the report decision.
type Orchestrator struct {
	store     SessionStore
	replier   Replier
	scorer    Scorer
	extractor Extractor
	reporter  Reporter

	callTimeout time.Duration
	cadence     int
	now         func() time.Time
	logger      *zap.Logger
}

func New(store SessionStore, replier Replier, scorer Scorer, extractor Extractor, reporter Reporter, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.ReportCadence == 0 {
		cfg.ReportCadence = DefaultReportCadence
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:       store,
		replier:     replier,
		scorer:      scorer,
		extractor:   extractor,
		reporter:    reporter,
		callTimeout: cfg.CallTimeout,
		cadence:     cfg.ReportCadence,
		now:         time.Now,
		logger:      logger.Named("turn"),
	}
}

// ProcessTurn handles one inbound message for key. It always produces a result:
// collaborator failures are replaced by their fallbacks, and report delivery
// happens after the call returns.
func (o *Orchestrator) ProcessTurn(ctx context.Context, key, text string, history []chat.HistoryEntry) Result {
	start := time.Now()
	sess := o.store.GetOrCreate(ctx, key)

	// A client hanging up must not lose the turn: the count is recorded either way,
	// so the calls run to their own deadline instead of the request's.
	callCtx := context.WithoutCancel(ctx)

	var (
		reply   string
		verdict chat.Verdict
		delta   intel.Record
		g       errgroup.Group
	)
	g.Go(func() error {
		reply = callWithin(callCtx, o, "reply", ai.FallbackReply, func(ctx context.Context) string {
			return o.replier.Reply(ctx, sess.Persona, history, text)
		})
		return nil
	})
	g.Go(func() error {
		verdict = callWithin(callCtx, o, "score", chat.Verdict{Reason: "fallback"}, func(ctx context.Context) chat.Verdict {
			return o.scorer.Score(ctx, text)
		})
		return nil
	})
	g.Go(func() error {
		delta = callWithin(callCtx, o, "extract", intel.New(), func(ctx context.Context) intel.Record {
			return o.extractor.Extract(ctx, text)
		})
		return nil
	})
	_ = g.Wait()

	updated := o.store.Update(ctx, key, delta)

	reported := report.ShouldReport(updated.MessageCount, verdict.ScamDetected, o.cadence)
	if reported && o.reporter != nil {
		o.reporter.Dispatch(report.NewSnapshot(updated, verdict, o.now()))
	}

	o.logger.Info("turn processed",
		zap.String("session", key),
		zap.String("persona", updated.Persona),
		zap.Int("count", updated.MessageCount),
		zap.Bool("scam", verdict.ScamDetected),
		zap.Float64("confidence", verdict.Score),
		zap.Int("intel", delta.Count()),
		zap.Bool("reported", reported),
		zap.Duration("latency", time.Since(start)),
	)

	return Result{
		Reply:        reply,
		ScamDetected: verdict.ScamDetected,
		Confidence:   verdict.Score,
		SessionID:    key,
		Persona:      updated.Persona,
		MessageCount: updated.MessageCount,
		Reported:     reported,
	}
}

// callWithin runs fn under the per-call deadline. A timeout or a panic resolves to
// fallback; the abandoned call sees its context cancelled.
func callWithin[T any](ctx context.Context, o *Orchestrator, name string, fallback T, fn func(context.Context) T) T {
	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	out := make(chan T, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("collaborator panicked", zap.String("call", name), zap.Any("panic", r))
				out <- fallback
			}
		}()
		out <- fn(ctx)
	}()

	select {
	case v := <-out:
		return v
	case <-ctx.Done():
		o.logger.Warn("collaborator timed out", zap.String("call", name), zap.Error(ctx.Err()))
		return fallback
	}
}

package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultTimeout = 5 * time.Second

// Dispatcher fans snapshots out to its sinks. Delivery problems are logged and
// never reach the caller.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A non-positive timeout selects DefaultTimeout.
func NewDispatcher(timeout time.Duration, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sinks:   sinks,
		timeout: timeout,
		logger:  logger.Named("report"),
	}
}

// Enabled reports whether any sink is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.sinks) > 0
}

// Send delivers snap to every sink, each bounded by the dispatcher timeout.
func (d *Dispatcher) Send(ctx context.Context, snap Snapshot) {
	if !d.Enabled() {
		d.logger.Debug("no report sink configured, dropping report", zap.String("session", snap.SessionID))
		return
	}
	for _, sink := range d.sinks {
		d.deliver(ctx, sink, snap)
	}
}

// Dispatch hands snap to a background delivery and returns at once. The delivery
// runs detached from any request context. Reports dispatched after Close has
// started are dropped.
func (d *Dispatcher) Dispatch(snap Snapshot) {
	if !d.Enabled() {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("report dropped, dispatcher closed",
			zap.String("session", snap.SessionID), zap.String("report", snap.ReportID))
		return
	}
	d.inflight.Add(1)
	d.mu.Unlock()
	go func() {
		defer d.inflight.Done()
		d.Send(context.Background(), snap)
	}()
}

// Close waits for in-flight deliveries or until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for report deliveries: %w", ctx.Err())
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sink Sink, snap Snapshot) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	fields := []zap.Field{
		zap.String("sink", sink.Name()),
		zap.String("session", snap.SessionID),
		zap.String("report", snap.ReportID),
		zap.String("trigger", snap.Trigger),
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("report sink panicked", append(fields, zap.Any("panic", r))...)
		}
	}()

	start := time.Now()
	if err := sink.Send(ctx, snap); err != nil {
		d.logger.Warn("report delivery failed", append(fields, zap.Error(err))...)
		return
	}
	d.logger.Info("report delivered", append(fields, zap.Duration("latency", time.Since(start)))...)
}

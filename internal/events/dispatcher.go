package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Sink delivers an Event somewhere: to an SSE client, to a log, to a
// test spy. A run with no attached Sink (the non-streaming /analyze
// path) still works — Dispatcher.Emit then does nothing.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// SinkFunc adapts a plain function to Sink, mirroring the teacher's
// channel.Channel interface without needing a dedicated type per sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Send(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Dispatcher fans a run's events out to zero or more sinks. Emit calls
// each sink synchronously, so a slow sink slows the emitting node; a
// delivery failure is logged and dropped rather than propagated, since
// losing a progress update must never fail an analysis.
type Dispatcher struct {
	mu     sync.RWMutex
	sinks  map[int]Sink
	nextID int
	log    *zap.Logger
}

// NewDispatcher creates a Dispatcher that logs sink failures with log.
func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{sinks: map[int]Sink{}, log: log}
}

// Attach registers a sink and returns a token Detach can use to remove
// it again. Used to attach an SSE sink for the duration of one
// /analyze/stream request.
func (d *Dispatcher) Attach(sink Sink) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.sinks[id] = sink
	return id
}

// Detach removes the sink registered under token, a no-op if already gone.
func (d *Dispatcher) Detach(token int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sinks, token)
}

// Emit delivers ev to every attached sink. Sink errors are logged, not
// returned: event delivery is best-effort by design (§6 streaming is an
// observability channel, not the system of record).
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	d.mu.RLock()
	sinks := make([]Sink, 0, len(d.sinks))
	for _, s := range d.sinks {
		sinks = append(sinks, s)
	}
	d.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Send(ctx, ev); err != nil && d.log != nil {
			d.log.Warn("event sink delivery failed", zap.String("event_type", string(ev.Type)), zap.Error(err))
		}
	}
}

// Count reports how many sinks are currently attached, mainly for tests.
func (d *Dispatcher) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sinks)
}

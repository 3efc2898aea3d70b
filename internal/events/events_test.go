package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConstructorsSetType(t *testing.T) {
	assert.Equal(t, TypeStatus, Status("hi").Type)
	assert.Equal(t, TypeAgentStatus, AgentStatusEvent("market", AgentInProgress).Type)
	assert.Equal(t, TypeReport, Report("market_report", "content").Type)
	assert.Equal(t, TypeProgress, Progress(50).Type)
	assert.Equal(t, TypeReasoning, Reasoning("thinking...").Type)
	assert.Equal(t, TypeComplete, Complete("BUY").Type)
	assert.Equal(t, TypeError, Error("boom").Type)
}

func TestProgressClampsToRange(t *testing.T) {
	assert.Equal(t, "0", Progress(-10).Content)
	assert.Equal(t, "100", Progress(250).Content)
	assert.Equal(t, "42", Progress(42).Content)
}

type spySink struct {
	mu   sync.Mutex
	seen []Event
	err  error
}

func (s *spySink) Send(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, ev)
	return s.err
}

func TestDispatcherDeliversToAllAttachedSinks(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	a, b := &spySink{}, &spySink{}
	d.Attach(a)
	d.Attach(b)

	d.Emit(context.Background(), Status("starting"))

	require.Len(t, a.seen, 1)
	require.Len(t, b.seen, 1)
	assert.Equal(t, TypeStatus, a.seen[0].Type)
}

func TestDispatcherSwallowsSinkErrors(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	failing := &spySink{err: errors.New("client disconnected")}
	d.Attach(failing)

	assert.NotPanics(t, func() {
		d.Emit(context.Background(), Status("still going"))
	})
	assert.Len(t, failing.seen, 1)
}

func TestDispatcherWithNoSinksIsNoop(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	assert.Equal(t, 0, d.Count())
	assert.NotPanics(t, func() {
		d.Emit(context.Background(), Status("noop"))
	})
}

func TestSinkFuncAdapter(t *testing.T) {
	var called bool
	sink := SinkFunc(func(ctx context.Context, ev Event) error {
		called = true
		return nil
	})
	require.NoError(t, sink.Send(context.Background(), Status("x")))
	assert.True(t, called)
}

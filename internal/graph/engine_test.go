package graph

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingagents/internal/blackboard"
)

func TestRunSimpleLinearChain(t *testing.T) {
	e := New()
	e.Add("a", NodeFunc(func(ctx context.Context, s blackboard.Blackboard) (NodeResult, error) {
		return NodeResult{Update: blackboard.Update{Step: "a-done"}, Route: NextNode("b")}, nil
	}))
	e.Add("b", NodeFunc(func(ctx context.Context, s blackboard.Blackboard) (NodeResult, error) {
		assert.Equal(t, "a-done", s.Step)
		return NodeResult{Update: blackboard.Update{Step: "b-done"}, Route: Stop()}, nil
	}))

	bb := blackboard.New("AAPL", "2026-07-31")
	require.NoError(t, e.Run(context.Background(), "a", bb))
	assert.Equal(t, "b-done", bb.Step)
}

func TestRunEnforcesMaxSteps(t *testing.T) {
	e := New(WithMaxSteps(3))
	e.Add("loop", NodeFunc(func(ctx context.Context, s blackboard.Blackboard) (NodeResult, error) {
		return NodeResult{Route: NextNode("loop")}, nil
	}))

	bb := blackboard.New("AAPL", "2026-07-31")
	err := e.Run(context.Background(), "loop", bb)
	require.Error(t, err)
	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, CodeMaxStepsExceeded, engErr.Code)
}

func TestRunUnknownNodeReturnsEngineError(t *testing.T) {
	e := New()
	bb := blackboard.New("AAPL", "2026-07-31")
	err := e.Run(context.Background(), "missing", bb)
	require.Error(t, err)
	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, CodeUnknownNode, engErr.Code)
}

func TestSendFanOutRunsConcurrentlyAndRejoins(t *testing.T) {
	var inFlight, maxInFlight int32

	e := New(WithMaxConcurrent(4))
	e.Add("dispatch", NodeFunc(func(ctx context.Context, s blackboard.Blackboard) (NodeResult, error) {
		return NodeResult{
			Route: Route{
				Sends: []Send{
					{Target: "market", Subset: blackboard.Update{Step: "market-assigned"}},
					{Target: "news", Subset: blackboard.Update{Step: "news-assigned"}},
				},
				Next: "aggregate",
			},
		}, nil
	}))
	makeWorker := func(report *string, updateFn func(string) blackboard.Update) Node {
		return NodeFunc(func(ctx context.Context, s blackboard.Blackboard) (NodeResult, error) {
			atomic.AddInt32(&inFlight, 1)
			defer atomic.AddInt32(&inFlight, -1)
			if cur := atomic.LoadInt32(&inFlight); cur > atomic.LoadInt32(&maxInFlight) {
				atomic.StoreInt32(&maxInFlight, cur)
			}
			time.Sleep(10 * time.Millisecond)
			return NodeResult{Update: updateFn(s.Step), Route: Stop()}, nil
		})
	}
	e.Add("market", makeWorker(nil, func(step string) blackboard.Update {
		return blackboard.Update{MarketReport: blackboard.Ptr("market saw: " + step)}
	}))
	e.Add("news", makeWorker(nil, func(step string) blackboard.Update {
		return blackboard.Update{NewsReport: blackboard.Ptr("news saw: " + step)}
	}))
	aggregated := false
	e.Add("aggregate", NodeFunc(func(ctx context.Context, s blackboard.Blackboard) (NodeResult, error) {
		aggregated = true
		assert.NotEmpty(t, s.MarketReport)
		assert.NotEmpty(t, s.NewsReport)
		return NodeResult{Route: Stop()}, nil
	}))

	bb := blackboard.New("AAPL", "2026-07-31")
	require.NoError(t, e.Run(context.Background(), "dispatch", bb))

	assert.True(t, aggregated)
	assert.Equal(t, "market saw: market-assigned", bb.MarketReport)
	assert.Equal(t, "news saw: news-assigned", bb.NewsReport)
	assert.GreaterOrEqual(t, maxInFlight, int32(2), "both Send branches should have run concurrently")
}

func TestSendBranchBaseStateIsIndependentSnapshot(t *testing.T) {
	e := New()
	e.Add("dispatch", NodeFunc(func(ctx context.Context, s blackboard.Blackboard) (NodeResult, error) {
		return NodeResult{
			Route: Route{
				Sends: []Send{
					{Target: "mutator", Subset: blackboard.Update{}},
				},
			},
		}, nil
	}))
	e.Add("mutator", NodeFunc(func(ctx context.Context, s blackboard.Blackboard) (NodeResult, error) {
		s.MarketReport = "mutated locally, must not leak"
		return NodeResult{Update: blackboard.Update{}, Route: Stop()}, nil
	}))

	bb := blackboard.New("AAPL", "2026-07-31")
	require.NoError(t, e.Run(context.Background(), "dispatch", bb))
	assert.Empty(t, bb.MarketReport)
}

func TestNodeErrorAbortsRun(t *testing.T) {
	e := New()
	boom := assertError{}
	e.Add("fails", NodeFunc(func(ctx context.Context, s blackboard.Blackboard) (NodeResult, error) {
		return NodeResult{}, boom
	}))

	bb := blackboard.New("AAPL", "2026-07-31")
	err := e.Run(context.Background(), "fails", bb)
	assert.ErrorIs(t, err, boom)
}

type assertError struct{}

func (assertError) Error() string { return "node exploded" }

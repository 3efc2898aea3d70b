package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStoreRetrieveEmptyForUnknownSymbol(t *testing.T) {
	s := NewInMemoryStore(5)
	out := s.Retrieve(context.Background(), "AAPL", 3)
	assert.Empty(t, out)
}

func TestInMemoryStoreRetrieveIsMostRecentFirst(t *testing.T) {
	s := NewInMemoryStore(10)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s.Record(context.Background(), Lesson{
			Symbol:     "aapl",
			Situation:  fmt.Sprintf("situation-%d", i),
			Decision:   "buy",
			Outcome:    "ok",
			RecordedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	out := s.Retrieve(context.Background(), "AAPL", 2)
	require.Len(t, out, 2)
	assert.Contains(t, out[0], "situation-2")
	assert.Contains(t, out[1], "situation-1")
}

func TestInMemoryStoreCapsPerSymbol(t *testing.T) {
	s := NewInMemoryStore(2)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.Record(context.Background(), Lesson{
			Symbol:     "AAPL",
			Situation:  fmt.Sprintf("s%d", i),
			RecordedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	out := s.Retrieve(context.Background(), "AAPL", 10)
	require.Len(t, out, 2)
	assert.Contains(t, out[0], "s4")
	assert.Contains(t, out[1], "s3")
}

func TestInMemoryStoreNormalizesSymbolCase(t *testing.T) {
	s := NewInMemoryStore(5)
	s.Record(context.Background(), Lesson{Symbol: "  aapl  ", Situation: "x", RecordedAt: time.Now()})

	out := s.Retrieve(context.Background(), "AAPL", 1)
	require.Len(t, out, 1)
}

func TestNoopStoreDiscardsEverything(t *testing.T) {
	s := NoopStore{}
	s.Record(context.Background(), Lesson{Symbol: "AAPL"})
	assert.Empty(t, s.Retrieve(context.Background(), "AAPL", 5))
}

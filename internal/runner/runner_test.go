package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hamlet-sim/lem-engine/internal/clearing"
	"github.com/hamlet-sim/lem-engine/internal/quote"
	"github.com/hamlet-sim/lem-engine/internal/store"
	"github.com/hamlet-sim/lem-engine/internal/timetable"
)

type stubBookStore struct {
	mu        sync.Mutex
	quotes    []quote.Quote
	retailers map[string]quote.RetailerRow
	getErr    error
	commitErr error
	committed []store.StepKey
}

func (s *stubBookStore) GetBidsOffers(context.Context, store.StepKey) ([]quote.Quote, error) {
	return s.quotes, s.getErr
}

func (s *stubBookStore) GetRetailers(context.Context, store.StepKey) (map[string]quote.RetailerRow, error) {
	return s.retailers, s.getErr
}

func (s *stubBookStore) CommitResult(_ context.Context, key store.StepKey, _ clearing.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, key)
	return s.commitErr
}

type stubBroadcaster struct {
	mu    sync.Mutex
	count int
}

func (b *stubBroadcaster) Broadcast(timetable.Row, clearing.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count++
}

func rowsFor(region, market, name string, n int) []timetable.Row {
	rows := make([]timetable.Row, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = timetable.Row{
			Region: region, Market: market, Name: name,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Timestep:  base.Add(time.Duration(i) * time.Hour),
			Actions:   []timetable.Action{timetable.ActionClear},
			Pricing:   "uniform",
		}
	}
	return rows
}

func TestRunCommitsEveryRowAcrossMarkets(t *testing.T) {
	bs := &stubBookStore{}
	bcast := &stubBroadcaster{}
	markets := []Market{
		{Region: "de", MarketKind: "lem", Name: "m1", Rows: rowsFor("de", "lem", "m1", 3)},
		{Region: "de", MarketKind: "lem", Name: "m2", Rows: rowsFor("de", "lem", "m2", 2)},
	}

	if err := Run(context.Background(), bs, bcast, markets); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(bs.committed) != 5 {
		t.Fatalf("committed %d rows, want 5", len(bs.committed))
	}
	if bcast.count != 5 {
		t.Fatalf("broadcast %d times, want 5", bcast.count)
	}
}

func TestRunPropagatesRowError(t *testing.T) {
	bs := &stubBookStore{getErr: errors.New("store unavailable")}
	markets := []Market{
		{Region: "de", MarketKind: "lem", Name: "m1", Rows: rowsFor("de", "lem", "m1", 1)},
	}

	err := Run(context.Background(), bs, nil, markets)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestRunStopsMarketOnCancelledContext(t *testing.T) {
	bs := &stubBookStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	markets := []Market{
		{Region: "de", MarketKind: "lem", Name: "m1", Rows: rowsFor("de", "lem", "m1", 5)},
	}
	err := Run(ctx, bs, nil, markets)
	if err == nil {
		t.Fatal("expected context-cancellation error")
	}
}

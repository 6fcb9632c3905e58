// Package runner drives each market instance's timetable to completion
// against the clearing engine, honouring spec.md §5's concurrency model:
// "single-threaded cooperative per market instance... parallelism, where
// present, is inter-market... and is the host's responsibility". It is
// grounded on the teacher's per-symbol goroutine runners
// (ndrandal/feed-simulator's cmd/feedsim/main.go's symbolRunner/
// stressRunner loops), generalized from a fixed-interval real-time tick to
// driving a precomputed timetable row-by-row, and using golang.org/x/sync's
// errgroup (wired in from the pack's stadam23-Eve-flipper) instead of bare
// goroutines so the host can join all market instances and propagate the
// first error.
package runner

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/hamlet-sim/lem-engine/internal/clearing"
	"github.com/hamlet-sim/lem-engine/internal/quote"
	"github.com/hamlet-sim/lem-engine/internal/store"
	"github.com/hamlet-sim/lem-engine/internal/timetable"
)

// BookStore is the subset of *store.Store the runner needs to execute one
// timetable row and commit its result (spec §4.11: look up the book,
// execute, commit).
type BookStore interface {
	GetBidsOffers(ctx context.Context, key store.StepKey) ([]quote.Quote, error)
	GetRetailers(ctx context.Context, key store.StepKey) (map[string]quote.RetailerRow, error)
	CommitResult(ctx context.Context, key store.StepKey, result clearing.Result) error
}

// Broadcaster is notified after each row commits, for live feed push
// (internal/feed). Nil disables broadcasting.
type Broadcaster interface {
	Broadcast(row timetable.Row, result clearing.Result)
}

// Market is one market instance's identity plus its built timetable.
type Market struct {
	Region    string
	MarketKind string
	Name      string
	Rows      []timetable.Row
}

// Run drives every market's timetable to completion. Markets run
// concurrently against each other (disjoint (region, market, name) tuples,
// spec §5); within a single market, rows execute strictly in order. Run
// blocks until every market's timetable completes or the first row error
// occurs, at which point ctx is cancelled for the remaining markets and
// their first error is returned.
func Run(ctx context.Context, bs BookStore, feed Broadcaster, markets []Market) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range markets {
		m := m
		g.Go(func() error {
			return runMarket(gctx, bs, feed, m)
		})
	}
	return g.Wait()
}

func runMarket(ctx context.Context, bs BookStore, feed Broadcaster, m Market) error {
	log.Printf("runner: %s/%s/%s starting (%d timetable rows)", m.Region, m.MarketKind, m.Name, len(m.Rows))
	for _, row := range m.Rows {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := runRow(ctx, bs, feed, row); err != nil {
			return fmt.Errorf("runner: %s/%s/%s @ %s: %w", m.Region, m.MarketKind, m.Name, row.Timestamp, err)
		}
	}
	log.Printf("runner: %s/%s/%s completed", m.Region, m.MarketKind, m.Name)
	return nil
}

func runRow(ctx context.Context, bs BookStore, feed Broadcaster, row timetable.Row) error {
	key := store.StepKey{Region: row.Region, Market: row.Market, Name: row.Name, Timestep: row.Timestep}

	quotes, err := bs.GetBidsOffers(ctx, key)
	if err != nil {
		return fmt.Errorf("get bids/offers: %w", err)
	}
	retailers, err := bs.GetRetailers(ctx, key)
	if err != nil {
		return fmt.Errorf("get retailers: %w", err)
	}

	result, err := clearing.Execute(row, clearing.Book{AgentQuotes: quotes, Retailers: retailers})
	if err != nil {
		return err
	}

	if err := bs.CommitResult(ctx, key, result); err != nil {
		return fmt.Errorf("commit result: %w", err)
	}

	if feed != nil {
		feed.Broadcast(row, result)
	}
	return nil
}

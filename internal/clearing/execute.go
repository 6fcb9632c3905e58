package clearing

import (
	"fmt"
	"sort"

	"github.com/hamlet-sim/lem-engine/internal/quote"
	"github.com/hamlet-sim/lem-engine/internal/rng"
	"github.com/hamlet-sim/lem-engine/internal/timetable"
)

// Book is the per-step input the engine needs to execute one timetable row:
// the agent quotes visible at that (region, market, name, timestep) and the
// retailer rows for the same dimensions (spec §4.11 step 1).
type Book struct {
	AgentQuotes []quote.Quote
	Retailers   map[string]quote.RetailerRow
}

// Execute runs every action named on row against book, in textual order, and
// returns the five freshly-rebuilt local tables (spec §4.11). An unsupported
// action is a configuration error per spec §7.
func Execute(row timetable.Row, book Book) (Result, error) {
	if len(book.AgentQuotes) == 0 && len(book.Retailers) == 0 {
		// Empty-book fast path (spec §7): no error, just empty tables.
		return Result{}, nil
	}

	var result Result
	for _, action := range row.Actions {
		switch action {
		case timetable.ActionClear:
			cleared, uncleared, err := clearStep(row, book)
			if err != nil {
				return Result{}, newError(row, string(action), err)
			}
			result.ClearedBids, result.ClearedOffers = cleared.bids, cleared.offers
			result.UnclearedBids, result.UnclearedOffers = uncleared.bids, uncleared.offers
			result.Transactions = append(result.Transactions, cleared.transactions...)
		case timetable.ActionSettle:
			retailer, ok := primaryRetailer(book.Retailers)
			if !ok {
				return Result{}, newError(row, string(action), fmt.Errorf("settle requires at least one retailer row"))
			}
			balancing := Balance(result.UnclearedBids, result.UnclearedOffers, retailer)
			result.Transactions = append(result.Transactions, balancing...)
			// Balancing absorbs the uncleared residual (spec §4.8).
			result.UnclearedBids = nil
			result.UnclearedOffers = nil

			marketTxs := filterMarketTransactions(result.Transactions)
			result.Transactions = append(result.Transactions, GridAndLevies(marketTxs, retailer)...)
		default:
			return Result{}, newError(row, string(action), fmt.Errorf("unsupported action %q", action))
		}
	}
	return result, nil
}

type clearOutcome struct {
	bids         []ClearedBid
	offers       []ClearedOffer
	transactions []Transaction
}

type unclearOutcome struct {
	bids   []UnclearedBid
	offers []UnclearedOffer
}

func clearStep(row timetable.Row, book Book) (clearOutcome, unclearOutcome, error) {
	aligned := quote.AssembleBook(book.AgentQuotes, book.Retailers)
	seed := rng.SeedFor(row.Region, row.Market, row.Name, row.Timestep)
	bids, offers := quote.Split(aligned, seed)

	mr := Merge(bids, offers, row.Pricing)
	clearedBids, clearedOffers := DeriveCleared(mr.cleared)
	unclearedBids, unclearedOffers := DeriveUncleared(bids, offers, mr.cleared, func(agent string) bool {
		return quote.IsRetailer(book.Retailers, agent)
	})
	transactions := DeriveTransactions(clearedBids, clearedOffers)

	return clearOutcome{bids: clearedBids, offers: clearedOffers, transactions: transactions},
		unclearOutcome{bids: unclearedBids, offers: unclearedOffers}, nil
}

// primaryRetailer picks the lexicographically first retailer key as the
// balancing/grid/levies counterparty. Spec §5 supplements the original
// schema with multiple retailers per market, but settlement still needs a
// single counterparty per residual; deterministic selection by key keeps
// runs reproducible until a real multi-retailer allocation policy exists
// (see DESIGN.md).
func primaryRetailer(retailers map[string]quote.RetailerRow) (quote.RetailerRow, bool) {
	if len(retailers) == 0 {
		return quote.RetailerRow{}, false
	}
	keys := make([]string, 0, len(retailers))
	for k := range retailers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return retailers[keys[0]], true
}

func filterMarketTransactions(txs []Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Type == TransactionMarket {
			out = append(out, t)
		}
	}
	return out
}

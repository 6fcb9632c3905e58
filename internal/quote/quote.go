// Package quote implements Retailer Book assembly and the order-book split
// (spec §4.2, §4.3): turning the raw agent quotes and retailer rows for a
// timetable row into the sorted, cumulative-summed bid/offer slices the
// clearing engine merges. The shuffle-then-sort discipline here is the one
// documented suspension-free, in-memory pass of spec §5; it mirrors the
// teacher's orderbook.Book snapshot style (ndrandal/feed-simulator's
// internal/orderbook/book.go) without the mutable price-level index, since
// this package only ever operates on one step's worth of quotes at a time.
package quote

import (
	"sort"

	"github.com/hamlet-sim/lem-engine/internal/money"
	"github.com/hamlet-sim/lem-engine/internal/rng"
)

// EnergyType identifies the commodity/energy carrier of a quote. The
// original upstream schema does not yet carry this column for retailer
// quotes (spec §4.2); agent quotes may.
type EnergyType string

// Quote is one row of the aligned agent+retailer book (spec §3's "Quote"
// entity, pre-split).
type Quote struct {
	IDAgent    string
	EnergyType EnergyType
	EnergyIn   money.Energy
	EnergyOut  money.Energy
	PricePUIn  money.PU
	PricePUOut money.PU
}

// RetailerRow is one row of spec §3's "Retailer quote" entity, keyed by
// (timestamp, region, market, name, retailer).
type RetailerRow struct {
	Retailer          string
	EnergyPriceSell   money.PU
	EnergyPriceBuy    money.PU
	EnergyQuantitySell money.Energy
	EnergyQuantityBuy  money.Energy
	BalancingPriceSell money.PU
	BalancingPriceBuy  money.PU
	GridLocalSell      money.PU
	GridLocalBuy       money.PU
	GridRetailSell     money.PU
	GridRetailBuy      money.PU
	LeviesPriceSell    money.PU
	LeviesPriceBuy     money.PU
}

// IsRetailer reports whether an agent id belongs to the retailer set, used
// to drop retailer residuals from the uncleared tables (spec §4.6: "their
// residual is folded into balancing").
func IsRetailer(retailers map[string]RetailerRow, idAgent string) bool {
	_, ok := retailers[idAgent]
	return ok
}

// AssembleBook projects retailer rows into the quote schema and appends
// them to the agent book (spec §4.2). Dimension forward-fill is not
// modeled here: the engine only ever builds a book for a single
// (timestamp, timestep, region, market, name), so every row already shares
// the same dimensions by construction.
func AssembleBook(agentQuotes []Quote, retailers map[string]RetailerRow) []Quote {
	book := make([]Quote, 0, len(agentQuotes)+len(retailers))
	book = append(book, agentQuotes...)
	for _, r := range retailers {
		book = append(book, Quote{
			IDAgent:    r.Retailer,
			PricePUIn:  r.EnergyPriceSell,
			PricePUOut: r.EnergyPriceBuy,
			EnergyIn:   r.EnergyQuantitySell,
			EnergyOut:  r.EnergyQuantityBuy,
		})
	}
	return book
}

// Bid is one row of the bid side after the order-book split (spec §4.3).
type Bid struct {
	IDAgentIn    string
	EnergyType   EnergyType
	EnergyIn     money.Energy
	PricePUIn    money.PU
	EnergyCumsum money.Energy
}

// Offer is one row of the offer side after the order-book split (spec §4.3).
type Offer struct {
	IDAgentOut   string
	EnergyType   EnergyType
	EnergyOut    money.Energy
	PricePUOut   money.PU
	EnergyCumsum money.Energy
}

// Split derives the bid and offer sides from the aligned book (spec §4.3):
// rows with energy_in > 0 become bids, rows with energy_out > 0 become
// offers; each side is shuffled with the given seed, stable-sorted by its
// price column (bids descending, offers ascending), and annotated with a
// cumulative energy sum.
func Split(book []Quote, seed int64) (bids []Bid, offers []Offer) {
	for _, q := range book {
		if q.EnergyIn > 0 {
			bids = append(bids, Bid{IDAgentIn: q.IDAgent, EnergyType: q.EnergyType, EnergyIn: q.EnergyIn, PricePUIn: q.PricePUIn})
		}
		if q.EnergyOut > 0 {
			offers = append(offers, Offer{IDAgentOut: q.IDAgent, EnergyType: q.EnergyType, EnergyOut: q.EnergyOut, PricePUOut: q.PricePUOut})
		}
	}

	bidShuffle := rng.New(seed)
	bidShuffle.Shuffle(len(bids), func(i, j int) { bids[i], bids[j] = bids[j], bids[i] })
	offerShuffle := rng.New(seed + 1)
	offerShuffle.Shuffle(len(offers), func(i, j int) { offers[i], offers[j] = offers[j], offers[i] })

	sort.SliceStable(bids, func(i, j int) bool { return bids[i].PricePUIn > bids[j].PricePUIn })
	sort.SliceStable(offers, func(i, j int) bool { return offers[i].PricePUOut < offers[j].PricePUOut })

	var cum money.Energy
	for i := range bids {
		cum += bids[i].EnergyIn
		bids[i].EnergyCumsum = cum
	}
	cum = 0
	for i := range offers {
		cum += offers[i].EnergyOut
		offers[i].EnergyCumsum = cum
	}
	return bids, offers
}

package clearing

import (
	"sort"

	"github.com/hamlet-sim/lem-engine/internal/marketcfg"
	"github.com/hamlet-sim/lem-engine/internal/money"
	"github.com/hamlet-sim/lem-engine/internal/quote"
)

// clearedRow is one row of the cleared set, carrying both sides' own prices
// until the pricing policy collapses them into PricePU (spec §4.4, §4.5).
type clearedRow struct {
	IDAgentIn  string
	IDAgentOut string
	Energy     money.Energy
	pricePUIn  money.PU
	pricePUOut money.PU
	PricePU    money.PU
	Price      money.Price
}

// mergeResult holds the cleared rows of the cumulative-energy ladder (spec
// §4.4: "cleared rows have price_pu_in ≥ price_pu_out"). Non-crossing rows
// are not retained here; DeriveUncleared recomputes the uncleared set from
// scratch against submitted quantities (spec §4.6), so there is nothing for
// this package to carry forward for them.
type mergeResult struct {
	cleared []clearedRow
}

// Merge full-outer-joins bids and offers on energy_cumsum, coalesces right
// columns into left, backward-fills so every joined row carries both active
// prices, then keeps the crossing rows (price_pu_in >= price_pu_out) as the
// cleared set and prices them per the configured policy (spec §4.4, §4.5).
// Non-crossing rows are dropped; the uncleared tables come from
// DeriveUncleared.
func Merge(bids []quote.Bid, offers []quote.Offer, pricing marketcfg.Pricing) mergeResult {
	ladder := outerJoinByCumsum(bids, offers)

	var result mergeResult
	for _, row := range ladder {
		if !row.hasIn || !row.hasOut {
			continue
		}
		if row.PricePUIn >= row.PricePUOut {
			result.cleared = append(result.cleared, clearedRow{
				IDAgentIn:  row.IDAgentIn,
				IDAgentOut: row.IDAgentOut,
				Energy:     marginalEnergy(row),
				pricePUIn:  row.PricePUIn,
				pricePUOut: row.PricePUOut,
			})
		}
	}

	priceCleared(result.cleared, pricing)
	return result
}

// marginalEnergy is the matched quantum at a ladder row: the smaller of the
// two sides' per-row energy at that cumulative-energy threshold (spec
// §4.4). The row's EnergyIn/EnergyOut are the full energies of the bid and
// offer active at that threshold, not the cumsum increment since the
// previous threshold.
func marginalEnergy(row merged) money.Energy {
	if row.EnergyIn < row.EnergyOut {
		return row.EnergyIn
	}
	return row.EnergyOut
}

// priceCleared applies the pricing policy in place (spec §4.5). Uniform
// prices every cleared row at the marginal pair (the last row that cleared,
// i.e. the closest bid/offer crossing); discriminatory prices each row at
// its own midpoint.
func priceCleared(rows []clearedRow, pricing marketcfg.Pricing) {
	switch pricing {
	case marketcfg.PricingDiscriminatory:
		for i := range rows {
			rows[i].PricePU = money.RoundHalfEvenMean(rows[i].pricePUIn, rows[i].pricePUOut)
			rows[i].Price, _ = money.Multiply(rows[i].Energy, rows[i].PricePU)
		}
	default: // marketcfg.PricingUniform
		if len(rows) == 0 {
			return
		}
		marginal := rows[len(rows)-1]
		clearingPrice := money.RoundHalfEvenMean(marginal.pricePUIn, marginal.pricePUOut)
		for i := range rows {
			rows[i].PricePU = clearingPrice
			rows[i].Price, _ = money.Multiply(rows[i].Energy, clearingPrice)
		}
	}
}

// outerJoinByCumsum full-outer-joins two cumulative-sum-ordered slices on
// their EnergyCumsum column (spec §4.4), then backward-fills nulls: a
// threshold with no row on one side takes that side's next non-null value at
// a larger cumsum (hamlet/executor/markets/lem/lem.py's
// fill_null(strategy='backward')), not the last-seen value at a smaller one.
func outerJoinByCumsum(bids []quote.Bid, offers []quote.Offer) []merged {
	thresholds := map[money.Energy]struct{}{}
	for _, b := range bids {
		thresholds[b.EnergyCumsum] = struct{}{}
	}
	for _, o := range offers {
		thresholds[o.EnergyCumsum] = struct{}{}
	}

	sorted := make([]money.Energy, 0, len(thresholds))
	for t := range thresholds {
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	bidByCumsum := make(map[money.Energy]quote.Bid, len(bids))
	for _, b := range bids {
		bidByCumsum[b.EnergyCumsum] = b
	}
	offerByCumsum := make(map[money.Energy]quote.Offer, len(offers))
	for _, o := range offers {
		offerByCumsum[o.EnergyCumsum] = o
	}

	rows := make([]merged, len(sorted))
	var lastIDIn string
	var lastEnergyIn money.Energy
	var lastPriceIn money.PU
	var lastIDOut string
	var lastEnergyOut money.Energy
	var lastPriceOut money.PU
	var haveIn, haveOut bool

	// Walk thresholds descending so each carried value comes from the next
	// larger cumsum, then write into rows by index to restore ascending
	// order for the caller.
	for i := len(sorted) - 1; i >= 0; i-- {
		threshold := sorted[i]
		row := merged{EnergyCumsum: threshold}
		if b, ok := bidByCumsum[threshold]; ok {
			lastIDIn, lastEnergyIn, lastPriceIn, haveIn = b.IDAgentIn, b.EnergyIn, b.PricePUIn, true
		}
		if o, ok := offerByCumsum[threshold]; ok {
			lastIDOut, lastEnergyOut, lastPriceOut, haveOut = o.IDAgentOut, o.EnergyOut, o.PricePUOut, true
		}
		if haveIn {
			row.IDAgentIn, row.EnergyIn, row.PricePUIn, row.hasIn = lastIDIn, lastEnergyIn, lastPriceIn, true
		}
		if haveOut {
			row.IDAgentOut, row.EnergyOut, row.PricePUOut, row.hasOut = lastIDOut, lastEnergyOut, lastPriceOut, true
		}
		rows[i] = row
	}
	return rows
}

package clearing

import (
	"sort"

	"github.com/hamlet-sim/lem-engine/internal/money"
	"github.com/hamlet-sim/lem-engine/internal/quote"
)

// DeriveCleared attaches per-agent trade ordinals and the column renames of
// spec §4.6 ("Cleared bids: ... rename (energy → energy_in, price_pu →
// price_pu_in, price → price_in)").
func DeriveCleared(cleared []clearedRow) ([]ClearedBid, []ClearedOffer) {
	bidOrdinal := map[string]int{}
	offerOrdinal := map[string]int{}

	bids := make([]ClearedBid, 0, len(cleared))
	offers := make([]ClearedOffer, 0, len(cleared))
	for _, c := range cleared {
		bids = append(bids, ClearedBid{
			IDAgentIn:    c.IDAgentIn,
			TradeOrdinal: bidOrdinal[c.IDAgentIn],
			EnergyIn:     c.Energy,
			PricePUIn:    c.PricePU,
			PriceIn:      c.Price,
		})
		bidOrdinal[c.IDAgentIn]++

		offers = append(offers, ClearedOffer{
			IDAgentOut:   c.IDAgentOut,
			TradeOrdinal: offerOrdinal[c.IDAgentOut],
			EnergyOut:    c.Energy,
			PricePUOut:   c.PricePU,
			PriceOut:     c.Price,
		})
		offerOrdinal[c.IDAgentOut]++
	}
	return bids, offers
}

// DeriveUncleared aggregates cleared energy per agent and subtracts it from
// submitted energy, keeping only positive residuals and dropping retailer
// agents, whose residual is folded into balancing instead (spec §4.6). Agent
// keys are sorted before emitting rows so the uncleared tables — and the
// balancing ordinals Balance assigns from them — don't vary with Go's
// randomized map iteration order (spec §5, §8: re-runs must be identical
// modulo the seeded shuffle).
func DeriveUncleared(bids []quote.Bid, offers []quote.Offer, cleared []clearedRow, isRetailer func(agent string) bool) ([]UnclearedBid, []UnclearedOffer) {
	clearedIn := map[string]money.Energy{}
	clearedOut := map[string]money.Energy{}
	for _, c := range cleared {
		clearedIn[c.IDAgentIn] += c.Energy
		clearedOut[c.IDAgentOut] += c.Energy
	}

	submittedIn := map[string]money.Energy{}
	for _, b := range bids {
		submittedIn[b.IDAgentIn] += b.EnergyIn
	}
	submittedOut := map[string]money.Energy{}
	for _, o := range offers {
		submittedOut[o.IDAgentOut] += o.EnergyOut
	}

	agentsIn := make([]string, 0, len(submittedIn))
	for agent := range submittedIn {
		agentsIn = append(agentsIn, agent)
	}
	sort.Strings(agentsIn)

	var unclearedBids []UnclearedBid
	for _, agent := range agentsIn {
		if isRetailer(agent) {
			continue
		}
		submitted := submittedIn[agent]
		if c := clearedIn[agent]; c < submitted {
			unclearedBids = append(unclearedBids, UnclearedBid{IDAgentIn: agent, EnergyIn: submitted - c})
		}
	}

	agentsOut := make([]string, 0, len(submittedOut))
	for agent := range submittedOut {
		agentsOut = append(agentsOut, agent)
	}
	sort.Strings(agentsOut)

	var unclearedOffers []UnclearedOffer
	for _, agent := range agentsOut {
		if isRetailer(agent) {
			continue
		}
		submitted := submittedOut[agent]
		if c := clearedOut[agent]; c < submitted {
			unclearedOffers = append(unclearedOffers, UnclearedOffer{IDAgentOut: agent, EnergyOut: submitted - c})
		}
	}

	return unclearedBids, unclearedOffers
}

// DeriveTransactions diagonal-concatenates cleared bids and offers into the
// market-type transaction rows of spec §4.7.
func DeriveTransactions(bids []ClearedBid, offers []ClearedOffer) []Transaction {
	txs := make([]Transaction, 0, len(bids)+len(offers))
	for _, b := range bids {
		txs = append(txs, Transaction{
			IDAgent:   b.IDAgentIn,
			Ordinal:   b.TradeOrdinal,
			Type:      TransactionMarket,
			EnergyIn:  b.EnergyIn,
			PricePUIn: b.PricePUIn,
			PriceIn:   b.PriceIn,
			Quality:   0,
		})
	}
	for _, o := range offers {
		txs = append(txs, Transaction{
			IDAgent:    o.IDAgentOut,
			Ordinal:    o.TradeOrdinal,
			Type:       TransactionMarket,
			EnergyOut:  o.EnergyOut,
			PricePUOut: o.PricePUOut,
			PriceOut:   o.PriceOut,
			Quality:    0,
		})
	}
	return txs
}

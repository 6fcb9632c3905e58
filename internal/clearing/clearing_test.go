package clearing

import (
	"testing"

	"github.com/hamlet-sim/lem-engine/internal/marketcfg"
	"github.com/hamlet-sim/lem-engine/internal/money"
	"github.com/hamlet-sim/lem-engine/internal/quote"
)

func TestMergeSingleTrivialMatch(t *testing.T) {
	bids := []quote.Bid{{IDAgentIn: "b1", EnergyIn: 5, PricePUIn: 10, EnergyCumsum: 5}}
	offers := []quote.Offer{{IDAgentOut: "o1", EnergyOut: 5, PricePUOut: 8, EnergyCumsum: 5}}

	mr := Merge(bids, offers, marketcfg.PricingUniform)
	if len(mr.cleared) != 1 {
		t.Fatalf("got %d cleared rows, want 1", len(mr.cleared))
	}
	row := mr.cleared[0]
	if row.Energy != 5 {
		t.Errorf("energy = %d, want 5", row.Energy)
	}
	if row.PricePU != 9 {
		t.Errorf("price_pu = %d, want 9", row.PricePU)
	}
	if row.Price != 45 {
		t.Errorf("price = %d, want 45", row.Price)
	}
	unclearedBids, unclearedOffers := DeriveUncleared(bids, offers, mr.cleared, func(string) bool { return false })
	if len(unclearedBids) != 0 || len(unclearedOffers) != 0 {
		t.Errorf("expected no uncleared rows, got bids=%+v offers=%+v", unclearedBids, unclearedOffers)
	}
}

func TestMergePartialFill(t *testing.T) {
	bids := []quote.Bid{{IDAgentIn: "b1", EnergyIn: 5, PricePUIn: 10, EnergyCumsum: 5}}
	offers := []quote.Offer{{IDAgentOut: "o1", EnergyOut: 8, PricePUOut: 8, EnergyCumsum: 8}}

	mr := Merge(bids, offers, marketcfg.PricingUniform)
	if len(mr.cleared) != 1 {
		t.Fatalf("got %d cleared rows, want 1", len(mr.cleared))
	}
	if mr.cleared[0].Energy != 5 {
		t.Errorf("cleared energy = %d, want 5", mr.cleared[0].Energy)
	}
	if mr.cleared[0].PricePU != 9 {
		t.Errorf("cleared price_pu = %d, want 9", mr.cleared[0].PricePU)
	}

	_, unclearedOffers := DeriveUncleared(bids, offers, mr.cleared, func(string) bool { return false })
	if len(unclearedOffers) != 1 || unclearedOffers[0].EnergyOut != 3 {
		t.Fatalf("uncleared offers = %+v, want residual 3", unclearedOffers)
	}
}

func TestMergeNoOverlap(t *testing.T) {
	bids := []quote.Bid{{IDAgentIn: "b1", EnergyIn: 5, PricePUIn: 5, EnergyCumsum: 5}}
	offers := []quote.Offer{{IDAgentOut: "o1", EnergyOut: 5, PricePUOut: 9, EnergyCumsum: 5}}

	mr := Merge(bids, offers, marketcfg.PricingUniform)
	if len(mr.cleared) != 0 {
		t.Fatalf("expected no cleared rows, got %+v", mr.cleared)
	}
}

func TestMergeUniformVsDiscriminatory(t *testing.T) {
	bids := []quote.Bid{
		{IDAgentIn: "b1", EnergyIn: 5, PricePUIn: 10, EnergyCumsum: 5},
		{IDAgentIn: "b2", EnergyIn: 5, PricePUIn: 9, EnergyCumsum: 10},
	}
	offers := []quote.Offer{
		{IDAgentOut: "o1", EnergyOut: 5, PricePUOut: 8, EnergyCumsum: 5},
		{IDAgentOut: "o2", EnergyOut: 5, PricePUOut: 7, EnergyCumsum: 10},
	}

	uniform := Merge(bids, offers, marketcfg.PricingUniform)
	for _, row := range uniform.cleared {
		if row.PricePU != 8 {
			t.Errorf("uniform price_pu = %d, want 8 for every row", row.PricePU)
		}
	}

	disc := Merge(bids, offers, marketcfg.PricingDiscriminatory)
	if disc.cleared[0].PricePU != 9 {
		t.Errorf("discriminatory row 0 price_pu = %d, want 9", disc.cleared[0].PricePU)
	}
	if disc.cleared[1].PricePU != 8 {
		t.Errorf("discriminatory row 1 price_pu = %d, want 8", disc.cleared[1].PricePU)
	}
}

// TestMergeBackwardFillUsesNextHigherCumsum pins down the ladder's fill
// direction: a threshold with no row on one side must inherit that side's
// value from the next *larger* cumsum, not carry forward the last-seen
// value from a smaller one. Here the lone offer only posts at cumsum 10, so
// the bid-only threshold at cumsum 5 has no offer to its own: backward-fill
// pulls the offer down from 10, letting both bid rows cross; a forward-fill
// would leave the threshold-5 row without an offer side at all and drop it.
func TestMergeBackwardFillUsesNextHigherCumsum(t *testing.T) {
	bids := []quote.Bid{
		{IDAgentIn: "b1", EnergyIn: 5, PricePUIn: 10, EnergyCumsum: 5},
		{IDAgentIn: "b2", EnergyIn: 5, PricePUIn: 9, EnergyCumsum: 10},
	}
	offers := []quote.Offer{
		{IDAgentOut: "o1", EnergyOut: 10, PricePUOut: 7, EnergyCumsum: 10},
	}

	mr := Merge(bids, offers, marketcfg.PricingUniform)
	if len(mr.cleared) != 2 {
		t.Fatalf("got %d cleared rows, want 2 (backward-fill should cross at both thresholds)", len(mr.cleared))
	}
	var total money.Energy
	for _, row := range mr.cleared {
		total += row.Energy
	}
	if total != 10 {
		t.Errorf("total cleared energy = %d, want 10", total)
	}
}

func TestDeriveUnclearedSortedByAgent(t *testing.T) {
	bids := []quote.Bid{
		{IDAgentIn: "zeta", EnergyIn: 5},
		{IDAgentIn: "alpha", EnergyIn: 3},
		{IDAgentIn: "mike", EnergyIn: 7},
	}

	unclearedBids, _ := DeriveUncleared(bids, nil, nil, func(string) bool { return false })
	if len(unclearedBids) != 3 {
		t.Fatalf("got %d uncleared bids, want 3", len(unclearedBids))
	}
	want := []string{"alpha", "mike", "zeta"}
	for i, agent := range want {
		if unclearedBids[i].IDAgentIn != agent {
			t.Errorf("uncleared bid %d = %s, want %s (agent keys must sort for determinism)", i, unclearedBids[i].IDAgentIn, agent)
		}
	}
}

func TestBalanceCapsOverflowingEnergy(t *testing.T) {
	bids := []UnclearedBid{{IDAgentIn: "b1", EnergyIn: 1 << 40}}
	retailer := quote.RetailerRow{BalancingPriceBuy: 1 << 30}
	txs := Balance(bids, nil, retailer)
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}
	if txs[0].EnergyIn != money.BalancingOverflowCap {
		t.Errorf("energy_in = %d, want capped at %d", txs[0].EnergyIn, money.BalancingOverflowCap)
	}
}

func TestBalanceNoOverflowPassesThrough(t *testing.T) {
	offers := []UnclearedOffer{{IDAgentOut: "o1", EnergyOut: 3}}
	retailer := quote.RetailerRow{BalancingPriceSell: 8}
	txs := Balance(nil, offers, retailer)
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}
	if txs[0].EnergyOut != 3 || txs[0].PriceOut != 24 {
		t.Errorf("got energy_out=%d price_out=%d, want 3/24", txs[0].EnergyOut, txs[0].PriceOut)
	}
}

func TestCoupleIdentityWhenDisabled(t *testing.T) {
	residual := CouplingResidual{Bids: []UnclearedBid{{IDAgentIn: "b1", EnergyIn: 3}}}
	out, err := Couple(residual, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Bids) != 1 {
		t.Fatalf("expected identity pass-through, got %+v", out)
	}
}

func TestCoupleDetectsCycle(t *testing.T) {
	residual := CouplingResidual{Visited: map[string]bool{"neighbourA": true}}
	_, err := Couple(residual, "neighbourA")
	if err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestDeriveTransactionsPriceBalanceIdentity(t *testing.T) {
	bids := []ClearedBid{{IDAgentIn: "b1", EnergyIn: 5, PricePUIn: 9, PriceIn: 45}}
	offers := []ClearedOffer{{IDAgentOut: "o1", EnergyOut: 5, PricePUOut: 9, PriceOut: 45}}
	txs := DeriveTransactions(bids, offers)
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	var sumIn, sumOut money.Price
	for _, tx := range txs {
		sumIn += tx.PriceIn
		sumOut += tx.PriceOut
	}
	if sumIn-sumOut != 0 {
		t.Errorf("price-balance identity violated: in=%d out=%d", sumIn, sumOut)
	}
}

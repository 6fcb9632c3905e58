package clearing

import (
	"log"

	"github.com/hamlet-sim/lem-engine/internal/money"
	"github.com/hamlet-sim/lem-engine/internal/quote"
)

// Balance diagonally concatenates residual uncleared bids/offers into
// balancing transactions against the retailer (spec §4.8), capping
// individual energy at money.BalancingOverflowCap and re-deriving the price
// whenever the price*energy multiplication would overflow. It returns the
// balancing transactions; the caller is responsible for clearing the
// uncleared tables afterward, per spec §4.8's "balancing has absorbed them".
func Balance(bids []UnclearedBid, offers []UnclearedOffer, retailer quote.RetailerRow) []Transaction {
	txs := make([]Transaction, 0, len(bids)+len(offers))
	ordinal := 0
	for _, b := range bids {
		energy, price := priceBalancing(b.EnergyIn, retailer.BalancingPriceBuy)
		txs = append(txs, Transaction{
			IDAgent:   b.IDAgentIn,
			Ordinal:   ordinal,
			Type:      TransactionBalancing,
			EnergyIn:  energy,
			PricePUIn: retailer.BalancingPriceBuy,
			PriceIn:   price,
			Quality:   0,
		})
		ordinal++
	}
	for _, o := range offers {
		energy, price := priceBalancing(o.EnergyOut, retailer.BalancingPriceSell)
		txs = append(txs, Transaction{
			IDAgent:    o.IDAgentOut,
			Ordinal:    ordinal,
			Type:       TransactionBalancing,
			EnergyOut:  energy,
			PricePUOut: retailer.BalancingPriceSell,
			PriceOut:   price,
			Quality:    0,
		})
		ordinal++
	}
	return txs
}

// priceBalancing multiplies energy by a per-unit price, capping energy at
// money.BalancingOverflowCap and re-deriving the price if the
// multiplication would overflow the signed-64-bit price budget (spec §4.8,
// §7, §9).
func priceBalancing(energy money.Energy, pu money.PU) (money.Energy, money.Price) {
	price, overflow := money.Multiply(energy, pu)
	if !overflow {
		return energy, price
	}
	capped := energy
	if capped > money.BalancingOverflowCap {
		capped = money.BalancingOverflowCap
	}
	price, _ = money.Multiply(capped, pu)
	log.Printf("clearing: balancing energy %d x price_pu %d overflows int64; energy capped at %d", energy, pu, capped)
	return capped, price
}

// GridAndLevies clones the step's market transactions twice, pricing one
// clone at the retailer's grid-fee rates and the other at its levies rates
// (spec §4.9). Grid-local vs grid-retail differentiation is deferred until
// clearing distinguishes wholesale from local counterparties, so every row
// uses grid_local for now.
func GridAndLevies(marketTxs []Transaction, retailer quote.RetailerRow) []Transaction {
	out := make([]Transaction, 0, len(marketTxs)*2)
	out = append(out, repriceTransactions(marketTxs, TransactionGrid, retailer.GridLocalBuy, retailer.GridLocalSell)...)
	out = append(out, repriceTransactions(marketTxs, TransactionLevies, retailer.LeviesPriceBuy, retailer.LeviesPriceSell)...)
	return out
}

func repriceTransactions(src []Transaction, txType TransactionType, puBuy, puSell money.PU) []Transaction {
	out := make([]Transaction, len(src))
	for i, t := range src {
		clone := t
		clone.Type = txType
		if t.EnergyIn > 0 {
			clone.PricePUIn = puBuy
			clone.PriceIn, _ = money.Multiply(t.EnergyIn, puBuy)
		}
		if t.EnergyOut > 0 {
			clone.PricePUOut = puSell
			clone.PriceOut, _ = money.Multiply(t.EnergyOut, puSell)
		}
		out[i] = clone
	}
	return out
}

// CouplingResidual is the pure input/output of the coupling hook (spec §4.10).
type CouplingResidual struct {
	Bids    []UnclearedBid
	Offers  []UnclearedOffer
	Visited map[string]bool
}

// Couple re-posts residual uncleared bids/offers to a neighbour market. When
// coupling is disabled it is the identity function. The visited set guards
// against the cyclic-coupling risk of spec §9: an "above" market chained
// with a "below" market between the same two instances must not re-enter.
func Couple(residual CouplingResidual, neighbour string) (CouplingResidual, error) {
	if neighbour == "" {
		return residual, nil
	}
	if residual.Visited[neighbour] {
		return CouplingResidual{}, &couplingCycleError{neighbour: neighbour}
	}
	visited := make(map[string]bool, len(residual.Visited)+1)
	for k := range residual.Visited {
		visited[k] = true
	}
	visited[neighbour] = true
	return CouplingResidual{Bids: residual.Bids, Offers: residual.Offers, Visited: visited}, nil
}

type couplingCycleError struct {
	neighbour string
}

func (e *couplingCycleError) Error() string {
	return "clearing: coupling cycle detected re-entering market " + e.neighbour
}

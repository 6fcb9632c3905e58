// Package clearing implements the per-step Clearing Engine (spec §4.4-§4.11):
// the cumulative-merge match, pricing policy, cleared/uncleared derivation,
// transactions table, balancing settlement, grid/levies settlement, and the
// coupling hook. It is deliberately stateless between calls — Execute takes
// the quote-level inputs for one timetable row and returns the five result
// tables, matching the "per-row, all derived tables
// committed before the next row runs" discipline of spec §5. The dispatch
// shape (look up the row, run each requested action) follows the teacher's
// per-tick Step dispatch in ndrandal/feed-simulator's
// internal/orderbook/simulator.go, generalized from a single weighted-random
// action to the timetable's explicit action list.
package clearing

import (
	"time"

	"github.com/hamlet-sim/lem-engine/internal/money"
	"github.com/hamlet-sim/lem-engine/internal/timetable"
)

// TransactionType is spec §3's type_transaction enum.
type TransactionType string

const (
	TransactionMarket    TransactionType = "market"
	TransactionRetail    TransactionType = "retail"
	TransactionBalancing TransactionType = "balancing"
	TransactionGrid      TransactionType = "grid"
	TransactionLevies    TransactionType = "levies"
)

// ClearedBid is spec §3's "Cleared bid" entity.
type ClearedBid struct {
	IDAgentIn    string
	TradeOrdinal int
	EnergyIn     money.Energy
	PricePUIn    money.PU
	PriceIn      money.Price
}

// ClearedOffer is spec §3's "Cleared offer" entity.
type ClearedOffer struct {
	IDAgentOut   string
	TradeOrdinal int
	EnergyOut    money.Energy
	PricePUOut   money.PU
	PriceOut     money.Price
}

// UnclearedBid is spec §3's "Uncleared bid" entity: residual energy_in kept
// only if positive, after retailer rows are dropped (spec §4.6).
type UnclearedBid struct {
	IDAgentIn string
	EnergyIn  money.Energy
}

// UnclearedOffer is spec §3's "Uncleared offer" entity.
type UnclearedOffer struct {
	IDAgentOut string
	EnergyOut  money.Energy
}

// Transaction is spec §3's "Transaction" entity.
type Transaction struct {
	IDAgent   string
	Ordinal   int
	Type      TransactionType
	EnergyIn  money.Energy
	EnergyOut money.Energy
	PricePUIn money.PU
	PricePUOut money.PU
	PriceIn   money.Price
	PriceOut  money.Price
	Quality   int32
}

// Result is the five local tables produced for one timetable row, reset and
// rebuilt from scratch every time (spec §3: "cleared of any prior partial
// content for that row").
type Result struct {
	ClearedBids     []ClearedBid
	ClearedOffers   []ClearedOffer
	UnclearedBids   []UnclearedBid
	UnclearedOffers []UnclearedOffer
	Transactions    []Transaction
}

// Error is the typed diagnostic of spec §7, carrying the dimensions that
// identify the failing timetable row.
type Error struct {
	Region    string
	Market    string
	Name      string
	Timestamp time.Time
	Timestep  time.Time
	Action    string
	Err       error
}

func (e *Error) Error() string {
	return "clearing: " + e.Region + "/" + e.Market + "/" + e.Name +
		" @ " + e.Timestamp.Format(time.RFC3339) + "/" + e.Timestep.Format(time.RFC3339) +
		" action=" + e.Action + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(row timetable.Row, action string, err error) *Error {
	return &Error{
		Region:    row.Region,
		Market:    row.Market,
		Name:      row.Name,
		Timestamp: row.Timestamp,
		Timestep:  row.Timestep,
		Action:    action,
		Err:       err,
	}
}

// merged is one row of the joined cumulative-energy ladder (spec §4.4),
// carrying both the active bid side and active offer side at a given
// cumulative-energy threshold.
type merged struct {
	EnergyCumsum money.Energy
	IDAgentIn    string
	EnergyIn     money.Energy
	PricePUIn    money.PU
	hasIn        bool
	IDAgentOut   string
	EnergyOut    money.Energy
	PricePUOut   money.PU
	hasOut       bool
}

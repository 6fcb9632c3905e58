// Package timetable implements the Timetable Builder (spec §4.1): a pure
// function that expands a market's clearing/timing configuration into the
// ordered sequence of rows the clearing engine executes. It carries no
// state and touches no I/O, mirroring the declarative construction style the
// teacher uses for static per-symbol metadata (ndrandal/feed-simulator's
// internal/symbol package) but generalized into a computed schedule instead
// of a hard-coded table.
package timetable

import (
	"fmt"
	"sort"
	"time"

	"github.com/hamlet-sim/lem-engine/internal/marketcfg"
)

// Action is the textual, comma-joinable action tag of spec §3/§4.11. A row's
// Actions are executed in order, so Clear always precedes Settle when both
// are present.
type Action string

const (
	ActionClear   Action = "clear"
	ActionSettle  Action = "settle"
)

// Row is one timetable row (spec §3's "Timetable row" entity).
type Row struct {
	Region    string
	Market    string
	Name      string
	Type      marketcfg.ClearingType
	Method    marketcfg.Method
	Pricing   marketcfg.Pricing
	Coupling  marketcfg.Coupling
	Timestamp time.Time
	Timestep  time.Time
	Actions   []Action
}

// HasAction reports whether a is present in the row's action set.
func (r Row) HasAction(a Action) bool {
	for _, have := range r.Actions {
		if have == a {
			return true
		}
	}
	return false
}

// Build expands m's clearing/timing configuration into a timetable covering
// [simStart, simEnd), per spec §4.1. Only clearing.type = ex-ante is fully
// specified; ex-post rows are still emitted (coupling/pricing/method are
// opaque to the builder) but the engine treats ex-post as a stub per spec §9.
func Build(m marketcfg.Market, simStart, simEnd time.Time) ([]Row, error) {
	if err := m.Clearing.Validate(); err != nil {
		return nil, err
	}

	timing := m.Clearing.Timing
	h0, h1 := timing.Horizon()
	opening := timing.Opening()
	frequency := timing.Frequency()
	duration := timing.Duration()
	closing := timing.Closing()

	if duration <= 0 {
		return nil, fmt.Errorf("timetable: market %s/%s/%s: timing.duration must be > 0", m.Region, m.Market, m.Name)
	}
	if opening <= 0 {
		return nil, fmt.Errorf("timetable: market %s/%s/%s: timing.opening must be > 0", m.Region, m.Market, m.Name)
	}

	start := timing.Start.Resolve(simStart)

	var rows []Row
	for o := start; o.Before(simEnd); o = o.Add(opening) {
		var blockEnd time.Time
		if frequency == opening {
			blockEnd = o.Add(opening)
		} else {
			blockEnd = o.Add(h1)
		}

		for f := o; f.Before(blockEnd); f = f.Add(frequency) {
			block := buildBlock(o, f, h0, h1, duration)
			applySettling(block, f, closing, timing.Settling)
			rows = append(rows, block...)
		}
	}

	for i := range rows {
		rows[i].Region = m.Region
		rows[i].Market = m.Market
		rows[i].Name = m.Name
		rows[i].Type = m.Clearing.Type
		rows[i].Method = m.Clearing.Method
		rows[i].Pricing = m.Clearing.Pricing
		rows[i].Coupling = m.Clearing.Coupling
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		}
		return rows[i].Timestep.Before(rows[j].Timestep)
	})

	return rows, nil
}

// buildBlock emits delivery steps T in [max(O+h0, F), O+h1) stepping by
// duration, each stamped with timestamp=F, action=clear (spec §4.1).
func buildBlock(o, f time.Time, h0, h1, duration time.Duration) []Row {
	lo := o.Add(h0)
	if f.After(lo) {
		lo = f
	}
	hi := o.Add(h1)

	var block []Row
	for t := lo; t.Before(hi); t = t.Add(duration) {
		block = append(block, Row{
			Timestamp: f,
			Timestep:  t,
			Actions:   []Action{ActionClear},
		})
	}
	return block
}

// applySettling mutates block in place per spec §4.1's settling adjustment.
func applySettling(block []Row, f time.Time, closing time.Duration, settling marketcfg.Settling) {
	switch settling {
	case marketcfg.SettlingContinuous:
		for i := range block {
			t := block[i].Timestep
			if !t.After(f) {
				block[i].Actions = append(block[i].Actions, ActionSettle)
			}
			if t.Sub(f) < closing {
				block[i].Actions = []Action{ActionSettle}
			}
		}
	case marketcfg.SettlingPeriodic:
		appendSettle := false
		replaceSettle := false
		for _, row := range block {
			d := row.Timestep.Sub(f)
			if !row.Timestep.After(f.Add(closing)) {
				appendSettle = true
			}
			if d < closing {
				replaceSettle = true
			}
		}
		for i := range block {
			if appendSettle {
				block[i].Actions = append(block[i].Actions, ActionSettle)
			}
			if replaceSettle {
				block[i].Actions = []Action{ActionSettle}
			}
		}
	}
}

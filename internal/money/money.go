// Package money implements the fixed-point monetary and energy arithmetic
// the clearing and settlement path is built on (spec §3, §4.5, §9): all
// prices and energies are integers in their smallest unit, and midpoint
// rounding is always half-to-even. No floating-point value ever enters this
// package.
package money

// PU is a per-unit price, signed 32-bit in the smallest currency unit
// (spec §3: price_pu_in/out cast to signed 32-bit).
type PU = int32

// Price is a total price, signed 64-bit in the smallest currency unit
// (spec §3: price stored as signed 64-bit).
type Price = int64

// Energy is an unsigned energy quantity in the smallest energy unit, e.g. Wh
// (spec §3: energies are unsigned integers).
type Energy = uint64

// BalancingOverflowCap is the explicit safety net of spec §4.8 / §9: when a
// per-row balancing price*energy multiplication would overflow a signed
// 64-bit price, the row's energy is capped at this value and the price is
// re-derived from the capped energy. The open question ("cap, error, or
// widen the integer width?") is resolved in favor of capping — see
// DESIGN.md "Open Questions".
const BalancingOverflowCap Energy = 1_000_000

// RoundHalfEvenMean rounds (a+b)/2 to the nearest integer, ties rounding to
// even, matching Python's banker's-rounding `round()` used by the original
// pricing policies (spec §4.5, §9: "Midpoint rounding is half-to-even").
func RoundHalfEvenMean(a, b PU) PU {
	sum := int64(a) + int64(b)
	return PU(roundHalfEvenDiv(sum, 2))
}

// roundHalfEvenDiv computes round-half-to-even(num/den) for den > 0, without
// any floating-point intermediate.
func roundHalfEvenDiv(num, den int64) int64 {
	if den <= 0 {
		panic("money: roundHalfEvenDiv requires a positive denominator")
	}

	q := num / den
	r := num % den
	if r == 0 {
		return q
	}

	// Normalize remainder to be non-negative for comparison against the
	// midpoint, matching truncating-division semantics of num/den above.
	if r < 0 {
		r += den
		q--
	}

	twice := r * 2
	switch {
	case twice < den:
		return q
	case twice > den:
		return q + 1
	default: // exactly at the midpoint: round to even
		if q%2 == 0 {
			return q
		}
		return q + 1
	}
}

// Multiply returns energy * pricePerUnit as a signed 64-bit total price, and
// reports whether the multiplication overflowed the signed-64-bit budget.
func Multiply(energy Energy, pu PU) (price Price, overflow bool) {
	if energy == 0 || pu == 0 {
		return 0, false
	}
	if energy > 1<<62 {
		return 0, true
	}
	e := int64(energy)
	p := e * int64(pu)
	if p/e != int64(pu) {
		return 0, true
	}
	return p, false
}

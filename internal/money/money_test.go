package money

import "testing"

func TestRoundHalfEvenMean(t *testing.T) {
	cases := []struct {
		a, b PU
		want PU
	}{
		{10, 8, 9},   // 18/2 = 9, exact
		{9, 7, 8},    // 16/2 = 8, exact
		{10, 9, 10},  // 19/2 = 9.5 -> round to even (10)
		{11, 10, 10}, // 21/2 = 10.5 -> round to even (10)
	}
	for _, c := range cases {
		got := RoundHalfEvenMean(c.a, c.b)
		if got != c.want {
			t.Errorf("RoundHalfEvenMean(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestRoundHalfEvenMeanTieToEven(t *testing.T) {
	// 3 and 2 sum to 5, 5/2 = 2.5, nearest even is 2.
	if got := RoundHalfEvenMean(3, 2); got != 2 {
		t.Errorf("RoundHalfEvenMean(3,2) = %d, want 2", got)
	}
	// 5 and 4 sum to 9, 9/2 = 4.5, nearest even is 4.
	if got := RoundHalfEvenMean(5, 4); got != 4 {
		t.Errorf("RoundHalfEvenMean(5,4) = %d, want 4", got)
	}
	// 7 and 4 sum to 11, 11/2 = 5.5, nearest even is 6.
	if got := RoundHalfEvenMean(7, 4); got != 6 {
		t.Errorf("RoundHalfEvenMean(7,4) = %d, want 6", got)
	}
}

func TestRoundHalfEvenDivNegative(t *testing.T) {
	// -5/2 = -2.5 -> nearest even is -2.
	if got := roundHalfEvenDiv(-5, 2); got != -2 {
		t.Errorf("roundHalfEvenDiv(-5,2) = %d, want -2", got)
	}
	// -3/2 = -1.5 -> nearest even is -2.
	if got := roundHalfEvenDiv(-3, 2); got != -2 {
		t.Errorf("roundHalfEvenDiv(-3,2) = %d, want -2", got)
	}
}

func TestMultiply(t *testing.T) {
	price, overflow := Multiply(5, 9)
	if overflow {
		t.Fatal("unexpected overflow")
	}
	if price != 45 {
		t.Errorf("Multiply(5,9) = %d, want 45", price)
	}
}

func TestMultiplyZero(t *testing.T) {
	price, overflow := Multiply(0, 9)
	if overflow || price != 0 {
		t.Errorf("Multiply(0,9) = %d,%v want 0,false", price, overflow)
	}
}

func TestMultiplyOverflow(t *testing.T) {
	// A deliberately huge energy * price pair that overflows int64.
	_, overflow := Multiply(1<<62, 1<<10)
	if !overflow {
		t.Fatal("expected overflow to be detected")
	}
}

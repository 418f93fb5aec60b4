package evcalc

import "testing"

func TestIsqrtProperty(t *testing.T) {
	// Values whose square root and (root+1) both stay well clear of u128
	// overflow, so mul128 saturation never masks the property under test.
	cases := []struct{ hi, lo uint64 }{
		{0, 0}, {0, 1}, {0, 4}, {0, 9}, {0, 100}, {0, 101},
		{0, 1_000_000_000_000}, {1, 0}, {1 << 32, 12345},
	}
	for _, c := range cases {
		n := u128{c.hi, c.lo}
		r := isqrt(n)
		if mul128(r, r).gt(n) {
			t.Fatalf("isqrt(%v)^2 > n: r=%v n=%v", n, r, n)
		}
		rPlus1 := r.add(uint128From(1))
		if !mul128(rPlus1, rPlus1).gt(n) {
			t.Fatalf("n >= (isqrt(n)+1)^2: r=%v n=%v", r, n)
		}
	}
}

func TestIsqrtKnownValues(t *testing.T) {
	tests := map[uint64]uint64{0: 0, 1: 1, 4: 2, 9: 3, 100: 10, 101: 10}
	for n, want := range tests {
		_, got := IsqrtU128Halves(0, n)
		if got != want {
			t.Errorf("isqrt(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestAllocateEmptyBoard(t *testing.T) {
	var deployed [Squares]uint64
	result := Allocate(deployed)
	if result.PositiveEVCount != 0 {
		t.Fatalf("expected no positive squares, got %d", result.PositiveEVCount)
	}
	if result.TotalOptimalStake != 0 || result.TotalExpectedProfit != 0 {
		t.Fatalf("expected zero totals, got stake=%d profit=%d", result.TotalOptimalStake, result.TotalExpectedProfit)
	}
}

func TestAllocateSingleSquareHasNoLosersPool(t *testing.T) {
	var deployed [Squares]uint64
	deployed[0] = 1_000_000_000
	result := Allocate(deployed)
	if result.Squares[0].IsPositive {
		t.Fatalf("square with no losers pool should not be +EV")
	}
}

func TestAllocateMultipleSquaresHasPositiveEV(t *testing.T) {
	var deployed [Squares]uint64
	deployed[0] = 1_000_000_000
	deployed[1] = 500_000_000
	deployed[2] = 200_000_000
	result := Allocate(deployed)
	if result.PositiveEVCount == 0 {
		t.Fatalf("expected at least one +EV square")
	}
}

func TestOptimalStakeNeverNegativeAndZeroEdgeCases(t *testing.T) {
	cases := []struct {
		total, ti uint64
	}{
		{0, 0},
		{100, 0},
		{50, 100}, // S <= T
		{100, 100},
	}
	for _, c := range cases {
		x := optimalStake(c.total, c.ti)
		if c.ti == 0 && x != 0 {
			t.Fatalf("T[i]=0 must give optimal=0, got %d", x)
		}
		if c.total <= c.ti && x != 0 {
			t.Fatalf("S<=T[i] must give optimal=0, got %d", x)
		}
	}
}

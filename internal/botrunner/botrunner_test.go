package botrunner

import (
	"testing"

	"github.com/Kriptikz/evorebot/internal/evcalc"
)

func TestPickAllocationManual(t *testing.T) {
	cfg := Config{Strategy: StrategyManual, Params: StrategyParams{ManualSquare: 3, ManualAmount: 500}}
	square, amount := pickAllocation(cfg, evcalc.BoardEV{})
	if square != 3 || amount != 500 {
		t.Fatalf("expected manual (3, 500), got (%d, %d)", square, amount)
	}
}

func TestPickAllocationEVNoPositiveSquares(t *testing.T) {
	cfg := Config{Strategy: StrategyEV, Bankroll: 1_000_000}
	square, amount := pickAllocation(cfg, evcalc.BoardEV{})
	if square != 0 || amount != 0 {
		t.Fatalf("expected (0, 0) with no positive squares, got (%d, %d)", square, amount)
	}
}

func TestPickAllocationEVCapsToBankroll(t *testing.T) {
	var ev evcalc.BoardEV
	ev.Squares[7] = evcalc.SquareEV{Index: 7, OptimalStake: 10_000, ExpectedProfit: 50, IsPositive: true}
	cfg := Config{Strategy: StrategyEV, Bankroll: 1_000}

	square, amount := pickAllocation(cfg, ev)
	if square != 7 {
		t.Fatalf("expected square 7, got %d", square)
	}
	if amount != 1_000 {
		t.Fatalf("expected stake capped to bankroll 1000, got %d", amount)
	}
}

func TestPickAllocationEVPicksHighestProfitSquare(t *testing.T) {
	var ev evcalc.BoardEV
	ev.Squares[2] = evcalc.SquareEV{Index: 2, OptimalStake: 100, ExpectedProfit: 10, IsPositive: true}
	ev.Squares[9] = evcalc.SquareEV{Index: 9, OptimalStake: 200, ExpectedProfit: 40, IsPositive: true}
	cfg := Config{Strategy: StrategyEV, Bankroll: 1_000_000}

	square, amount := pickAllocation(cfg, ev)
	if square != 9 || amount != 200 {
		t.Fatalf("expected highest-profit square 9 with stake 200, got (%d, %d)", square, amount)
	}
}

func TestPickAllocationPercentage(t *testing.T) {
	var ev evcalc.BoardEV
	ev.Squares[4] = evcalc.SquareEV{Index: 4, OptimalStake: 9999, ExpectedProfit: 1, IsPositive: true}
	cfg := Config{Strategy: StrategyPercentage, Bankroll: 10_000, Params: StrategyParams{Percent: 0.1}}

	square, amount := pickAllocation(cfg, ev)
	if square != 4 || amount != 1_000 {
		t.Fatalf("expected (4, 1000) from 10%% of bankroll, got (%d, %d)", square, amount)
	}
}

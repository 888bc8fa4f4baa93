package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They pin the derivation rules
// both engines depend on: line/total rounding, zero-divisor behavior, and the
// sold-quantity identity.

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestLineCost_RoundsToMoney(t *testing.T) {
	// 0.333 kg at 10.005 per kg = 3.331665 -> 3.33
	got := LineCost(d("0.333"), d("10.005"))
	if !got.Equal(d("3.33")) {
		t.Fatalf("expected 3.33, got %s", got)
	}
}

func TestSumLineCosts_TotalsAlreadyRoundedLines(t *testing.T) {
	lines := []decimal.Decimal{
		LineCost(d("1"), d("0.335")), // 0.34
		LineCost(d("1"), d("0.335")), // 0.34
		LineCost(d("1"), d("0.335")), // 0.34
	}
	total := SumLineCosts(lines)
	// Sum of rounded lines, not a rounded sum: 1.02, not 1.01.
	if !total.Equal(d("1.02")) {
		t.Fatalf("expected 1.02, got %s", total)
	}
}

func TestCostPerWeightUnit_ZeroWeightYieldsZero(t *testing.T) {
	if got := CostPerWeightUnit(d("500"), decimal.Zero); !got.IsZero() {
		t.Fatalf("expected zero for zero weight, got %s", got)
	}
	if got := CostPerWeightUnit(d("500"), d("-1")); !got.IsZero() {
		t.Fatalf("expected zero for negative weight, got %s", got)
	}
}

func TestCostPerItem_ZeroYieldYieldsZero(t *testing.T) {
	if got := CostPerItem(d("500"), decimal.Zero); !got.IsZero() {
		t.Fatalf("expected zero for zero yield, got %s", got)
	}
}

// A 10 kg batch costing 500 rates at 50 per kg; a recipe using 2 kg carries
// 100 of that cost.
func TestPreparationRateAndUsageCost(t *testing.T) {
	rate := CostPerWeightUnit(d("500"), d("10"))
	if !rate.Equal(d("50")) {
		t.Fatalf("expected rate 50, got %s", rate)
	}
	usage := LineCost(d("2"), rate)
	if !usage.Equal(d("100")) {
		t.Fatalf("expected usage cost 100, got %s", usage)
	}
}

func TestCostPerWeightUnit_KeepsFourPlaces(t *testing.T) {
	// 100 / 3 = 33.3333 at 4 places.
	rate := CostPerWeightUnit(d("100"), d("3"))
	if !rate.Equal(d("33.3333")) {
		t.Fatalf("expected 33.3333, got %s", rate)
	}
}

func TestDeriveSold_Identity(t *testing.T) {
	// opening 20, inflow 50, transfer-out 10 + wastage 2 = 12, counted 15.
	sold := DeriveSold(d("20"), d("50"), d("12"), d("15"))
	if !sold.Equal(d("43")) {
		t.Fatalf("expected sold 43, got %s", sold)
	}
}

func TestDeriveSold_NegativeRetained(t *testing.T) {
	// Counted more than the ledger can explain: keep the negative value.
	sold := DeriveSold(d("5"), d("0"), d("0"), d("8"))
	if !sold.Equal(d("-3")) {
		t.Fatalf("expected sold -3, got %s", sold)
	}
}

func TestExpectedCashLine(t *testing.T) {
	if got := ExpectedCashLine(d("43"), d("30")); !got.Equal(d("1290")) {
		t.Fatalf("expected 1290, got %s", got)
	}
	// Negative sold reduces expected cash instead of being clamped.
	if got := ExpectedCashLine(d("-3"), d("30")); !got.Equal(d("-90")) {
		t.Fatalf("expected -90, got %s", got)
	}
}

package workflow

import (
	"github.com/shopspring/decimal"
)

// Rounding policy for derived costs:
// - money (line costs, totals, cost per item) rounds to 2 places
// - per-weight rates keep 4 places so small usages don't vanish
// Totals are sums of already-rounded line costs, so a detail view always adds
// up to the stored total.

// LineCost prices a quantity at a unit cost.
func LineCost(quantity, unitCost decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitCost).Round(2)
}

// SumLineCosts totals already-rounded line costs.
func SumLineCosts(lineCosts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, c := range lineCosts {
		total = total.Add(c)
	}
	return total.Round(2)
}

// CostPerWeightUnit divides a batch cost by its output weight. A zero or
// negative weight yields zero instead of an error so an unfinished
// preparation can exist without poisoning dependents.
func CostPerWeightUnit(totalCost, outputWeight decimal.Decimal) decimal.Decimal {
	if !outputWeight.IsPositive() {
		return decimal.Zero
	}
	return totalCost.DivRound(outputWeight, 4)
}

// CostPerItem divides a batch cost by its item yield, zero divisor yields
// zero, same rule as CostPerWeightUnit.
func CostPerItem(totalCost, outputQty decimal.Decimal) decimal.Decimal {
	if !outputQty.IsPositive() {
		return decimal.Zero
	}
	return totalCost.DivRound(outputQty, 2)
}

// DeriveSold infers the quantity sold for one product on one day:
// opening + inflow - outflow - counted. The result may be negative when the
// count finds more stock than the ledger can explain; callers retain the
// negative value and flag the record instead of clamping.
func DeriveSold(opening, inflow, outflow, counted decimal.Decimal) decimal.Decimal {
	return opening.Add(inflow).Sub(outflow).Sub(counted)
}

// ExpectedCashLine prices a sold quantity at the product's selling price.
// Negative sold quantities contribute negatively, keeping the cash figure
// consistent with the quantity identity.
func ExpectedCashLine(sold, sellingPrice decimal.Decimal) decimal.Decimal {
	return sold.Mul(sellingPrice).Round(2)
}

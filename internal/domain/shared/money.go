package shared

import "github.com/shopspring/decimal"

// MoneyPlaces is the ledger's minor-unit precision.
const MoneyPlaces int32 = 2

// DefaultCurrency is used when configuration does not name one.
const DefaultCurrency = "USD"

// RoundMoney rounds an amount to the ledger's minor unit (half away from zero).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// SumMoney adds amounts without intermediate rounding.
func SumMoney(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

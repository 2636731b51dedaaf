package dto

import "github.com/shopspring/decimal"

// Money is an amount in integer cents plus its decimal EUR rendering.
type Money struct {
	Cents int64  `json:"cents"`
	EUR   string `json:"eur"`
}

// MoneyFromCents renders cents as Money.
func MoneyFromCents(cents int64) Money {
	return Money{
		Cents: cents,
		EUR:   decimal.New(cents, -2).StringFixed(2),
	}
}

func moneySlice(cents []int64) []Money {
	out := make([]Money, len(cents))
	for i, c := range cents {
		out[i] = MoneyFromCents(c)
	}
	return out
}

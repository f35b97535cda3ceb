// Package money holds amounts as integer cents to keep arithmetic exact.
package money

import (
	"fmt"
	"math"

	"github.com/danukusuma/go-order-saga/internal/apperr"
)

// Money is an amount in a single ISO-4217 currency. The zero value is
// not valid; construct via New.
type Money struct {
	Cents    int64  `json:"cents"`
	Currency string `json:"currency"` // 3 letters, uppercase
}

// New validates amount and currency. The currency code is normalized to
// uppercase; amount is rounded to the nearest cent.
func New(amount float64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, apperr.New(apperr.Validation, "money.invalid_amount", "amount cannot be negative")
	}
	if len(currency) != 3 {
		return Money{}, apperr.New(apperr.Validation, "money.invalid_currency", "currency must be a 3-letter ISO code")
	}
	cur := make([]byte, 3)
	for i := 0; i < 3; i++ {
		c := currency[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			return Money{}, apperr.New(apperr.Validation, "money.invalid_currency", "currency must be a 3-letter ISO code")
		}
		cur[i] = c
	}
	return Money{Cents: int64(math.Round(amount * 100)), Currency: string(cur)}, nil
}

// FromCents skips float conversion; used when the store already holds cents.
func FromCents(cents int64, currency string) Money {
	return Money{Cents: cents, Currency: currency}
}

func (m Money) Amount() float64 { return float64(m.Cents) / 100 }

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, apperr.New(apperr.Validation, "money.currency_mismatch",
			"cannot add %s to %s", other.Currency, m.Currency)
	}
	return Money{Cents: m.Cents + other.Cents, Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, apperr.New(apperr.Validation, "money.currency_mismatch",
			"cannot subtract %s from %s", other.Currency, m.Currency)
	}
	return Money{Cents: m.Cents - other.Cents, Currency: m.Currency}, nil
}

// Mul scales by a non-negative integer quantity (line totals).
func (m Money) Mul(qty int) Money {
	return Money{Cents: m.Cents * int64(qty), Currency: m.Currency}
}

func (m Money) String() string {
	return fmt.Sprintf("%.2f %s", m.Amount(), m.Currency)
}

package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrCurrencyMismatch = errors.New("currency mismatch")

type Currency string

const EUR Currency = "EUR"

var ZeroEuro = NewMoney(decimal.Zero, EUR)

// Money is stored as "<CODE> <amount>", e.g. "EUR 1.23". The amount is never
// rounded or grouped when formatted.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// isUnset reports the zero value, which Add treats as the identity of any
// currency.
func (m Money) isUnset() bool {
	return m.Currency == "" && m.Amount.IsZero()
}

func (m Money) Add(other Money) (Money, error) {
	if m.isUnset() {
		return other, nil
	}
	if other.isUnset() {
		return m, nil
	}
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return NewMoney(m.Amount.Add(other.Amount), m.Currency), nil
}

func (m Money) Times(factor decimal.Decimal) Money {
	return NewMoney(m.Amount.Mul(factor), m.Currency)
}

func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) String() string {
	return string(m.Currency) + " " + m.Amount.String()
}

// ParseMoney accepts the String form as well as locale formatted amounts with
// grouping commas ("EUR 123,456.78"), separated by a regular or a
// non-breaking space.
func ParseMoney(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\u00a0", " ")
	code, amount, ok := strings.Cut(s, " ")
	if !ok || len(code) != 3 {
		return Money{}, fmt.Errorf("invalid monetary amount %q", s)
	}
	value, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(amount), ",", ""))
	if err != nil {
		return Money{}, fmt.Errorf("invalid monetary amount %q: %w", s, err)
	}
	return NewMoney(value, Currency(strings.ToUpper(code))), nil
}

func (m Money) Value() (driver.Value, error) {
	if m.isUnset() {
		return nil, nil
	}
	return m.String(), nil
}

func (m *Money) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*m = Money{}
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Money", src)
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxScale is the number of fractional digits a stored amount keeps.
const MaxScale = 6

var (
	ErrIncompatibleMetric = errors.New("incompatible metric")
	ErrQuantityPrecision  = errors.New("quantity exceeds supported precision")
)

type Metric string

const (
	MetricUnit        Metric = "unit"
	MetricKilogram    Metric = "kg"
	MetricLiter       Metric = "l"
	MetricMeter       Metric = "m"
	MetricSquareMeter Metric = "m2"
	MetricCubicMeter  Metric = "m3"
)

func (m Metric) Valid() bool {
	switch m {
	case MetricUnit, MetricKilogram, MetricLiter, MetricMeter, MetricSquareMeter, MetricCubicMeter:
		return true
	}
	return false
}

// ParseMetric maps an abbreviation to a Metric; an empty string means units.
func ParseMetric(s string) (Metric, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return MetricUnit, nil
	}
	m := Metric(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown metric %q", s)
	}
	return m, nil
}

// Quantity is an immutable amount of some Metric. Arithmetic and comparison
// are only defined between quantities of the same metric.
type Quantity struct {
	amount decimal.Decimal
	metric Metric
}

var None = Of(0)

func NewQuantity(amount decimal.Decimal, metric Metric) Quantity {
	if metric == "" {
		metric = MetricUnit
	}
	return Quantity{amount: amount, metric: metric}
}

// Of returns a quantity of whole units.
func Of(amount int64) Quantity {
	return NewQuantity(decimal.NewFromInt(amount), MetricUnit)
}

func (q Quantity) Amount() decimal.Decimal {
	return q.amount
}

func (q Quantity) Metric() Metric {
	if q.metric == "" {
		return MetricUnit
	}
	return q.metric
}

func (q Quantity) IsCompatibleWith(other Quantity) bool {
	return q.Metric() == other.Metric()
}

func (q Quantity) Add(other Quantity) (Quantity, error) {
	if err := q.assertCompatible(other); err != nil {
		return Quantity{}, err
	}
	return NewQuantity(q.amount.Add(other.amount), q.Metric()), nil
}

func (q Quantity) Subtract(other Quantity) (Quantity, error) {
	if err := q.assertCompatible(other); err != nil {
		return Quantity{}, err
	}
	return NewQuantity(q.amount.Sub(other.amount), q.Metric()), nil
}

func (q Quantity) Negate() Quantity {
	return NewQuantity(q.amount.Neg(), q.Metric())
}

func (q Quantity) IsGreaterThanOrEqual(other Quantity) (bool, error) {
	if err := q.assertCompatible(other); err != nil {
		return false, err
	}
	return q.amount.GreaterThanOrEqual(other.amount), nil
}

func (q Quantity) IsZeroOrNegative() bool {
	return q.amount.LessThanOrEqual(decimal.Zero)
}

func (q Quantity) IsNegative() bool {
	return q.amount.IsNegative()
}

// Equal compares amount numerically, so 1.0 kg equals 1 kg.
func (q Quantity) Equal(other Quantity) bool {
	return q.Metric() == other.Metric() && q.amount.Equal(other.amount)
}

// CheckScale rejects amounts with significant digits beyond MaxScale. Trailing
// zeros are fine.
func (q Quantity) CheckScale() error {
	if !q.amount.Equal(q.amount.Truncate(MaxScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrQuantityPrecision, q.amount, MaxScale)
	}
	return nil
}

func (q Quantity) String() string {
	return q.amount.String() + " " + string(q.Metric())
}

func (q Quantity) assertCompatible(other Quantity) error {
	if !q.IsCompatibleWith(other) {
		return fmt.Errorf("%w: %s and %s", ErrIncompatibleMetric, q.Metric(), other.Metric())
	}
	return nil
}

type quantityJSON struct {
	Amount decimal.Decimal `json:"amount"`
	Metric Metric          `json:"metric"`
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(quantityJSON{Amount: q.amount, Metric: q.Metric()})
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	var raw quantityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	metric, err := ParseMetric(string(raw.Metric))
	if err != nil {
		return err
	}
	*q = NewQuantity(raw.Amount, metric)
	return nil
}

package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
)

var ErrInvalidInput = errors.New("invalid input")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	// Amounts are checked as exact decimals.
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		in := sl.Current().Interface().(NewInventoryItem)
		checkAmount(sl, in.Amount, true)
	}, NewInventoryItem{})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		in := sl.Current().Interface().(NewOrderLine)
		checkAmount(sl, in.Amount, false)
	}, NewOrderLine{})
	return v
}

func checkAmount(sl validator.StructLevel, amount decimal.Decimal, allowZero bool) {
	switch {
	case allowZero && amount.IsNegative():
		sl.ReportError(amount, "amount", "Amount", "gte", "0")
	case !allowZero && !amount.IsPositive():
		sl.ReportError(amount, "amount", "Amount", "gt", "0")
	case !amount.Equal(amount.Truncate(domain.MaxScale)):
		sl.ReportError(amount, "amount", "Amount", "scale", fmt.Sprint(domain.MaxScale))
	}
}

// validateInput turns validator failures into ErrInvalidInput naming every
// offending field and the rule it broke.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+" "+fe.Tag())
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
}

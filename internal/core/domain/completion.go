package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCompletionFailed  = errors.New("order completion failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNoInventoryItem   = errors.New("no inventory item")
)

const (
	ReasonInsufficientStock = "Number of items requested by the order line is greater than the number available in the inventory. Please re-stock."
	ReasonNoInventoryItem   = "No inventory item with given product identifier found in inventory. Have you initialized your inventory? Do you need to re-stock it?"
)

type LineOutcome string

const (
	LineSucceeded LineOutcome = "SUCCEEDED"
	LineSkipped   LineOutcome = "SKIPPED"
	LineFailed    LineOutcome = "FAILED"
)

type LineCompletion struct {
	Line    OrderLine   `json:"line"`
	Outcome LineOutcome `json:"outcome"`
	Reason  string      `json:"reason,omitempty"`

	cause error
}

func LineSuccess(line OrderLine) LineCompletion {
	return LineCompletion{Line: line, Outcome: LineSucceeded}
}

func LineSkip(line OrderLine) LineCompletion {
	return LineCompletion{Line: line, Outcome: LineSkipped}
}

// LineError fails the line for reason; cause is what errors.Is matches on the
// aggregated failure and may be nil.
func LineError(line OrderLine, reason string, cause error) LineCompletion {
	return LineCompletion{Line: line, Outcome: LineFailed, Reason: reason, cause: cause}
}

func LineInsufficientStock(line OrderLine) LineCompletion {
	return LineError(line, ReasonInsufficientStock, ErrInsufficientStock)
}

func LineMissingInventory(line OrderLine) LineCompletion {
	return LineError(line, ReasonNoInventoryItem, ErrNoInventoryItem)
}

func (c LineCompletion) Cause() error {
	return c.cause
}

func (c LineCompletion) Failed() bool {
	return c.Outcome == LineFailed
}

type CompletionReport struct {
	OrderID     OrderIdentifier  `json:"order_id"`
	Completions []LineCompletion `json:"completions"`
}

func NewCompletionReport(order Order, completions []LineCompletion) CompletionReport {
	return CompletionReport{OrderID: order.ID, Completions: completions}
}

func (r CompletionReport) Succeeded() bool {
	for _, c := range r.Completions {
		if c.Failed() {
			return false
		}
	}
	return true
}

func (r CompletionReport) Failures() []LineCompletion {
	var out []LineCompletion
	for _, c := range r.Completions {
		if c.Failed() {
			out = append(out, c)
		}
	}
	return out
}

func (r CompletionReport) Count(outcome LineOutcome) int {
	n := 0
	for _, c := range r.Completions {
		if c.Outcome == outcome {
			n++
		}
	}
	return n
}

// Err returns a *CompletionFailure carrying the report when any line failed.
func (r CompletionReport) Err() error {
	if r.Succeeded() {
		return nil
	}
	return &CompletionFailure{Report: r}
}

type CompletionFailure struct {
	Report CompletionReport
}

func (f *CompletionFailure) Error() string {
	failures := f.Report.Failures()
	parts := make([]string, 0, len(failures))
	for _, c := range failures {
		parts = append(parts, fmt.Sprintf("%s (%s): %s", c.Line.ProductID, c.Line.Quantity, c.Reason))
	}
	return fmt.Sprintf("order %s: %d of %d lines failed: %s",
		f.Report.OrderID, len(failures), len(f.Report.Completions), strings.Join(parts, "; "))
}

func (f *CompletionFailure) Unwrap() []error {
	errs := []error{ErrCompletionFailed}
	for _, c := range f.Report.Failures() {
		if c.cause != nil {
			errs = append(errs, c.cause)
		}
	}
	return errs
}

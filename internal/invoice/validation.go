package invoice

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"invoicesync/internal/logger"
	"invoicesync/pkg/models"
)

// gstRate is the goods and services tax charged on top of the invoice amount.
var gstRate = decimal.RequireFromString("0.10")

// AmountCheck flags amounts that are probably mistyped. It never blocks a save.
type AmountCheck struct {
	// Tolerance is the accepted difference between the recorded GST and 10% of the amount.
	// Default: 0.05.
	Tolerance decimal.Decimal

	log zerolog.Logger
}

// NewAmountCheck creates a check with the default tolerance.
func NewAmountCheck() *AmountCheck {
	return &AmountCheck{
		Tolerance: decimal.RequireFromString("0.05"),
		log:       logger.WithComponent("amount-check"),
	}
}

// Warnings returns human-readable warnings for r. A zero GST is accepted as a
// GST-free purchase.
func (ac *AmountCheck) Warnings(r *models.Record) []string {
	var warnings []string

	if r.Amount.IsNegative() {
		warnings = append(warnings, fmt.Sprintf("amount %s is negative", r.Amount.StringFixed(2)))
	}
	if r.GST.IsNegative() {
		warnings = append(warnings, fmt.Sprintf("gst %s is negative", r.GST.StringFixed(2)))
	}
	if r.GST.GreaterThan(r.Amount) {
		warnings = append(warnings, fmt.Sprintf("gst %s exceeds amount %s", r.GST.StringFixed(2), r.Amount.StringFixed(2)))
	} else if r.GST.IsPositive() && r.Amount.IsPositive() {
		expected := r.Amount.Mul(gstRate).Round(2)
		if r.GST.Sub(expected).Abs().GreaterThan(ac.Tolerance) {
			warnings = append(warnings, fmt.Sprintf("gst %s differs from the expected %s (10%% of amount)",
				r.GST.StringFixed(2), expected.StringFixed(2)))
		}
	}

	if len(warnings) > 0 {
		ac.log.Warn().
			Str("id", r.ID).
			Strs("warnings", warnings).
			Msg("Amount check found issues")
	}
	return warnings
}

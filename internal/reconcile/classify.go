// Package reconcile holds the pure quantity rules: how an incoming increment is
// split across labels, and how aggregate totals follow from the ledger.
package reconcile

import (
	"github.com/RicardoMLopes/wsh/internal/domain"
	"github.com/shopspring/decimal"
)

// Split label breakdown of one incoming quantity. Standard + LPS + Undeclared == incoming.
type Split struct {
	Standard   decimal.Decimal `json:"standard"`
	LPS        decimal.Decimal `json:"lps"`
	Undeclared decimal.Decimal `json:"undeclared"`
}

// Portion one ledger entry worth of a split
type Portion struct {
	Label    domain.LabelType `json:"labelType"`
	Quantity decimal.Decimal  `json:"quantity"`
}

// Classify splits incoming against what was declared and what is already confirmed.
//
//	diff = revised + incoming - declared
//	declared <= 0        -> all Undeclared
//	diff <= 0            -> all Standard
//	diff >= incoming     -> all LPS
//	otherwise            -> LPS = diff, Standard = incoming - diff
func Classify(declared, revised, incoming decimal.Decimal) Split {
	if !declared.IsPositive() {
		return Split{Undeclared: incoming}
	}

	diff := revised.Add(incoming).Sub(declared)
	switch {
	case !diff.IsPositive():
		return Split{Standard: incoming}
	case diff.GreaterThanOrEqual(incoming):
		return Split{LPS: incoming}
	default:
		return Split{LPS: diff, Standard: incoming.Sub(diff)}
	}
}

// Portions non-zero labels in entry order: Standard before LPS. Always 1 or 2 for a positive incoming.
func (s Split) Portions() []Portion {
	var out []Portion
	if s.Undeclared.IsPositive() {
		out = append(out, Portion{Label: domain.LabelUndeclared, Quantity: s.Undeclared})
	}
	if s.Standard.IsPositive() {
		out = append(out, Portion{Label: domain.LabelStandard, Quantity: s.Standard})
	}
	if s.LPS.IsPositive() {
		out = append(out, Portion{Label: domain.LabelLPS, Quantity: s.LPS})
	}
	return out
}

// Total sum of all labels
func (s Split) Total() decimal.Decimal {
	return s.Standard.Add(s.LPS).Add(s.Undeclared)
}

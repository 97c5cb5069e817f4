package reconcile

import (
	"github.com/RicardoMLopes/wsh/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Totals aggregate quantities implied by a ledger
type Totals struct {
	Revised    decimal.Decimal `json:"revisedQty"`
	Standard   decimal.Decimal `json:"standardQty"`
	LPS        decimal.Decimal `json:"lpsQty"`
	Undeclared decimal.Decimal `json:"undeclaredQty"`
	Breakdown  decimal.Decimal `json:"breakdownQty"`
}

// Replay recomputes totals from the Active entries of one aggregate.
// Breakdown is stamped on every entry of a damaged submission, so it is counted
// once per submission that still has an Active entry.
func Replay(entries []domain.LedgerEntry) Totals {
	var t Totals
	seen := make(map[uuid.UUID]struct{})
	for _, e := range entries {
		if !e.Active() {
			continue
		}
		t.Revised = t.Revised.Add(e.Quantity)
		switch e.Label {
		case domain.LabelStandard:
			t.Standard = t.Standard.Add(e.Quantity)
		case domain.LabelLPS:
			t.LPS = t.LPS.Add(e.Quantity)
		case domain.LabelUndeclared:
			t.Undeclared = t.Undeclared.Add(e.Quantity)
		}
		if _, ok := seen[e.SubmissionID]; ok {
			continue
		}
		seen[e.SubmissionID] = struct{}{}
		t.Breakdown = t.Breakdown.Add(e.BreakdownQty)
	}
	return t
}

// Drift difference between stored and replayed value of one field
type Drift struct {
	Field    string          `json:"field"`
	Stored   decimal.Decimal `json:"stored"`
	Replayed decimal.Decimal `json:"replayed"`
}

// Compare lists the fields where agg disagrees with t
func Compare(agg *domain.Aggregate, t Totals) []Drift {
	pairs := []struct {
		field    string
		stored   decimal.Decimal
		replayed decimal.Decimal
	}{
		{"revisedQty", agg.RevisedQty, t.Revised},
		{"standardQty", agg.StandardQty, t.Standard},
		{"lpsQty", agg.LPSQty, t.LPS},
		{"undeclaredQty", agg.UndeclaredQty, t.Undeclared},
		{"breakdownQty", agg.BreakdownQty, t.Breakdown},
	}
	var out []Drift
	for _, p := range pairs {
		if !p.stored.Equal(p.replayed) {
			out = append(out, Drift{Field: p.field, Stored: p.stored, Replayed: p.replayed})
		}
	}
	return out
}

package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AggregateKey identifies one shipment line under reconciliation
type AggregateKey struct {
	Reference  string `json:"reference"`
	Waybill    string `json:"waybill"`
	PartNumber string `json:"partNumber"`
}

// Validate rejects blank key fields
func (k AggregateKey) Validate(op string) error {
	switch {
	case strings.TrimSpace(k.Reference) == "":
		return NewValidationError(op, "reference is required")
	case strings.TrimSpace(k.Waybill) == "":
		return NewValidationError(op, "waybill is required")
	case strings.TrimSpace(k.PartNumber) == "":
		return NewValidationError(op, "partNumber is required")
	}
	return nil
}

func (k AggregateKey) String() string {
	return k.Reference + "/" + k.Waybill + "/" + k.PartNumber
}

// AggregateStatus lifecycle of the originating shipment line
type AggregateStatus string

const (
	AggregateInserted AggregateStatus = "inserted" // declared by import, not yet touched
	AggregateActive   AggregateStatus = "active"
	AggregateVoided   AggregateStatus = "voided"
)

// Aggregate running totals for one active key (putaway_aggregates)
type Aggregate struct {
	ID  int64        `json:"id"`
	Key AggregateKey `json:"key"`

	Description  string `json:"description"`
	Position     string `json:"position"`
	ClassCode    string `json:"classCode"`
	ProcessLines string `json:"processLines,omitempty"`
	InputType    string `json:"inputType,omitempty"`
	OperatorID   string `json:"operatorId,omitempty"`

	DeclaredQty   decimal.Decimal `json:"declaredQty"`
	RevisedQty    decimal.Decimal `json:"revisedQty"`
	StandardQty   decimal.Decimal `json:"standardQty"`
	LPSQty        decimal.Decimal `json:"lpsQty"`
	UndeclaredQty decimal.Decimal `json:"undeclaredQty"`
	BreakdownQty  decimal.Decimal `json:"breakdownQty"`
	Volume        decimal.Decimal `json:"volume"`

	Users UserSet `json:"contributingUsers"`

	ProcessStart *time.Time      `json:"processStart,omitempty"`
	ProcessEnd   *time.Time      `json:"processEnd,omitempty"`
	Status       AggregateStatus `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// LabelQty returns the cumulative quantity held under a label
func (a *Aggregate) LabelQty(l LabelType) decimal.Decimal {
	switch l {
	case LabelStandard:
		return a.StandardQty
	case LabelLPS:
		return a.LPSQty
	case LabelUndeclared:
		return a.UndeclaredQty
	}
	return decimal.Zero
}

// AddLabel moves qty (may be negative) into the label bucket and revisedQty
func (a *Aggregate) AddLabel(l LabelType, qty decimal.Decimal) {
	switch l {
	case LabelStandard:
		a.StandardQty = a.StandardQty.Add(qty)
	case LabelLPS:
		a.LPSQty = a.LPSQty.Add(qty)
	case LabelUndeclared:
		a.UndeclaredQty = a.UndeclaredQty.Add(qty)
	}
	a.RevisedQty = a.RevisedQty.Add(qty)
}

// MissingPutaway reports a declared line that nobody has confirmed yet
func (a *Aggregate) MissingPutaway() bool {
	return a.DeclaredQty.IsPositive() && a.RevisedQty.IsZero()
}

// QuantityScale decimal places kept by the quantity columns
const QuantityScale = 4

// FitsScale reports whether d is stored without rounding
func FitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(QuantityScale))
}

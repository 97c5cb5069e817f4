package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LabelType classification of a confirmed quantity
type LabelType string

const (
	LabelStandard   LabelType = "standard"
	LabelLPS        LabelType = "lps" // confirmed beyond the declared amount
	LabelUndeclared LabelType = "undeclared"
)

func (l LabelType) Valid() bool {
	return l == LabelStandard || l == LabelLPS || l == LabelUndeclared
}

// EntryStatus ledger entry state; only flips Active <-> Voided
type EntryStatus string

const (
	EntryActive EntryStatus = "active"
	EntryVoided EntryStatus = "voided"
)

// LedgerEntry one label portion of a submission (putaway_ledger)
type LedgerEntry struct {
	ID           int64           `json:"id"`
	AggregateID  int64           `json:"aggregateId"`
	SubmissionID uuid.UUID       `json:"submissionId"`
	Key          AggregateKey    `json:"key"`
	Label        LabelType       `json:"labelType"`
	Quantity     decimal.Decimal `json:"quantity"`
	BreakdownQty decimal.Decimal `json:"breakdownQty"`
	Volume       decimal.Decimal `json:"volume"`
	UserID       string          `json:"userId"`
	OperatorID   string          `json:"operatorId"`
	Status       EntryStatus     `json:"status"`
	ProcessEnd   *time.Time      `json:"processEnd,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func (e *LedgerEntry) Active() bool { return e.Status == EntryActive }

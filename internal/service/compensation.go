package service

import (
	"context"
	"fmt"

	"github.com/RicardoMLopes/wsh/internal/domain"
	"github.com/RicardoMLopes/wsh/internal/events"
	"github.com/RicardoMLopes/wsh/internal/repository"

	"go.uber.org/zap"
)

// CompensationResult outcome of a cancel or reversal
type CompensationResult struct {
	Success     bool               `json:"success"`
	AggregateID int64              `json:"aggregateId"`
	EntryID     int64              `json:"entryId"`
	Status      domain.EntryStatus `json:"status"`
	Aggregate   *domain.Aggregate  `json:"aggregate"`
}

// Cancel voids an Active entry and subtracts its contribution
func (s *putawayService) Cancel(ctx context.Context, entryID int64) (*CompensationResult, error) {
	return s.compensate(ctx, "Cancel", entryID, domain.EntryActive, domain.EntryVoided)
}

// Reverse reinstates a Voided entry and re-adds its contribution
func (s *putawayService) Reverse(ctx context.Context, entryID int64) (*CompensationResult, error) {
	return s.compensate(ctx, "Reverse", entryID, domain.EntryVoided, domain.EntryActive)
}

// compensate flips one entry from -> to under the aggregate lock.
// Lock order is aggregate then entry, the same order a submission takes them.
func (s *putawayService) compensate(ctx context.Context, op string, entryID int64, from, to domain.EntryStatus) (*CompensationResult, error) {
	if entryID <= 0 {
		return nil, domain.NewValidationError(op, "ledger entry id is required")
	}

	now := s.now()
	var (
		res   *CompensationResult
		entry *domain.LedgerEntry
	)
	err := s.repo.WithinTx(ctx, op, func(tx repository.PutawayTx) error {
		probe, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		agg, err := tx.LockAggregateByID(ctx, probe.AggregateID)
		if err != nil {
			return err
		}
		entry, err = tx.LockEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != from {
			return domain.NewLogicalStateError(op, fmt.Sprintf("ledger entry %d is %s", entryID, entry.Status))
		}

		// breakdown is held once per submission; it moves only with the last Active entry of it
		siblings, err := tx.CountActiveSiblings(ctx, entry.SubmissionID, entry.ID)
		if err != nil {
			return err
		}

		qty := entry.Quantity
		breakdown := entry.BreakdownQty
		if to == domain.EntryVoided {
			qty = qty.Neg()
			breakdown = breakdown.Neg()
		}
		agg.AddLabel(entry.Label, qty)
		if siblings == 0 {
			agg.BreakdownQty = agg.BreakdownQty.Add(breakdown)
		}
		agg.UpdatedAt = now

		if err := tx.UpdateAggregate(ctx, agg); err != nil {
			return err
		}
		if err := tx.SetEntryStatus(ctx, entry.ID, to, now); err != nil {
			return err
		}

		res = &CompensationResult{Success: true, AggregateID: agg.ID, EntryID: entry.ID, Status: to, Aggregate: agg}
		return nil
	})
	if err != nil {
		s.logger.Warn("Compensation rejected", zap.String("op", op), zap.Int64("entry_id", entryID), zap.String("kind", string(domain.KindOf(err))), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Compensation committed",
		zap.String("op", op),
		zap.Int64("entry_id", entryID),
		zap.Int64("aggregate_id", res.AggregateID),
		zap.String("label", string(entry.Label)),
		zap.String("quantity", entry.Quantity.String()),
	)
	typ := events.Cancelled
	if to == domain.EntryActive {
		typ = events.Reversed
	}
	s.afterCommit(ctx, []*domain.Aggregate{res.Aggregate}, events.Event{
		Type:         typ,
		Reference:    entry.Key.Reference,
		Waybill:      entry.Key.Waybill,
		PartNumber:   entry.Key.PartNumber,
		AggregateID:  res.AggregateID,
		EntryIDs:     []int64{entry.ID},
		SubmissionID: entry.SubmissionID.String(),
		RevisedQty:   res.Aggregate.RevisedQty.String(),
		OccurredAt:   now,
	})
	return res, nil
}

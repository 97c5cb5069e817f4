package service

import (
	"context"
	"strings"

	"github.com/RicardoMLopes/wsh/internal/domain"
	"github.com/RicardoMLopes/wsh/internal/events"
	"github.com/RicardoMLopes/wsh/internal/repository"

	"go.uber.org/zap"
)

// ResetResult rows touched by a process-window reset
type ResetResult struct {
	RowsAffected      int64 `json:"rowsAffected"`
	AggregatesCleared int64 `json:"aggregatesCleared"`
	EntriesCleared    int64 `json:"entriesCleared"`
}

// WindowResult rows touched by a completion or operator assignment
type WindowResult struct {
	Success      bool  `json:"success"`
	RowsAffected int64 `json:"rowsAffected"`
}

// OperatorFinishResult outcome of one operator leaving a waybill
type OperatorFinishResult struct {
	Updated            int64    `json:"updated"`
	Finalized          bool     `json:"finalized"`
	RemainingOperators []string `json:"remainingOperators"`
}

// ResetProcessWindow clears processEnd on the pair's aggregates and ledger entries
func (s *putawayService) ResetProcessWindow(ctx context.Context, reference, waybill string) (*ResetResult, error) {
	const op = "ResetProcessWindow"
	if err := requirePair(op, reference, waybill); err != nil {
		return nil, err
	}

	now := s.now()
	res := &ResetResult{}
	err := s.repo.WithinTx(ctx, op, func(tx repository.PutawayTx) error {
		var err error
		if res.AggregatesCleared, err = tx.SetAggregatesProcessEnd(ctx, reference, waybill, nil, now); err != nil {
			return err
		}
		if res.EntriesCleared, err = tx.ClearEntriesProcessEnd(ctx, reference, waybill, now); err != nil {
			return err
		}
		res.RowsAffected = res.AggregatesCleared + res.EntriesCleared
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Process window reset", zap.String("reference", reference), zap.String("waybill", waybill), zap.Int64("rows_affected", res.RowsAffected))
	s.afterPairCommit(ctx, events.Event{Type: events.WindowReset, Reference: reference, Waybill: waybill, RowsAffected: res.RowsAffected, OccurredAt: now})
	return res, nil
}

// CompleteProcessWindow stamps processEnd on every active aggregate of the pair
func (s *putawayService) CompleteProcessWindow(ctx context.Context, reference, waybill string) (*WindowResult, error) {
	const op = "CompleteProcessWindow"
	if err := requirePair(op, reference, waybill); err != nil {
		return nil, err
	}

	now := s.now()
	var n int64
	err := s.repo.WithinTx(ctx, op, func(tx repository.PutawayTx) error {
		var err error
		n, err = tx.SetAggregatesProcessEnd(ctx, reference, waybill, &now, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Process window completed", zap.String("reference", reference), zap.String("waybill", waybill), zap.Int64("rows_affected", n))
	s.afterPairCommit(ctx, events.Event{Type: events.WindowCompleted, Reference: reference, Waybill: waybill, RowsAffected: n, OccurredAt: now})
	return &WindowResult{Success: n > 0, RowsAffected: n}, nil
}

// CompleteOperatorWindow closes one user's open ledger entries for the pair
func (s *putawayService) CompleteOperatorWindow(ctx context.Context, reference, waybill, userID string) (*WindowResult, error) {
	const op = "CompleteOperatorWindow"
	if err := requirePair(op, reference, waybill); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.NewValidationError(op, "userId is required")
	}

	now := s.now()
	var n int64
	err := s.repo.WithinTx(ctx, op, func(tx repository.PutawayTx) error {
		var err error
		n, err = tx.CloseOperatorEntries(ctx, reference, waybill, userID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Operator window completed", zap.String("reference", reference), zap.String("waybill", waybill), zap.String("user_id", userID), zap.Int64("rows_affected", n))
	return &WindowResult{Success: n > 0, RowsAffected: n}, nil
}

// FinishOperator closes the user's entries and completes the window once nobody is left working
func (s *putawayService) FinishOperator(ctx context.Context, reference, waybill, userID string) (*OperatorFinishResult, error) {
	const op = "FinishOperator"
	if err := requirePair(op, reference, waybill); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.NewValidationError(op, "userId is required")
	}

	now := s.now()
	res := &OperatorFinishResult{}
	err := s.repo.WithinTx(ctx, op, func(tx repository.PutawayTx) error {
		var err error
		if res.Updated, err = tx.CloseOperatorEntries(ctx, reference, waybill, userID, now); err != nil {
			return err
		}
		if res.RemainingOperators, err = tx.OpenOperators(ctx, reference, waybill); err != nil {
			return err
		}
		if len(res.RemainingOperators) > 0 {
			return nil
		}
		if _, err := tx.SetAggregatesProcessEnd(ctx, reference, waybill, &now, now); err != nil {
			return err
		}
		res.Finalized = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Operator finished",
		zap.String("reference", reference),
		zap.String("waybill", waybill),
		zap.String("user_id", userID),
		zap.Bool("finalized", res.Finalized),
		zap.Strings("remaining", res.RemainingOperators),
	)
	s.afterPairCommit(ctx, events.Event{Type: events.OperatorFinished, Reference: reference, Waybill: waybill, UserID: userID, RowsAffected: res.Updated, OccurredAt: now})
	return res, nil
}

// AssignOperator records the final operator on every active aggregate of the pair
func (s *putawayService) AssignOperator(ctx context.Context, reference, waybill, operatorID string) (*WindowResult, error) {
	const op = "AssignOperator"
	if err := requirePair(op, reference, waybill); err != nil {
		return nil, err
	}
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" {
		return nil, domain.NewValidationError(op, "operatorId is required")
	}

	now := s.now()
	var n int64
	err := s.repo.WithinTx(ctx, op, func(tx repository.PutawayTx) error {
		var err error
		n, err = tx.SetOperator(ctx, reference, waybill, operatorID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Operator assigned", zap.String("reference", reference), zap.String("waybill", waybill), zap.String("operator_id", operatorID), zap.Int64("rows_affected", n))
	s.afterPairCommit(ctx, events.Event{Type: events.OperatorAssigned, Reference: reference, Waybill: waybill, RowsAffected: n, OccurredAt: now})
	return &WindowResult{Success: n > 0, RowsAffected: n}, nil
}

func (s *putawayService) OpenOperators(ctx context.Context, reference, waybill string) ([]string, error) {
	if err := requirePair("OpenOperators", reference, waybill); err != nil {
		return nil, err
	}
	return s.repo.OpenOperators(ctx, reference, waybill)
}

// afterPairCommit re-reads the pair so cached snapshots pick up window changes, then publishes
func (s *putawayService) afterPairCommit(ctx context.Context, e events.Event) {
	var aggs []*domain.Aggregate
	if s.cache != nil {
		list, err := s.repo.ListAggregates(ctx, e.Reference, e.Waybill)
		if err != nil {
			s.logger.Warn("Failed to reload pair for cache", zap.String("reference", e.Reference), zap.String("waybill", e.Waybill), zap.Error(err))
		}
		for i := range list {
			aggs = append(aggs, &list[i])
		}
	}
	s.afterCommit(ctx, aggs, e)
}

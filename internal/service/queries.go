package service

import (
	"context"
	"errors"

	"github.com/RicardoMLopes/wsh/internal/domain"
	"github.com/RicardoMLopes/wsh/internal/reconcile"
	"github.com/RicardoMLopes/wsh/internal/store"

	"go.uber.org/zap"
)

// AuditResult stored aggregate against the totals its ledger implies
type AuditResult struct {
	Aggregate     *domain.Aggregate `json:"aggregate"`
	Replayed      reconcile.Totals  `json:"replayed"`
	Consistent    bool              `json:"consistent"`
	Drift         []reconcile.Drift `json:"drift"`
	ActiveEntries int               `json:"activeEntries"`
	VoidedEntries int               `json:"voidedEntries"`
}

// Lookup returns the active aggregate, reading through the cache when configured
func (s *putawayService) Lookup(ctx context.Context, key domain.AggregateKey) (*domain.Aggregate, error) {
	if err := key.Validate("Lookup"); err != nil {
		return nil, err
	}

	if s.cache != nil {
		agg, err := s.cache.Get(ctx, key)
		if err == nil {
			return agg, nil
		}
		if !errors.Is(err, store.ErrMiss) {
			s.logger.Warn("Aggregate cache read failed", zap.String("key", key.String()), zap.Error(err))
		}
	}

	agg, err := s.repo.GetAggregate(ctx, key)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, agg); err != nil {
			s.logger.Warn("Failed to fill aggregate cache", zap.String("key", key.String()), zap.Error(err))
		}
	}
	return agg, nil
}

// Audit replays the ledger of key and reports any drift from the stored aggregate
func (s *putawayService) Audit(ctx context.Context, key domain.AggregateKey) (*AuditResult, error) {
	if err := key.Validate("Audit"); err != nil {
		return nil, err
	}

	agg, err := s.repo.GetAggregate(ctx, key)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListEntries(ctx, agg.ID)
	if err != nil {
		return nil, err
	}

	res := &AuditResult{Aggregate: agg, Replayed: reconcile.Replay(entries)}
	for _, e := range entries {
		if e.Active() {
			res.ActiveEntries++
		} else {
			res.VoidedEntries++
		}
	}
	res.Drift = reconcile.Compare(agg, res.Replayed)
	res.Consistent = len(res.Drift) == 0
	if !res.Consistent {
		s.logger.Warn("Aggregate drift detected", zap.String("key", key.String()), zap.Int("fields", len(res.Drift)))
	}
	return res, nil
}

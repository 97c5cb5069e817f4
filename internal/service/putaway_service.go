package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RicardoMLopes/wsh/internal/domain"
	"github.com/RicardoMLopes/wsh/internal/events"
	"github.com/RicardoMLopes/wsh/internal/reconcile"
	"github.com/RicardoMLopes/wsh/internal/repository"
	"github.com/RicardoMLopes/wsh/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PutawayService transactional put-away operations
type PutawayService interface {
	Submit(ctx context.Context, req MovementSubmission) (*SubmitResult, error)
	Cancel(ctx context.Context, entryID int64) (*CompensationResult, error)
	Reverse(ctx context.Context, entryID int64) (*CompensationResult, error)

	ResetProcessWindow(ctx context.Context, reference, waybill string) (*ResetResult, error)
	CompleteProcessWindow(ctx context.Context, reference, waybill string) (*WindowResult, error)
	CompleteOperatorWindow(ctx context.Context, reference, waybill, userID string) (*WindowResult, error)
	FinishOperator(ctx context.Context, reference, waybill, userID string) (*OperatorFinishResult, error)
	AssignOperator(ctx context.Context, reference, waybill, operatorID string) (*WindowResult, error)
	OpenOperators(ctx context.Context, reference, waybill string) ([]string, error)

	ImportShipmentLines(ctx context.Context, lines []ShipmentLine) (*ImportResult, error)
	CheckMissing(ctx context.Context, reference, waybill string) (*MissingResult, error)
	Lookup(ctx context.Context, key domain.AggregateKey) (*domain.Aggregate, error)
	Audit(ctx context.Context, key domain.AggregateKey) (*AuditResult, error)
}

// aggregateCache satisfied by *store.AggregateCache
type aggregateCache interface {
	Get(ctx context.Context, k domain.AggregateKey) (*domain.Aggregate, error)
	Put(ctx context.Context, agg *domain.Aggregate) error
	Invalidate(ctx context.Context, keys ...domain.AggregateKey) error
}

// Options optional collaborators; zero values are usable
type Options struct {
	Clock           func() time.Time
	Publisher       events.Publisher
	Cache           aggregateCache
	AcquireAttempts int
}

type putawayService struct {
	repo            repository.PutawayRepository
	clock           func() time.Time
	publisher       events.Publisher
	cache           aggregateCache
	acquireAttempts int
	logger          *zap.Logger
}

func NewPutawayService(repo repository.PutawayRepository, opts Options, logger *zap.Logger) PutawayService {
	s := &putawayService{
		repo:            repo,
		clock:           opts.Clock,
		publisher:       opts.Publisher,
		cache:           opts.Cache,
		acquireAttempts: opts.AcquireAttempts,
		logger:          logger,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.acquireAttempts <= 0 {
		s.acquireAttempts = 3
	}
	return s
}

// MovementSubmission one scanned increment
type MovementSubmission struct {
	Reference   string          `json:"reference"`
	Waybill     string          `json:"waybill"`
	PartNumber  string          `json:"partNumber"`
	Description string          `json:"description"`
	Position    string          `json:"position"`
	ClassCode   string          `json:"classCode"`
	IncomingQty decimal.Decimal `json:"incomingQty"`
	Volume      decimal.Decimal `json:"volume"`
	OperatorID  string          `json:"operatorId"`
	UserID      string          `json:"userId"`
	Damaged     bool            `json:"damaged"`
}

func (m MovementSubmission) Key() domain.AggregateKey {
	return domain.AggregateKey{Reference: m.Reference, Waybill: m.Waybill, PartNumber: m.PartNumber}
}

// SubmitResult outcome of a committed submission
type SubmitResult struct {
	Success      bool                 `json:"success"`
	AggregateID  int64                `json:"aggregateId"`
	SubmissionID uuid.UUID            `json:"submissionId"`
	Created      bool                 `json:"created"`
	Split        reconcile.Split      `json:"split"`
	Entries      []domain.LedgerEntry `json:"entries"`
	Aggregate    *domain.Aggregate    `json:"aggregate"`
}

func (s *putawayService) now() time.Time {
	// TIMESTAMPTZ keeps microseconds
	return s.clock().UTC().Truncate(time.Microsecond)
}

func (s *putawayService) Submit(ctx context.Context, req MovementSubmission) (*SubmitResult, error) {
	const op = "Submit"
	key := req.Key()
	if err := key.Validate(op); err != nil {
		return nil, err
	}
	if !req.IncomingQty.IsPositive() {
		return nil, domain.NewValidationError(op, "incomingQty must be greater than zero")
	}
	if !domain.FitsScale(req.IncomingQty) {
		return nil, domain.NewValidationError(op, fmt.Sprintf("incomingQty allows at most %d decimal places", domain.QuantityScale))
	}
	if req.Volume.IsNegative() {
		return nil, domain.NewValidationError(op, "volume must not be negative")
	}
	if !domain.FitsScale(req.Volume) {
		return nil, domain.NewValidationError(op, fmt.Sprintf("volume allows at most %d decimal places", domain.QuantityScale))
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.OperatorID = strings.TrimSpace(req.OperatorID)
	if strings.Contains(req.UserID, ",") {
		return nil, domain.NewValidationError(op, "userId must not contain ','")
	}

	now := s.now()
	res := &SubmitResult{SubmissionID: uuid.New()}

	err := s.repo.WithinTx(ctx, op, func(tx repository.PutawayTx) error {
		agg, created, err := s.acquireAggregate(ctx, tx, key, now)
		if err != nil {
			return err
		}

		split := reconcile.Classify(agg.DeclaredQty, agg.RevisedQty, req.IncomingQty)
		for _, p := range split.Portions() {
			agg.AddLabel(p.Label, p.Quantity)
		}

		breakdown := decimal.Zero
		if req.Damaged {
			breakdown = req.IncomingQty
			agg.BreakdownQty = agg.BreakdownQty.Add(breakdown)
		}
		if req.Volume.GreaterThan(agg.Volume) {
			agg.Volume = req.Volume
		}
		agg.Users.Add(req.UserID)
		agg.Description = req.Description
		agg.Position = req.Position
		agg.ClassCode = req.ClassCode
		if agg.ProcessStart == nil {
			start := now
			agg.ProcessStart = &start
		}
		if agg.Status == domain.AggregateInserted {
			agg.Status = domain.AggregateActive
		}
		agg.UpdatedAt = now

		if err := tx.UpdateAggregate(ctx, agg); err != nil {
			return err
		}

		for _, p := range split.Portions() {
			entry := domain.LedgerEntry{
				AggregateID:  agg.ID,
				SubmissionID: res.SubmissionID,
				Key:          key,
				Label:        p.Label,
				Quantity:     p.Quantity,
				BreakdownQty: breakdown,
				Volume:       req.Volume,
				UserID:       req.UserID,
				OperatorID:   req.OperatorID,
				Status:       domain.EntryActive,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			id, err := tx.InsertEntry(ctx, &entry)
			if err != nil {
				return err
			}
			entry.ID = id
			res.Entries = append(res.Entries, entry)
		}

		res.Success = true
		res.AggregateID = agg.ID
		res.Created = created
		res.Split = split
		res.Aggregate = agg
		return nil
	})
	if err != nil {
		s.logger.Warn("Submission rejected", zap.String("key", key.String()), zap.String("kind", string(domain.KindOf(err))), zap.Error(err))
		return nil, err
	}

	entryIDs := make([]int64, 0, len(res.Entries))
	for _, e := range res.Entries {
		entryIDs = append(entryIDs, e.ID)
	}
	s.logger.Info("Submission committed",
		zap.String("key", key.String()),
		zap.Int64("aggregate_id", res.AggregateID),
		zap.String("submission_id", res.SubmissionID.String()),
		zap.Int64s("entry_ids", entryIDs),
		zap.String("incoming_qty", req.IncomingQty.String()),
		zap.String("revised_qty", res.Aggregate.RevisedQty.String()),
	)
	s.afterCommit(ctx, []*domain.Aggregate{res.Aggregate}, events.Event{
		Type:         events.Submitted,
		Reference:    key.Reference,
		Waybill:      key.Waybill,
		PartNumber:   key.PartNumber,
		AggregateID:  res.AggregateID,
		EntryIDs:     entryIDs,
		SubmissionID: res.SubmissionID.String(),
		UserID:       req.UserID,
		RevisedQty:   res.Aggregate.RevisedQty.String(),
		OccurredAt:   now,
	})
	return res, nil
}

// acquireAggregate locks the active row for key, creating it when absent.
// A lost insert race yields the winner's row; the loop only repeats when that row vanished.
func (s *putawayService) acquireAggregate(ctx context.Context, tx repository.PutawayTx, key domain.AggregateKey, now time.Time) (*domain.Aggregate, bool, error) {
	for attempt := 1; attempt <= s.acquireAttempts; attempt++ {
		agg, err := tx.LockAggregate(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if agg != nil {
			return agg, false, nil
		}

		ins, err := tx.InsertAggregate(ctx, &domain.Aggregate{
			Key:         key,
			DeclaredQty: decimal.Zero,
			Status:      domain.AggregateActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return nil, false, err
		}
		switch ins.Outcome {
		case repository.Created:
			return ins.Aggregate, true, nil
		case repository.AlreadyExists:
			if ins.Aggregate != nil {
				return ins.Aggregate, false, nil
			}
		}
		s.logger.Debug("Aggregate insert raced, retrying", zap.String("key", key.String()), zap.Int("attempt", attempt))
	}
	return nil, false, domain.NewConcurrencyError("Submit", errors.New("could not acquire aggregate for "+key.String()))
}

// afterCommit drops the committed keys from the cache and publishes; failures never reach the caller.
// Lookup refills the cache from the database, so refreshes racing across commits cannot leave an older snapshot.
func (s *putawayService) afterCommit(ctx context.Context, aggs []*domain.Aggregate, e events.Event) {
	if s.cache != nil {
		keys := make([]domain.AggregateKey, 0, len(aggs))
		for _, agg := range aggs {
			if agg != nil {
				keys = append(keys, agg.Key)
			}
		}
		if len(keys) > 0 {
			if err := s.cache.Invalidate(ctx, keys...); err != nil {
				s.logger.Warn("Failed to invalidate aggregate cache", zap.Int("keys", len(keys)), zap.Error(err))
			}
		}
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("Failed to publish putaway event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

func requirePair(op, reference, waybill string) error {
	if strings.TrimSpace(reference) == "" {
		return domain.NewValidationError(op, "reference is required")
	}
	if strings.TrimSpace(waybill) == "" {
		return domain.NewValidationError(op, "waybill is required")
	}
	return nil
}

var _ aggregateCache = (*store.AggregateCache)(nil)

package service

import (
	"context"
	"fmt"

	"github.com/RicardoMLopes/wsh/internal/domain"
	"github.com/RicardoMLopes/wsh/internal/events"
	"github.com/RicardoMLopes/wsh/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ShipmentLine an expected line from the shipment manifest
type ShipmentLine struct {
	Reference    string          `json:"reference" yaml:"reference"`
	Waybill      string          `json:"waybill" yaml:"waybill"`
	PartNumber   string          `json:"partNumber" yaml:"partNumber"`
	Description  string          `json:"description" yaml:"description"`
	DeclaredQty  decimal.Decimal `json:"declaredQty" yaml:"declaredQty"`
	ProcessLines string          `json:"processLines" yaml:"processLines"`
	InputType    string          `json:"inputType" yaml:"inputType"`
}

func (l ShipmentLine) Key() domain.AggregateKey {
	return domain.AggregateKey{Reference: l.Reference, Waybill: l.Waybill, PartNumber: l.PartNumber}
}

// ImportResult per-line outcome counts
type ImportResult struct {
	Total    int `json:"total"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Ignored  int `json:"ignored"`
}

// MissingResult declared lines nobody has put away yet
type MissingResult struct {
	Found         bool               `json:"found"`
	Count         int                `json:"count"`
	MultipleUsers bool               `json:"multipleUsers"`
	Items         []domain.Aggregate `json:"items"`
}

// ImportShipmentLines declares expected quantities in one transaction.
// New keys are inserted as Inserted; untouched keys (revisedQty 0) are refreshed and activated;
// keys that already have confirmed quantity are left alone.
func (s *putawayService) ImportShipmentLines(ctx context.Context, lines []ShipmentLine) (*ImportResult, error) {
	const op = "ImportShipmentLines"
	if len(lines) == 0 {
		return nil, domain.NewValidationError(op, "no shipment lines")
	}
	for i, l := range lines {
		if err := l.Key().Validate(op); err != nil {
			return nil, domain.NewValidationError(op, fmt.Sprintf("line %d: %s", i+1, err.(*domain.Error).Message))
		}
		if l.DeclaredQty.IsNegative() {
			return nil, domain.NewValidationError(op, fmt.Sprintf("line %d: declaredQty must not be negative", i+1))
		}
		if !domain.FitsScale(l.DeclaredQty) {
			return nil, domain.NewValidationError(op, fmt.Sprintf("line %d: declaredQty allows at most %d decimal places", i+1, domain.QuantityScale))
		}
	}

	now := s.now()
	res := &ImportResult{Total: len(lines)}
	touched := make(map[domain.AggregateKey]*domain.Aggregate)
	err := s.repo.WithinTx(ctx, op, func(tx repository.PutawayTx) error {
		for _, l := range lines {
			agg, err := tx.LockAggregate(ctx, l.Key())
			if err != nil {
				return err
			}
			if agg == nil {
				ins, err := tx.InsertAggregate(ctx, &domain.Aggregate{
					Key:          l.Key(),
					Description:  l.Description,
					ProcessLines: l.ProcessLines,
					InputType:    l.InputType,
					DeclaredQty:  l.DeclaredQty,
					Status:       domain.AggregateInserted,
					CreatedAt:    now,
					UpdatedAt:    now,
				})
				if err != nil {
					return err
				}
				if ins.Outcome == repository.Created {
					res.Inserted++
					touched[l.Key()] = ins.Aggregate
					continue
				}
				if ins.Aggregate == nil {
					return domain.NewConcurrencyError(op, fmt.Errorf("aggregate for %s changed during import", l.Key()))
				}
				agg = ins.Aggregate
			}

			if !agg.RevisedQty.IsZero() {
				res.Ignored++
				continue
			}
			agg.DeclaredQty = l.DeclaredQty
			agg.Description = l.Description
			agg.ProcessLines = l.ProcessLines
			agg.InputType = l.InputType
			agg.Status = domain.AggregateActive
			agg.UpdatedAt = now
			if err := tx.UpdateAggregate(ctx, agg); err != nil {
				return err
			}
			res.Updated++
			touched[l.Key()] = agg
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Shipment line import rejected", zap.Int("lines", len(lines)), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Shipment lines imported",
		zap.Int("total", res.Total),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("ignored", res.Ignored),
	)

	byPair := make(map[[2]string][]*domain.Aggregate)
	var order [][2]string
	for _, l := range lines {
		pair := [2]string{l.Reference, l.Waybill}
		if _, ok := byPair[pair]; !ok {
			order = append(order, pair)
			byPair[pair] = nil
		}
		if agg, ok := touched[l.Key()]; ok {
			byPair[pair] = append(byPair[pair], agg)
			delete(touched, l.Key())
		}
	}
	for _, pair := range order {
		s.afterCommit(ctx, byPair[pair], events.Event{
			Type:         events.LinesImported,
			Reference:    pair[0],
			Waybill:      pair[1],
			RowsAffected: int64(len(byPair[pair])),
			OccurredAt:   now,
		})
	}
	return res, nil
}

// CheckMissing lists declared lines of the pair with nothing confirmed
func (s *putawayService) CheckMissing(ctx context.Context, reference, waybill string) (*MissingResult, error) {
	if err := requirePair("CheckMissing", reference, waybill); err != nil {
		return nil, err
	}

	list, err := s.repo.ListAggregates(ctx, reference, waybill)
	if err != nil {
		return nil, err
	}

	res := &MissingResult{Items: []domain.Aggregate{}}
	for _, agg := range list {
		if agg.Users.Len() > 1 {
			res.MultipleUsers = true
		}
		if agg.MissingPutaway() {
			res.Items = append(res.Items, agg)
		}
	}
	res.Count = len(res.Items)
	res.Found = res.Count > 0
	return res, nil
}

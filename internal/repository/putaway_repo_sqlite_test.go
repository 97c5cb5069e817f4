package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	commoncfg "github.com/RicardoMLopes/wsh/common/config"
	"github.com/RicardoMLopes/wsh/common/database"
	"github.com/RicardoMLopes/wsh/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func createTestRepo(t *testing.T) *SQLPutawayRepository {
	t.Helper()
	db, err := database.NewSQLiteDB(&commoncfg.DatabaseConfig{SQLitePath: filepath.Join(t.TempDir(), "putaway.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db, SQLite))
	return NewPutawayRepository(db, SQLite, 0, zap.NewNop())
}

var (
	testKey = domain.AggregateKey{Reference: "REF-1", Waybill: "WB-9", PartNumber: "PN-100"}
	testNow = time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
)

func newAggregate(key domain.AggregateKey, declared string) *domain.Aggregate {
	return &domain.Aggregate{
		Key:         key,
		Description: "bolt",
		DeclaredQty: decimal.RequireFromString(declared),
		Users:       domain.NewUserSet("u1"),
		Status:      domain.AggregateActive,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
}

func insertAggregate(t *testing.T, repo *SQLPutawayRepository, agg *domain.Aggregate) InsertResult {
	t.Helper()
	var res InsertResult
	err := repo.WithinTx(context.Background(), "test", func(tx PutawayTx) error {
		var err error
		res, err = tx.InsertAggregate(context.Background(), agg)
		return err
	})
	require.NoError(t, err)
	return res
}

func TestMigrate_Idempotent(t *testing.T) {
	repo := createTestRepo(t)
	require.NoError(t, Migrate(context.Background(), repo.db, SQLite))
}

func TestInsertAggregate_CreatedThenAlreadyExists(t *testing.T) {
	repo := createTestRepo(t)

	first := insertAggregate(t, repo, newAggregate(testKey, "100"))
	assert.Equal(t, Created, first.Outcome)
	assert.NotZero(t, first.Aggregate.ID)

	second := insertAggregate(t, repo, newAggregate(testKey, "5"))
	assert.Equal(t, AlreadyExists, second.Outcome)
	assert.Equal(t, first.Aggregate.ID, second.Aggregate.ID)
	assert.True(t, second.Aggregate.DeclaredQty.Equal(decimal.NewFromInt(100)), "existing row must win")
}

func TestInsertAggregate_VoidedKeyIsReusable(t *testing.T) {
	repo := createTestRepo(t)
	ctx := context.Background()

	first := insertAggregate(t, repo, newAggregate(testKey, "10"))
	voided := *first.Aggregate
	voided.Status = domain.AggregateVoided
	require.NoError(t, repo.WithinTx(ctx, "test", func(tx PutawayTx) error {
		return tx.UpdateAggregate(ctx, &voided)
	}))

	second := insertAggregate(t, repo, newAggregate(testKey, "20"))
	assert.Equal(t, Created, second.Outcome)
	assert.NotEqual(t, first.Aggregate.ID, second.Aggregate.ID)
}

func TestGetAggregate_RoundTrip(t *testing.T) {
	repo := createTestRepo(t)
	ctx := context.Background()

	agg := newAggregate(testKey, "12.5")
	start := testNow.Add(time.Minute)
	agg.ProcessStart = &start
	agg.StandardQty = decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2"))
	agg.Users.Add("u7")
	insertAggregate(t, repo, agg)

	got, err := repo.GetAggregate(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "bolt", got.Description)
	assert.True(t, got.DeclaredQty.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "0.3", got.StandardQty.String())
	assert.Equal(t, []string{"u1", "u7"}, got.Users.IDs())
	require.NotNil(t, got.ProcessStart)
	assert.True(t, got.ProcessStart.Equal(start))
	assert.Nil(t, got.ProcessEnd)
	assert.Equal(t, domain.AggregateActive, got.Status)

	byID, err := repo.GetAggregateByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Key, byID.Key)
}

func TestGetAggregate_NotFound(t *testing.T) {
	repo := createTestRepo(t)

	_, err := repo.GetAggregate(context.Background(), testKey)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	_, err = repo.GetAggregateByID(context.Background(), 42)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	repo := createTestRepo(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithinTx(ctx, "Submit", func(tx PutawayTx) error {
		if _, err := tx.InsertAggregate(ctx, newAggregate(testKey, "1")); err != nil {
			return err
		}
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, domain.KindPersistence, domain.KindOf(err))

	_, err = repo.GetAggregate(ctx, testKey)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestWithinTx_DomainErrorPassesThrough(t *testing.T) {
	repo := createTestRepo(t)
	err := repo.WithinTx(context.Background(), "Cancel", func(tx PutawayTx) error {
		return domain.NewLogicalStateError("Cancel", "already voided")
	})
	assert.Equal(t, domain.KindLogicalState, domain.KindOf(err))
}

func TestLedgerEntries(t *testing.T) {
	repo := createTestRepo(t)
	ctx := context.Background()
	agg := insertAggregate(t, repo, newAggregate(testKey, "100")).Aggregate
	sub := uuid.New()

	var ids []int64
	require.NoError(t, repo.WithinTx(ctx, "test", func(tx PutawayTx) error {
		for _, label := range []domain.LabelType{domain.LabelStandard, domain.LabelLPS} {
			id, err := tx.InsertEntry(ctx, &domain.LedgerEntry{
				AggregateID:  agg.ID,
				SubmissionID: sub,
				Key:          testKey,
				Label:        label,
				Quantity:     decimal.NewFromInt(10),
				BreakdownQty: decimal.NewFromInt(20),
				UserID:       "u1",
				Status:       domain.EntryActive,
				CreatedAt:    testNow,
				UpdatedAt:    testNow,
			})
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	}))
	require.Len(t, ids, 2)

	e, err := repo.GetEntry(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, sub, e.SubmissionID)
	assert.Equal(t, domain.LabelLPS, e.Label)
	assert.True(t, e.BreakdownQty.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, testKey, e.Key)

	require.NoError(t, repo.WithinTx(ctx, "test", func(tx PutawayTx) error {
		n, err := tx.CountActiveSiblings(ctx, sub, ids[0])
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		if err := tx.SetEntryStatus(ctx, ids[1], domain.EntryVoided, testNow); err != nil {
			return err
		}
		n, err = tx.CountActiveSiblings(ctx, sub, ids[0])
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		locked, err := tx.LockEntry(ctx, ids[1])
		require.NoError(t, err)
		assert.Equal(t, domain.EntryVoided, locked.Status)
		return nil
	}))

	all, err := repo.ListEntries(ctx, agg.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.GetEntry(ctx, 999)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestProcessWindowQueries(t *testing.T) {
	repo := createTestRepo(t)
	ctx := context.Background()
	a := insertAggregate(t, repo, newAggregate(testKey, "1")).Aggregate
	otherKey := testKey
	otherKey.PartNumber = "PN-200"
	insertAggregate(t, repo, newAggregate(otherKey, "1"))

	require.NoError(t, repo.WithinTx(ctx, "test", func(tx PutawayTx) error {
		for _, user := range []string{"u1", "u2", "u2"} {
			if _, err := tx.InsertEntry(ctx, &domain.LedgerEntry{
				AggregateID: a.ID, SubmissionID: uuid.New(), Key: testKey, Label: domain.LabelStandard,
				Quantity: decimal.NewFromInt(1), UserID: user, Status: domain.EntryActive,
				CreatedAt: testNow, UpdatedAt: testNow,
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	open, err := repo.OpenOperators(ctx, "REF-1", "WB-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, open)

	end := testNow.Add(time.Hour)
	require.NoError(t, repo.WithinTx(ctx, "test", func(tx PutawayTx) error {
		n, err := tx.CloseOperatorEntries(ctx, "REF-1", "WB-9", "u2", end)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		n, err = tx.SetAggregatesProcessEnd(ctx, "REF-1", "WB-9", &end, end)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		n, err = tx.SetOperator(ctx, "REF-1", "WB-9", "op-3", end)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
		return nil
	}))

	open, err = repo.OpenOperators(ctx, "REF-1", "WB-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, open)

	list, err := repo.ListAggregates(ctx, "REF-1", "WB-9")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, agg := range list {
		require.NotNil(t, agg.ProcessEnd)
		assert.True(t, agg.ProcessEnd.Equal(end))
		assert.Equal(t, "op-3", agg.OperatorID)
	}

	require.NoError(t, repo.WithinTx(ctx, "test", func(tx PutawayTx) error {
		n, err := tx.ClearEntriesProcessEnd(ctx, "REF-1", "WB-9", end)
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
		return nil
	}))
	open, err = repo.OpenOperators(ctx, "REF-1", "WB-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, open)
}

//go:build integration
// +build integration

package service

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/RicardoMLopes/wsh/common/config"
	"github.com/RicardoMLopes/wsh/common/database"
	"github.com/RicardoMLopes/wsh/internal/domain"
	"github.com/RicardoMLopes/wsh/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func getTestDBForService(t *testing.T) *sql.DB {
	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "wsh_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
		MaxConns: 16,
	}

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil
	}
	if err := repository.Migrate(context.Background(), db, repository.Postgres); err != nil {
		db.Close()
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func TestPostgres_ConcurrentFirstSubmissions(t *testing.T) {
	db := getTestDBForService(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := repository.NewPutawayRepository(db, repository.Postgres, 5*time.Second, zap.NewNop())
	svc := NewPutawayService(repo, Options{}, zap.NewNop())
	ctx := context.Background()
	k := domain.AggregateKey{Reference: "IT-" + uuid.NewString(), Waybill: "WB", PartNumber: "PN"}

	const workers = 12
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.Submit(ctx, MovementSubmission{
				Reference: k.Reference, Waybill: k.Waybill, PartNumber: k.PartNumber,
				IncomingQty: dec(strconv.Itoa(i + 1)), UserID: "u" + strconv.Itoa(i),
			})
			assert.NoError(t, err)
		}(i)
	}
	close(start)
	wg.Wait()

	agg, err := svc.Lookup(ctx, k)
	require.NoError(t, err)
	assertDec(t, "78", agg.RevisedQty)
	assert.Equal(t, workers, agg.Users.Len())

	audit, err := svc.Audit(ctx, k)
	require.NoError(t, err)
	assert.True(t, audit.Consistent, "drift: %+v", audit.Drift)
	assert.Equal(t, workers, audit.ActiveEntries)
}

func TestPostgres_CancelReverseRoundTrip(t *testing.T) {
	db := getTestDBForService(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := repository.NewPutawayRepository(db, repository.Postgres, 5*time.Second, zap.NewNop())
	svc := NewPutawayService(repo, Options{}, zap.NewNop())
	ctx := context.Background()
	k := domain.AggregateKey{Reference: "IT-" + uuid.NewString(), Waybill: "WB", PartNumber: "PN"}

	_, err := svc.ImportShipmentLines(ctx, []ShipmentLine{{Reference: k.Reference, Waybill: k.Waybill, PartNumber: k.PartNumber, DeclaredQty: dec("10")}})
	require.NoError(t, err)
	res, err := svc.Submit(ctx, MovementSubmission{Reference: k.Reference, Waybill: k.Waybill, PartNumber: k.PartNumber, IncomingQty: dec("12.5"), Damaged: true})
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)

	before, err := svc.Lookup(ctx, k)
	require.NoError(t, err)
	for _, e := range res.Entries {
		_, err := svc.Cancel(ctx, e.ID)
		require.NoError(t, err)
	}
	for _, e := range res.Entries {
		_, err := svc.Reverse(ctx, e.ID)
		require.NoError(t, err)
	}
	after, err := svc.Lookup(ctx, k)
	require.NoError(t, err)

	assert.True(t, before.RevisedQty.Equal(after.RevisedQty))
	assert.True(t, before.BreakdownQty.Equal(after.BreakdownQty))
	assert.True(t, before.LPSQty.Equal(after.LPSQty))
}

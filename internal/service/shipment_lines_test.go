package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/RicardoMLopes/wsh/internal/domain"
	"github.com/RicardoMLopes/wsh/internal/repository"
	"github.com/RicardoMLopes/wsh/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(part, qty string) ShipmentLine {
	return ShipmentLine{Reference: "REF-1", Waybill: "WB-9", PartNumber: part, DeclaredQty: dec(qty), InputType: "national"}
}

func TestImportShipmentLines_InsertUpdateIgnore(t *testing.T) {
	f := setupPutawayService(t)
	ctx := context.Background()

	res, err := f.svc.ImportShipmentLines(ctx, []ShipmentLine{line("A", "10"), line("B", "5")})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Total: 2, Inserted: 2}, *res)

	a := f.lookup(t, domain.AggregateKey{Reference: "REF-1", Waybill: "WB-9", PartNumber: "A"})
	assert.Equal(t, domain.AggregateInserted, a.Status)
	assertDec(t, "10", a.DeclaredQty)
	assert.Equal(t, "national", a.InputType)
	assert.Nil(t, a.ProcessStart)

	f.submit(t, movement(domain.AggregateKey{Reference: "REF-1", Waybill: "WB-9", PartNumber: "B"}, "1", "u1"))

	changed := line("A", "12")
	changed.Description = "washer"
	changed.InputType = "transfer"
	res, err = f.svc.ImportShipmentLines(ctx, []ShipmentLine{changed, line("B", "99"), line("C", "3")})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Total: 3, Inserted: 1, Updated: 1, Ignored: 1}, *res)

	a = f.lookup(t, domain.AggregateKey{Reference: "REF-1", Waybill: "WB-9", PartNumber: "A"})
	assert.Equal(t, domain.AggregateActive, a.Status)
	assertDec(t, "12", a.DeclaredQty)
	assert.Equal(t, "washer", a.Description)
	assert.Equal(t, "transfer", a.InputType)

	b := f.lookup(t, domain.AggregateKey{Reference: "REF-1", Waybill: "WB-9", PartNumber: "B"})
	assertDec(t, "5", b.DeclaredQty, "lines with confirmed quantity are not re-declared")
}

func TestImportShipmentLines_ValidationRejectsWholeBatch(t *testing.T) {
	f := setupPutawayService(t)
	ctx := context.Background()

	_, err := f.svc.ImportShipmentLines(ctx, nil)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.svc.ImportShipmentLines(ctx, []ShipmentLine{line("A", "1"), line("", "2")})
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Contains(t, err.Error(), "line 2")

	_, err = f.svc.ImportShipmentLines(ctx, []ShipmentLine{line("A", "-1")})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.svc.ImportShipmentLines(ctx, []ShipmentLine{line("A", "2.00001")})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Contains(t, err.Error(), "decimal places")

	_, err = f.svc.Lookup(ctx, domain.AggregateKey{Reference: "REF-1", Waybill: "WB-9", PartNumber: "A"})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestCheckMissing(t *testing.T) {
	f := setupPutawayService(t)
	ctx := context.Background()
	_, err := f.svc.ImportShipmentLines(ctx, []ShipmentLine{line("A", "10"), line("B", "5"), line("Z", "0")})
	require.NoError(t, err)

	empty, err := f.svc.CheckMissing(ctx, "REF-1", "WB-9")
	require.NoError(t, err)
	assert.Equal(t, 2, empty.Count)
	assert.False(t, empty.MultipleUsers)

	bKey := domain.AggregateKey{Reference: "REF-1", Waybill: "WB-9", PartNumber: "B"}
	f.submit(t, movement(bKey, "2", "u1"))
	f.submit(t, movement(bKey, "3", "u2"))

	res, err := f.svc.CheckMissing(ctx, "REF-1", "WB-9")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 1, res.Count)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "A", res.Items[0].Key.PartNumber)
	assert.True(t, res.MultipleUsers)

	none, err := f.svc.CheckMissing(ctx, "REF-2", "WB-9")
	require.NoError(t, err)
	assert.False(t, none.Found)
	assert.NotNil(t, none.Items)
}

func TestLookup_ReadsThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := store.NewAggregateCache(store.NewRedisKV(client), "putaway:aggregate:", time.Minute)

	f := setupPutawayService(t, func(o *Options) { o.Cache = cache })
	ctx := context.Background()

	f.submit(t, movement(key, "4", "u1"))
	cacheKey := cache.Key(key)
	assert.False(t, mr.Exists(cacheKey), "commits only evict")

	agg, err := f.svc.Lookup(ctx, key)
	require.NoError(t, err)
	assertDec(t, "4", agg.RevisedQty)
	assert.True(t, mr.Exists(cacheKey), "a miss fills the cache")

	_, err = f.svc.CompleteProcessWindow(ctx, "REF-1", "WB-9")
	require.NoError(t, err)
	assert.False(t, mr.Exists(cacheKey), "window changes evict the snapshot")
	assert.NotNil(t, f.lookup(t, key).ProcessEnd)

	mr.SetError("READONLY")
	_, err = f.svc.Submit(ctx, movement(key, "1", "u1"))
	require.NoError(t, err, "cache failures never fail a committed submission")
}

// countingCache records writes made through the cache
type countingCache struct {
	*store.AggregateCache
	mu   sync.Mutex
	puts int
}

func (c *countingCache) Put(ctx context.Context, agg *domain.Aggregate) error {
	c.mu.Lock()
	c.puts++
	c.mu.Unlock()
	return c.AggregateCache.Put(ctx, agg)
}

func (c *countingCache) Puts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

func TestLookup_CacheNeverOutlivesNewerCommit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := &countingCache{AggregateCache: store.NewAggregateCache(store.NewRedisKV(client), "putaway:aggregate:", time.Minute)}

	f := setupPutawayService(t, func(o *Options) { o.Cache = cache })
	ctx := context.Background()

	f.submit(t, movement(key, "10", "u1"))
	assertDec(t, "10", f.lookup(t, key).RevisedQty)
	require.Equal(t, 1, cache.Puts())

	f.submit(t, movement(key, "15", "u2"))
	assert.Equal(t, 1, cache.Puts(), "committed snapshots are never written back")

	db, err := f.repo.GetAggregate(ctx, key)
	require.NoError(t, err)
	got := f.lookup(t, key)
	assertDec(t, "25", got.RevisedQty)
	assert.True(t, db.RevisedQty.Equal(got.RevisedQty))

	res, err := f.svc.Cancel(ctx, f.submit(t, movement(key, "5", "u1")).Entries[0].ID)
	require.NoError(t, err)
	assertDec(t, "25", res.Aggregate.RevisedQty)
	assertDec(t, "25", f.lookup(t, key).RevisedQty, "a compensation evicts the snapshot read before it")
}

func TestAudit_DetectsDrift(t *testing.T) {
	f := setupPutawayService(t)
	ctx := context.Background()
	res := f.submit(t, movement(key, "4", "u1"))

	tampered := *res.Aggregate
	tampered.RevisedQty = dec("5")
	require.NoError(t, f.repo.WithinTx(ctx, "test", func(tx repository.PutawayTx) error {
		return tx.UpdateAggregate(ctx, &tampered)
	}))

	audit, err := f.svc.Audit(ctx, key)
	require.NoError(t, err)
	assert.False(t, audit.Consistent)
	require.Len(t, audit.Drift, 1)
	assert.Equal(t, "revisedQty", audit.Drift[0].Field)
	assert.Equal(t, 1, audit.ActiveEntries)
}

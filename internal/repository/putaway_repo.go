package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/RicardoMLopes/wsh/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InsertOutcome tag of an aggregate insert attempt
type InsertOutcome int

const (
	Created InsertOutcome = iota + 1
	AlreadyExists
)

func (o InsertOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	}
	return "unknown"
}

// InsertResult Created carries the new row, AlreadyExists the locked row that won the race (nil if it is gone)
type InsertResult struct {
	Outcome   InsertOutcome
	Aggregate *domain.Aggregate
}

// PutawayRepository aggregate store and ledger. Reads outside WithinTx take no locks.
type PutawayRepository interface {
	// WithinTx runs fn in one transaction; any error from fn rolls everything back
	WithinTx(ctx context.Context, op string, fn func(tx PutawayTx) error) error

	GetAggregate(ctx context.Context, key domain.AggregateKey) (*domain.Aggregate, error)
	GetAggregateByID(ctx context.Context, id int64) (*domain.Aggregate, error)
	ListAggregates(ctx context.Context, reference, waybill string) ([]domain.Aggregate, error)
	GetEntry(ctx context.Context, id int64) (*domain.LedgerEntry, error)
	ListEntries(ctx context.Context, aggregateID int64) ([]domain.LedgerEntry, error)
	OpenOperators(ctx context.Context, reference, waybill string) ([]string, error)
}

// PutawayTx operations valid inside one unit of work
type PutawayTx interface {
	// LockAggregate returns the active row for key under lock, or nil when there is none
	LockAggregate(ctx context.Context, key domain.AggregateKey) (*domain.Aggregate, error)
	LockAggregateByID(ctx context.Context, id int64) (*domain.Aggregate, error)
	InsertAggregate(ctx context.Context, agg *domain.Aggregate) (InsertResult, error)
	UpdateAggregate(ctx context.Context, agg *domain.Aggregate) error
	ListAggregates(ctx context.Context, reference, waybill string) ([]domain.Aggregate, error)

	GetEntry(ctx context.Context, id int64) (*domain.LedgerEntry, error)
	LockEntry(ctx context.Context, id int64) (*domain.LedgerEntry, error)
	InsertEntry(ctx context.Context, e *domain.LedgerEntry) (int64, error)
	SetEntryStatus(ctx context.Context, id int64, status domain.EntryStatus, at time.Time) error
	CountActiveSiblings(ctx context.Context, submissionID uuid.UUID, excludeID int64) (int, error)

	SetAggregatesProcessEnd(ctx context.Context, reference, waybill string, end *time.Time, at time.Time) (int64, error)
	ClearEntriesProcessEnd(ctx context.Context, reference, waybill string, at time.Time) (int64, error)
	CloseOperatorEntries(ctx context.Context, reference, waybill, userID string, at time.Time) (int64, error)
	SetOperator(ctx context.Context, reference, waybill, operatorID string, at time.Time) (int64, error)
	OpenOperators(ctx context.Context, reference, waybill string) ([]string, error)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLPutawayRepository database/sql implementation for Postgres and SQLite
type SQLPutawayRepository struct {
	db          *sql.DB
	dialect     Dialect
	lockTimeout time.Duration
	logger      *zap.Logger
	queries
}

func NewPutawayRepository(db *sql.DB, dialect Dialect, lockTimeout time.Duration, logger *zap.Logger) *SQLPutawayRepository {
	return &SQLPutawayRepository{
		db:          db,
		dialect:     dialect,
		lockTimeout: lockTimeout,
		logger:      logger,
		queries:     queries{q: db, d: dialect},
	}
}

func (r *SQLPutawayRepository) WithinTx(ctx context.Context, op string, fn func(tx PutawayTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if r.dialect.Name == Postgres.Name && r.lockTimeout > 0 {
		// SET does not take bind parameters
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return classify(op, fmt.Errorf("failed to set lock timeout: %w", err))
		}
	}

	if err := fn(&sqlTx{queries{q: tx, d: r.dialect}}); err != nil {
		if domain.KindOf(err) == domain.KindConcurrency || domain.KindOf(err) == domain.KindPersistence {
			r.logger.Warn("Putaway transaction rolled back", zap.String("op", op), zap.Error(err))
		}
		return classify(op, err)
	}

	if err := tx.Commit(); err != nil {
		return classify(op, fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func (r *SQLPutawayRepository) GetAggregate(ctx context.Context, key domain.AggregateKey) (*domain.Aggregate, error) {
	agg, err := r.selectAggregateByKey(ctx, key, false)
	if err != nil {
		return nil, classify("GetAggregate", err)
	}
	if agg == nil {
		return nil, domain.NewNotFoundError("GetAggregate", "no active aggregate for "+key.String())
	}
	return agg, nil
}

func (r *SQLPutawayRepository) GetAggregateByID(ctx context.Context, id int64) (*domain.Aggregate, error) {
	agg, err := r.selectAggregateByID(ctx, id, false)
	if err != nil {
		return nil, classify("GetAggregateByID", err)
	}
	if agg == nil {
		return nil, domain.NewNotFoundError("GetAggregateByID", fmt.Sprintf("aggregate %d not found", id))
	}
	return agg, nil
}

func (r *SQLPutawayRepository) ListAggregates(ctx context.Context, reference, waybill string) ([]domain.Aggregate, error) {
	out, err := r.queries.ListAggregates(ctx, reference, waybill)
	return out, classify("ListAggregates", err)
}

func (r *SQLPutawayRepository) GetEntry(ctx context.Context, id int64) (*domain.LedgerEntry, error) {
	e, err := r.queries.GetEntry(ctx, id)
	return e, classify("GetEntry", err)
}

func (r *SQLPutawayRepository) ListEntries(ctx context.Context, aggregateID int64) ([]domain.LedgerEntry, error) {
	rows, err := r.q.QueryContext(ctx, r.d.Rebind(`SELECT `+entryColumns+` FROM putaway_ledger WHERE aggregate_id = $1 ORDER BY id`), aggregateID)
	if err != nil {
		return nil, classify("ListEntries", fmt.Errorf("failed to list ledger entries: %w", err))
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, classify("ListEntries", err)
		}
		out = append(out, *e)
	}
	return out, classify("ListEntries", rows.Err())
}

func (r *SQLPutawayRepository) OpenOperators(ctx context.Context, reference, waybill string) ([]string, error) {
	out, err := r.queries.OpenOperators(ctx, reference, waybill)
	return out, classify("OpenOperators", err)
}

type sqlTx struct {
	queries
}

func (t *sqlTx) LockAggregate(ctx context.Context, key domain.AggregateKey) (*domain.Aggregate, error) {
	return t.selectAggregateByKey(ctx, key, true)
}

func (t *sqlTx) LockAggregateByID(ctx context.Context, id int64) (*domain.Aggregate, error) {
	agg, err := t.selectAggregateByID(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return nil, domain.NewNotFoundError("LockAggregateByID", fmt.Sprintf("aggregate %d not found", id))
	}
	return agg, nil
}

func (t *sqlTx) InsertAggregate(ctx context.Context, agg *domain.Aggregate) (InsertResult, error) {
	query := t.d.Rebind(`
		INSERT INTO putaway_aggregates (
			reference, waybill, part_number, description, storage_position, class_code,
			process_lines, input_type, operator_id,
			declared_qty, revised_qty, standard_qty, lps_qty, undeclared_qty, breakdown_qty, volume,
			user_ids, process_start, process_end, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT DO NOTHING
		RETURNING id`)

	var id int64
	err := t.q.QueryRowContext(ctx, query,
		agg.Key.Reference, agg.Key.Waybill, agg.Key.PartNumber, agg.Description, agg.Position, agg.ClassCode,
		agg.ProcessLines, agg.InputType, agg.OperatorID,
		agg.DeclaredQty, agg.RevisedQty, agg.StandardQty, agg.LPSQty, agg.UndeclaredQty, agg.BreakdownQty, agg.Volume,
		agg.Users.Legacy(), nullTime(agg.ProcessStart), nullTime(agg.ProcessEnd), string(agg.Status), agg.CreatedAt, agg.UpdatedAt,
	).Scan(&id)
	switch {
	case err == nil:
		created := *agg
		created.ID = id
		return InsertResult{Outcome: Created, Aggregate: &created}, nil
	case errors.Is(err, sql.ErrNoRows):
		// another transaction holds the key; wait for its lock and take its row
		existing, lerr := t.selectAggregateByKey(ctx, agg.Key, true)
		if lerr != nil {
			return InsertResult{}, lerr
		}
		// existing is nil when the conflicting row was voided meanwhile; the caller retries
		return InsertResult{Outcome: AlreadyExists, Aggregate: existing}, nil
	case isUniqueViolation(err):
		return InsertResult{}, domain.NewConcurrencyError("InsertAggregate", err)
	default:
		return InsertResult{}, fmt.Errorf("failed to insert aggregate: %w", err)
	}
}

func (t *sqlTx) UpdateAggregate(ctx context.Context, agg *domain.Aggregate) error {
	query := t.d.Rebind(`
		UPDATE putaway_aggregates SET
			description = $2, storage_position = $3, class_code = $4,
			process_lines = $5, input_type = $6, operator_id = $7,
			declared_qty = $8, revised_qty = $9, standard_qty = $10, lps_qty = $11,
			undeclared_qty = $12, breakdown_qty = $13, volume = $14,
			user_ids = $15, process_start = $16, process_end = $17, status = $18, updated_at = $19
		WHERE id = $1`)

	res, err := t.q.ExecContext(ctx, query, agg.ID,
		agg.Description, agg.Position, agg.ClassCode,
		agg.ProcessLines, agg.InputType, agg.OperatorID,
		agg.DeclaredQty, agg.RevisedQty, agg.StandardQty, agg.LPSQty,
		agg.UndeclaredQty, agg.BreakdownQty, agg.Volume,
		agg.Users.Legacy(), nullTime(agg.ProcessStart), nullTime(agg.ProcessEnd), string(agg.Status), agg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update aggregate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return domain.NewNotFoundError("UpdateAggregate", fmt.Sprintf("aggregate %d not found", agg.ID))
	}
	return nil
}

func (t *sqlTx) LockEntry(ctx context.Context, id int64) (*domain.LedgerEntry, error) {
	row := t.q.QueryRowContext(ctx, t.d.Rebind(t.d.forUpdate(`SELECT `+entryColumns+` FROM putaway_ledger WHERE id = $1`)), id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("LockEntry", fmt.Sprintf("ledger entry %d not found", id))
		}
		return nil, fmt.Errorf("failed to lock ledger entry: %w", err)
	}
	return e, nil
}

func (t *sqlTx) InsertEntry(ctx context.Context, e *domain.LedgerEntry) (int64, error) {
	query := t.d.Rebind(`
		INSERT INTO putaway_ledger (
			aggregate_id, submission_id, reference, waybill, part_number,
			label_type, quantity, breakdown_qty, volume, user_id, operator_id,
			status, process_end, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`)

	var id int64
	err := t.q.QueryRowContext(ctx, query,
		e.AggregateID, e.SubmissionID, e.Key.Reference, e.Key.Waybill, e.Key.PartNumber,
		string(e.Label), e.Quantity, e.BreakdownQty, e.Volume, e.UserID, e.OperatorID,
		string(e.Status), nullTime(e.ProcessEnd), e.CreatedAt, e.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return id, nil
}

func (t *sqlTx) SetEntryStatus(ctx context.Context, id int64, status domain.EntryStatus, at time.Time) error {
	res, err := t.q.ExecContext(ctx, t.d.Rebind(`UPDATE putaway_ledger SET status = $2, updated_at = $3 WHERE id = $1`), id, string(status), at)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return domain.NewNotFoundError("SetEntryStatus", fmt.Sprintf("ledger entry %d not found", id))
	}
	return nil
}

func (t *sqlTx) CountActiveSiblings(ctx context.Context, submissionID uuid.UUID, excludeID int64) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx, t.d.Rebind(`
		SELECT COUNT(*) FROM putaway_ledger
		WHERE submission_id = $1 AND id <> $2 AND status = 'active'`), submissionID, excludeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sibling entries: %w", err)
	}
	return n, nil
}

func (t *sqlTx) SetAggregatesProcessEnd(ctx context.Context, reference, waybill string, end *time.Time, at time.Time) (int64, error) {
	return t.execAffected(ctx, "failed to set aggregate process end", `
		UPDATE putaway_aggregates SET process_end = $3, updated_at = $4
		WHERE reference = $1 AND waybill = $2 AND status <> 'voided'`,
		reference, waybill, nullTime(end), at)
}

func (t *sqlTx) ClearEntriesProcessEnd(ctx context.Context, reference, waybill string, at time.Time) (int64, error) {
	return t.execAffected(ctx, "failed to clear ledger process end", `
		UPDATE putaway_ledger SET process_end = NULL, updated_at = $3
		WHERE reference = $1 AND waybill = $2`,
		reference, waybill, at)
}

func (t *sqlTx) CloseOperatorEntries(ctx context.Context, reference, waybill, userID string, at time.Time) (int64, error) {
	return t.execAffected(ctx, "failed to close operator entries", `
		UPDATE putaway_ledger SET process_end = $4, updated_at = $4
		WHERE reference = $1 AND waybill = $2 AND user_id = $3 AND status = 'active' AND process_end IS NULL`,
		reference, waybill, userID, at)
}

func (t *sqlTx) SetOperator(ctx context.Context, reference, waybill, operatorID string, at time.Time) (int64, error) {
	return t.execAffected(ctx, "failed to set operator", `
		UPDATE putaway_aggregates SET operator_id = $3, updated_at = $4
		WHERE reference = $1 AND waybill = $2 AND status <> 'voided'`,
		reference, waybill, operatorID, at)
}

func (t *sqlTx) execAffected(ctx context.Context, msg, query string, args ...any) (int64, error) {
	res, err := t.q.ExecContext(ctx, t.d.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", msg, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// queries statements shared by the pool and a transaction
type queries struct {
	q querier
	d Dialect
}

const aggregateColumns = `id, reference, waybill, part_number, description, storage_position, class_code,
	process_lines, input_type, operator_id,
	declared_qty, revised_qty, standard_qty, lps_qty, undeclared_qty, breakdown_qty, volume,
	user_ids, process_start, process_end, status, created_at, updated_at`

const entryColumns = `id, aggregate_id, submission_id, reference, waybill, part_number,
	label_type, quantity, breakdown_qty, volume, user_id, operator_id,
	status, process_end, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (q queries) selectAggregateByKey(ctx context.Context, key domain.AggregateKey, lock bool) (*domain.Aggregate, error) {
	query := `SELECT ` + aggregateColumns + ` FROM putaway_aggregates
		WHERE reference = $1 AND waybill = $2 AND part_number = $3 AND status <> 'voided'`
	if lock {
		query = q.d.forUpdate(query)
	}
	agg, err := scanAggregate(q.q.QueryRowContext(ctx, q.d.Rebind(query), key.Reference, key.Waybill, key.PartNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get aggregate: %w", err)
	}
	return agg, nil
}

func (q queries) selectAggregateByID(ctx context.Context, id int64, lock bool) (*domain.Aggregate, error) {
	query := `SELECT ` + aggregateColumns + ` FROM putaway_aggregates WHERE id = $1`
	if lock {
		query = q.d.forUpdate(query)
	}
	agg, err := scanAggregate(q.q.QueryRowContext(ctx, q.d.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get aggregate: %w", err)
	}
	return agg, nil
}

func (q queries) ListAggregates(ctx context.Context, reference, waybill string) ([]domain.Aggregate, error) {
	rows, err := q.q.QueryContext(ctx, q.d.Rebind(`SELECT `+aggregateColumns+` FROM putaway_aggregates
		WHERE reference = $1 AND waybill = $2 AND status <> 'voided'
		ORDER BY part_number`), reference, waybill)
	if err != nil {
		return nil, fmt.Errorf("failed to list aggregates: %w", err)
	}
	defer rows.Close()

	var out []domain.Aggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		out = append(out, *agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate aggregates: %w", err)
	}
	return out, nil
}

func (q queries) GetEntry(ctx context.Context, id int64) (*domain.LedgerEntry, error) {
	e, err := scanEntry(q.q.QueryRowContext(ctx, q.d.Rebind(`SELECT `+entryColumns+` FROM putaway_ledger WHERE id = $1`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("GetEntry", fmt.Sprintf("ledger entry %d not found", id))
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return e, nil
}

func (q queries) OpenOperators(ctx context.Context, reference, waybill string) ([]string, error) {
	rows, err := q.q.QueryContext(ctx, q.d.Rebind(`
		SELECT DISTINCT user_id FROM putaway_ledger
		WHERE reference = $1 AND waybill = $2 AND status = 'active' AND process_end IS NULL AND user_id <> ''
		ORDER BY user_id`), reference, waybill)
	if err != nil {
		return nil, fmt.Errorf("failed to list open operators: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan operator: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operators: %w", err)
	}
	return out, nil
}

func scanAggregate(s rowScanner) (*domain.Aggregate, error) {
	var (
		agg        domain.Aggregate
		users      string
		status     string
		start, end sql.NullTime
	)
	err := s.Scan(
		&agg.ID, &agg.Key.Reference, &agg.Key.Waybill, &agg.Key.PartNumber,
		&agg.Description, &agg.Position, &agg.ClassCode,
		&agg.ProcessLines, &agg.InputType, &agg.OperatorID,
		&agg.DeclaredQty, &agg.RevisedQty, &agg.StandardQty, &agg.LPSQty, &agg.UndeclaredQty, &agg.BreakdownQty, &agg.Volume,
		&users, &start, &end, &status, &agg.CreatedAt, &agg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	agg.Users = domain.ParseLegacyUsers(users)
	agg.ProcessStart = timePtr(start)
	agg.ProcessEnd = timePtr(end)
	agg.Status = domain.AggregateStatus(status)
	return &agg, nil
}

func scanEntry(s rowScanner) (*domain.LedgerEntry, error) {
	var (
		e      domain.LedgerEntry
		label  string
		status string
		end    sql.NullTime
	)
	err := s.Scan(
		&e.ID, &e.AggregateID, &e.SubmissionID, &e.Key.Reference, &e.Key.Waybill, &e.Key.PartNumber,
		&label, &e.Quantity, &e.BreakdownQty, &e.Volume, &e.UserID, &e.OperatorID,
		&status, &end, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Label = domain.LabelType(label)
	e.Status = domain.EntryStatus(status)
	e.ProcessEnd = timePtr(end)
	return &e, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

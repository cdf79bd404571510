package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const eventColumns = `id, owner_id, start_time, end_time, description, available, locked, is_public, participants, version, created_at, updated_at`

type PgRepository struct {
	pool DBPool
}

func NewPgRepository(pool DBPool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event

	err := row.Scan(
		&e.ID,
		&e.OwnerID,
		&e.StartTime,
		&e.EndTime,
		&e.Description,
		&e.Available,
		&e.Locked,
		&e.IsPublic,
		&e.Participants,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()

	var result []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id int64) (*Event, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1
	`, id)
	return scanEvent(row)
}

// Create inserts a new event after checking the owner's calendar for overlaps.
// The per-owner advisory lock serializes concurrent creates for one owner so
// the check and the insert cannot interleave.
func (r *PgRepository) Create(ctx context.Context, e Event) (*Event, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create event: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, e.OwnerID); err != nil {
		return nil, fmt.Errorf("lock owner calendar: %w", err)
	}

	var overlaps bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM events
			WHERE owner_id = $1
			  AND start_time < $2
			  AND end_time > $3
		)
	`, e.OwnerID, e.EndTime, e.StartTime).Scan(&overlaps)
	if err != nil {
		return nil, fmt.Errorf("check overlap: %w", err)
	}
	if overlaps {
		return nil, ErrOverlap
	}

	created, err := scanEvent(tx.QueryRow(ctx, `
		INSERT INTO events (owner_id, start_time, end_time, description, available, locked, is_public, participants, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, false, $5, 0, 0, now(), now())
		RETURNING `+eventColumns,
		e.OwnerID, e.StartTime, e.EndTime, e.Description, e.IsPublic))
	if err != nil {
		return nil, mapWriteError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create event: %w", err)
	}

	return created, nil
}

func (r *PgRepository) ListByOwner(ctx context.Context, ownerID int64, publicOnly bool) ([]Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE owner_id = $1`
	if publicOnly {
		query += ` AND is_public`
	}
	query += ` ORDER BY start_time ASC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r *PgRepository) ListOpen(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE is_public
		  AND available
		  AND NOT locked
		  AND start_time > now()
		ORDER BY start_time ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// Apply runs t against the current row under SELECT ... FOR UPDATE and writes
// the result back guarded by the version it read. A transition error aborts
// the transaction without touching the row.
func (r *PgRepository) Apply(ctx context.Context, id int64, t Transition) (*Event, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := scanEvent(tx.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, err
	}

	if err := t(e); err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		UPDATE events
		SET available = $2,
		    locked = $3,
		    participants = $4,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $5
		RETURNING version, updated_at
	`, e.ID, e.Available, e.Locked, e.Participants, e.Version).Scan(&e.Version, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("write transition: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}

	return e, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation && pgErr.ConstraintName == "events_window_check" {
		return ErrInvalidWindow
	}
	return fmt.Errorf("insert event: %w", err)
}

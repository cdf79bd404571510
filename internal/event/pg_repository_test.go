package event

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventColumnNames = []string{
	"id", "owner_id", "start_time", "end_time", "description", "available",
	"locked", "is_public", "participants", "version", "created_at", "updated_at",
}

func eventRows(events ...Event) *pgxmock.Rows {
	rows := pgxmock.NewRows(eventColumnNames)
	for _, e := range events {
		rows.AddRow(e.ID, e.OwnerID, e.StartTime, e.EndTime, e.Description, e.Available,
			e.Locked, e.IsPublic, e.Participants, e.Version, e.CreatedAt, e.UpdatedAt)
	}
	return rows
}

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgRepository(mock), mock
}

func TestPgRepository_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM events WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(eventRows(Event{ID: 5, OwnerID: 2, StartTime: now, EndTime: now.Add(time.Hour), Available: true, IsPublic: true, CreatedAt: now, UpdatedAt: now}))

	e, err := repo.GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), e.ID)
	assert.Equal(t, StateFree, e.State())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .* FROM events WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(eventColumnNames))

	_, err := repo.GetByID(context.Background(), 5)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_ApplyLock(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM events WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(eventRows(Event{ID: 1, OwnerID: 2, Available: true, Version: 3}))
	mock.ExpectQuery(`UPDATE events SET available = \$2, locked = \$3, participants = \$4, version = version \+ 1`).
		WithArgs(int64(1), true, true, 0, int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"version", "updated_at"}).AddRow(int64(4), now))
	mock.ExpectCommit()

	e, err := repo.Apply(context.Background(), 1, Lock)
	require.NoError(t, err)
	assert.Equal(t, StateLocked, e.State())
	assert.Equal(t, int64(4), e.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_ApplyRejectedTransitionSkipsWrite(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM events WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(eventRows(Event{ID: 1, Available: true, Locked: true, Version: 3}))
	mock.ExpectRollback()

	_, err := repo.Apply(context.Background(), 1, Lock)
	require.ErrorIs(t, err, ErrAlreadyLocked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_ApplyVersionConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM events WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(eventRows(Event{ID: 1, Available: true, Locked: true, Participants: 0, Version: 8}))
	mock.ExpectQuery(`UPDATE events`).
		WithArgs(int64(1), false, false, 1, int64(8)).
		WillReturnRows(pgxmock.NewRows([]string{"version", "updated_at"}))
	mock.ExpectRollback()

	_, err := repo.Apply(context.Background(), 1, Book)
	require.ErrorIs(t, err, ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_ApplyMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows(eventColumnNames))
	mock.ExpectRollback()

	_, err := repo.Apply(context.Background(), 9, Unlock)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(3), end, start).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO events`).
		WithArgs(int64(3), start, end, "office hours", true).
		WillReturnRows(eventRows(Event{ID: 11, OwnerID: 3, StartTime: start, EndTime: end, Description: "office hours", Available: true, IsPublic: true}))
	mock.ExpectCommit()

	e, err := repo.Create(context.Background(), Event{OwnerID: 3, StartTime: start, EndTime: end, Description: "office hours", IsPublic: true})
	require.NoError(t, err)
	assert.Equal(t, int64(11), e.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_CreateOverlap(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(3), end, start).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), Event{OwnerID: 3, StartTime: start, EndTime: end})
	require.ErrorIs(t, err, ErrOverlap)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_CreateWindowCheck(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(3), start, start).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO events`).
		WithArgs(int64(3), start, start, "", false).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "events_window_check"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), Event{OwnerID: 3, StartTime: start, EndTime: start})
	require.ErrorIs(t, err, ErrInvalidWindow)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_ListByOwnerPublicOnly(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`WHERE owner_id = \$1 AND is_public ORDER BY start_time ASC`).
		WithArgs(int64(3)).
		WillReturnRows(eventRows(Event{ID: 1, OwnerID: 3, IsPublic: true, Available: true}))

	events, err := repo.ListByOwner(context.Background(), 3, true)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_ListOpen(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`AND available AND NOT locked`).
		WithArgs(50).
		WillReturnRows(eventRows(
			Event{ID: 1, IsPublic: true, Available: true},
			Event{ID: 2, IsPublic: true, Available: true},
		))

	events, err := repo.ListOpen(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

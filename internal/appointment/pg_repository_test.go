package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentColumnNames = []string{"id", "event_id", "booked_by", "event_owner_id", "status", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgRepository(mock), mock
}

func TestPgRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(int64(10), int64(2), int64(1), "PENDING").
		WillReturnRows(pgxmock.NewRows(appointmentColumnNames).
			AddRow(int64(5), int64(10), int64(2), int64(1), "PENDING", now, now))

	a, err := repo.Create(context.Background(), Appointment{EventID: 10, BookedBy: 2, EventOwnerID: 1, Status: StatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(5), a.ID)
	assert.Equal(t, StatusPending, a.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_GetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM appointments WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(appointmentColumnNames))

	_, err := repo.GetByID(context.Background(), 5)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_UpdateStatusIsConditional(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`UPDATE appointments SET status = \$2, updated_at = now\(\) WHERE id = \$1 AND status = \$3`).
		WithArgs(int64(5), "BOOKED", "PENDING").
		WillReturnRows(pgxmock.NewRows(appointmentColumnNames).
			AddRow(int64(5), int64(10), int64(2), int64(1), "BOOKED", now, now))

	a, err := repo.UpdateStatus(context.Background(), 5, StatusPending, StatusBooked)
	require.NoError(t, err)
	assert.Equal(t, StatusBooked, a.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_UpdateStatusLostRace(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs(int64(5), "CANCELLED", "PENDING").
		WillReturnRows(pgxmock.NewRows(appointmentColumnNames))

	_, err := repo.UpdateStatus(context.Background(), 5, StatusPending, StatusCancelled)
	require.ErrorIs(t, err, ErrStatusChanged)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_ListByOwnerWithStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE event_owner_id = \$1 AND status = \$2 ORDER BY created_at DESC`).
		WithArgs(int64(1), "PENDING").
		WillReturnRows(pgxmock.NewRows(appointmentColumnNames).
			AddRow(int64(7), int64(20), int64(2), int64(1), "PENDING", now, now).
			AddRow(int64(6), int64(21), int64(3), int64(1), "PENDING", now, now))

	list, err := repo.ListByOwner(context.Background(), 1, StatusPending)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(7), list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_ListByBooker(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`WHERE booked_by = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows(appointmentColumnNames))

	list, err := repo.ListByBooker(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_InsertEvent(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := int64(5)
	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"from":"PENDING"}`)

	mock.ExpectExec(`INSERT INTO event_logs`).
		WithArgs(EventAppointmentBooked, &id, payload, &at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.InsertEvent(context.Background(), EventLog{
		EventType:     EventAppointmentBooked,
		AppointmentID: &id,
		Payload:       payload,
		CreatedAt:     at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

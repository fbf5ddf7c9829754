package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alert-service/internal/models"
)

func newMockDB(t *testing.T) (pgxmock.PgxPoolIface, *DB) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, &DB{Pool: mock}
}

func TestCreateAlertWritesResolutionDefaults(t *testing.T) {
	mock, d := newMockDB(t)

	now := time.Now()
	alert := models.Alert{
		ID:          uuid.New(),
		RequesterID: "user-1",
		Location:    models.Location{Latitude: 10.7769, Longitude: 106.7009},
		Status:      models.StatusPending,
		Priority:    models.PriorityHigh,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The insert must cover resolved_by and resolution_notes so that a
	// later read of the unresolved alert never scans NULL.
	mock.ExpectExec("resolved_by, resolution_notes").
		WithArgs(alert.ID, "user-1", "", 10.7769, 106.7009, "",
			models.StatusPending, models.PriorityHigh, "",
			pgxmock.AnyArg(), pgxmock.AnyArg(), now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, d.CreateAlert(context.Background(), alert))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAlertStatusGuardRejectsStaleTransition(t *testing.T) {
	mock, d := newMockDB(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE alerts").
		WithArgs(models.StatusResolved, pgxmock.AnyArg(), "monitor-7", "", id, models.StatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := d.UpdateAlertStatus(context.Background(), id, models.StatusPending, models.StatusResolved, nil, "monitor-7", "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

// fakeRow drives scanAlert directly; nil values stand in for SQL NULL.
type fakeRow struct {
	vals []any
}

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		v := r.vals[i]
		switch d := d.(type) {
		case *uuid.UUID:
			*d = v.(uuid.UUID)
		case *string:
			if v != nil {
				*d = v.(string)
			}
		case *float64:
			*d = v.(float64)
		case *models.AlertStatus:
			*d = v.(models.AlertStatus)
		case *models.AlertPriority:
			*d = v.(models.AlertPriority)
		case *[]byte:
			if v != nil {
				*d = v.([]byte)
			}
		case *time.Time:
			*d = v.(time.Time)
		case **time.Time:
			if v != nil {
				tt := v.(time.Time)
				*d = &tt
			}
		case *pgtype.Text:
			if v == nil {
				*d = pgtype.Text{}
			} else {
				*d = pgtype.Text{String: v.(string), Valid: true}
			}
		default:
			return fmt.Errorf("unexpected scan destination %T", d)
		}
	}
	return nil
}

func TestScanAlertToleratesNullResolutionFields(t *testing.T) {
	id := uuid.New()
	now := time.Now()

	alert, err := scanAlert(fakeRow{vals: []any{
		id, "user-1", "An", 10.7769, 106.7009, "",
		models.StatusPending, models.PriorityMedium, "",
		[]byte(`[]`), []byte(`[]`), now, now,
		nil, nil, nil, // resolved_at, resolved_by, resolution_notes
	}})
	require.NoError(t, err)

	assert.Equal(t, id, alert.ID)
	assert.Nil(t, alert.ResolvedAt)
	assert.Empty(t, alert.ResolvedBy)
	assert.Empty(t, alert.ResolutionNotes)
}

func TestScanAlertResolvedFields(t *testing.T) {
	id := uuid.New()
	now := time.Now()

	alert, err := scanAlert(fakeRow{vals: []any{
		id, "user-1", "An", 10.7769, 106.7009, "",
		models.StatusResolved, models.PriorityMedium, "",
		[]byte(`[]`), []byte(`[]`), now, now,
		now, "monitor-7", "requester confirmed safe",
	}})
	require.NoError(t, err)

	require.NotNil(t, alert.ResolvedAt)
	assert.Equal(t, "monitor-7", alert.ResolvedBy)
	assert.Equal(t, "requester confirmed safe", alert.ResolutionNotes)
}

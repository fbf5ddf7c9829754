package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"alert-service/internal/models"
)

const alertColumns = `
	id, requester_id, requester_name, latitude, longitude, address,
	status, priority, description, contacts, delivery_report,
	created_at, updated_at, resolved_at, resolved_by, resolution_notes`

// CreateAlert inserts a new alert record with its contact snapshot.
func (d *DB) CreateAlert(ctx context.Context, alert models.Alert) error {
	contacts, err := json.Marshal(alert.Contacts)
	if err != nil {
		return fmt.Errorf("failed to marshal contact snapshot: %w", err)
	}
	report, err := json.Marshal(alert.DeliveryReport)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery report: %w", err)
	}

	// Every column scanAlert reads is written here; only resolved_at may
	// be NULL, and it is scanned through a pointer.
	query := `
	INSERT INTO alerts (
		id, requester_id, requester_name, latitude, longitude, address,
		status, priority, description, contacts, delivery_report,
		created_at, updated_at, resolved_by, resolution_notes
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, '', ''
	)`

	_, err = d.Pool.Exec(ctx, query,
		alert.ID,
		alert.RequesterID,
		alert.RequesterName,
		alert.Location.Latitude,
		alert.Location.Longitude,
		alert.Location.Address,
		alert.Status,
		alert.Priority,
		alert.Description,
		contacts,
		report,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert fetches one alert by id.
func (d *DB) GetAlert(ctx context.Context, id uuid.UUID) (models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	alert, err := scanAlert(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Alert{}, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
		}
		return models.Alert{}, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return alert, nil
}

// UpdateAlertStatus applies a status transition guarded by the previous
// status. Zero rows affected means the alert moved underneath us (or does
// not exist); the caller distinguishes via a fresh read.
func (d *DB) UpdateAlertStatus(ctx context.Context, id uuid.UUID, prev, next models.AlertStatus, resolvedAt *time.Time, resolvedBy, notes string) error {
	query := `
	UPDATE alerts
	SET status = $1,
	    resolved_at = COALESCE($2, resolved_at),
	    resolved_by = CASE WHEN $3 = '' THEN resolved_by ELSE $3 END,
	    resolution_notes = CASE WHEN $4 = '' THEN resolution_notes ELSE $4 END,
	    updated_at = NOW()
	WHERE id = $5 AND status = $6`

	result, err := d.Pool.Exec(ctx, query, next, resolvedAt, resolvedBy, notes, id, prev)
	if err != nil {
		return fmt.Errorf("failed to update alert status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("alert %s not in status %s: %w", id, prev, models.ErrInvalidTransition)
	}
	return nil
}

// UpdateDeliveryReport replaces the stored delivery report after fan-out
// settles.
func (d *DB) UpdateDeliveryReport(ctx context.Context, id uuid.UUID, report models.DeliveryReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery report: %w", err)
	}

	query := `UPDATE alerts SET delivery_report = $1, updated_at = NOW() WHERE id = $2`
	result, err := d.Pool.Exec(ctx, query, data, id)
	if err != nil {
		return fmt.Errorf("failed to update delivery report: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// FindNearby returns active (pending or acknowledged) alerts inside the
// given bounding box.
func (d *DB) FindNearby(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]models.Alert, error) {
	query := `
	SELECT ` + alertColumns + `
	FROM alerts
	WHERE status IN ('pending', 'acknowledged')
	  AND latitude BETWEEN $1 AND $2
	  AND longitude BETWEEN $3 AND $4
	ORDER BY created_at DESC`

	rows, err := d.Pool.Query(ctx, query, minLat, maxLat, minLng, maxLng)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// AlertsByRequester fetches a requester's alerts with pagination.
func (d *DB) AlertsByRequester(ctx context.Context, requesterID string, limit, offset int) ([]models.Alert, int, error) {
	var total int
	if err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts WHERE requester_id = $1`, requesterID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := `
	SELECT ` + alertColumns + `
	FROM alerts
	WHERE requester_id = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3`

	rows, err := d.Pool.Query(ctx, query, requesterID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get alerts for requester %s: %w", requesterID, err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, total, nil
}

func scanAlert(row pgx.Row) (models.Alert, error) {
	var alert models.Alert
	var contacts, report []byte
	// resolved_by and resolution_notes go through pgtype.Text so rows
	// written before the '' defaults existed still scan.
	var resolvedBy, resolutionNotes pgtype.Text
	err := row.Scan(
		&alert.ID,
		&alert.RequesterID,
		&alert.RequesterName,
		&alert.Location.Latitude,
		&alert.Location.Longitude,
		&alert.Location.Address,
		&alert.Status,
		&alert.Priority,
		&alert.Description,
		&contacts,
		&report,
		&alert.CreatedAt,
		&alert.UpdatedAt,
		&alert.ResolvedAt,
		&resolvedBy,
		&resolutionNotes,
	)
	if err != nil {
		return models.Alert{}, err
	}
	alert.ResolvedBy = resolvedBy.String
	alert.ResolutionNotes = resolutionNotes.String
	if len(contacts) > 0 {
		if err := json.Unmarshal(contacts, &alert.Contacts); err != nil {
			return models.Alert{}, fmt.Errorf("failed to unmarshal contact snapshot: %w", err)
		}
	}
	if len(report) > 0 {
		if err := json.Unmarshal(report, &alert.DeliveryReport); err != nil {
			return models.Alert{}, fmt.Errorf("failed to unmarshal delivery report: %w", err)
		}
	}
	return alert, nil
}

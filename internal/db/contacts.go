package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"alert-service/internal/models"
)

const contactColumns = `
	id, owner_id, name, phone, email, relationship, is_primary, is_active,
	created_at, updated_at`

// CreateContact inserts a new emergency contact. When the contact is
// primary, the previous primary for the owner is demoted in the same
// transaction so at most one active primary exists per owner.
func (d *DB) CreateContact(ctx context.Context, contact models.EmergencyContact) (models.EmergencyContact, error) {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return models.EmergencyContact{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if contact.IsPrimary {
		if err := demotePrimary(ctx, tx, contact.OwnerID); err != nil {
			return models.EmergencyContact{}, err
		}
	}

	query := `
	INSERT INTO emergency_contacts (
		id, owner_id, name, phone, email, relationship, is_primary, is_active,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, true, NOW(), NOW())
	RETURNING created_at, updated_at`

	err = tx.QueryRow(ctx, query,
		contact.ID,
		contact.OwnerID,
		contact.Name,
		contact.Phone,
		contact.Email,
		contact.Relationship,
		contact.IsPrimary,
	).Scan(&contact.CreatedAt, &contact.UpdatedAt)
	if err != nil {
		return models.EmergencyContact{}, fmt.Errorf("failed to create contact: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.EmergencyContact{}, fmt.Errorf("failed to commit contact: %w", err)
	}
	contact.IsActive = true
	return contact, nil
}

// GetContact fetches one contact by id, active or not.
func (d *DB) GetContact(ctx context.Context, id uuid.UUID) (models.EmergencyContact, error) {
	query := `SELECT ` + contactColumns + ` FROM emergency_contacts WHERE id = $1`
	contact, err := scanContact(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.EmergencyContact{}, fmt.Errorf("contact %s: %w", id, models.ErrNotFound)
		}
		return models.EmergencyContact{}, fmt.Errorf("failed to get contact %s: %w", id, err)
	}
	return contact, nil
}

// ActiveContactsByOwner returns the owner's active contacts, primary first.
func (d *DB) ActiveContactsByOwner(ctx context.Context, ownerID string) ([]models.EmergencyContact, error) {
	query := `
	SELECT ` + contactColumns + `
	FROM emergency_contacts
	WHERE owner_id = $1 AND is_active = true
	ORDER BY is_primary DESC, created_at ASC`

	rows, err := d.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get contacts for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	var contacts []models.EmergencyContact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// UpdateContact applies field updates. Promoting a contact to primary
// demotes the current primary atomically.
func (d *DB) UpdateContact(ctx context.Context, id uuid.UUID, upd models.ContactUpdate) (models.EmergencyContact, error) {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return models.EmergencyContact{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	contact, err := scanContact(tx.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM emergency_contacts WHERE id = $1 AND is_active = true FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.EmergencyContact{}, fmt.Errorf("contact %s: %w", id, models.ErrNotFound)
		}
		return models.EmergencyContact{}, fmt.Errorf("failed to load contact %s: %w", id, err)
	}

	if upd.Name != "" {
		contact.Name = upd.Name
	}
	if upd.Phone != "" {
		contact.Phone = upd.Phone
	}
	if upd.Email != nil {
		contact.Email = *upd.Email
	}
	if upd.Relationship != nil {
		contact.Relationship = *upd.Relationship
	}
	if upd.IsPrimary != nil && *upd.IsPrimary != contact.IsPrimary {
		if *upd.IsPrimary {
			if err := demotePrimary(ctx, tx, contact.OwnerID); err != nil {
				return models.EmergencyContact{}, err
			}
		}
		contact.IsPrimary = *upd.IsPrimary
	}

	query := `
	UPDATE emergency_contacts
	SET name = $1, phone = $2, email = $3, relationship = $4,
	    is_primary = $5, updated_at = NOW()
	WHERE id = $6`

	_, err = tx.Exec(ctx, query,
		contact.Name, contact.Phone, contact.Email, contact.Relationship,
		contact.IsPrimary, id)
	if err != nil {
		return models.EmergencyContact{}, fmt.Errorf("failed to update contact: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.EmergencyContact{}, fmt.Errorf("failed to commit contact update: %w", err)
	}
	return contact, nil
}

// DeleteContact soft-deletes a contact. Deleting the primary promotes the
// oldest remaining active contact of the owner.
func (d *DB) DeleteContact(ctx context.Context, id uuid.UUID) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var ownerID string
	var wasPrimary bool
	err = tx.QueryRow(ctx, `
	SELECT owner_id, is_primary FROM emergency_contacts
	WHERE id = $1 AND is_active = true
	FOR UPDATE`, id).Scan(&ownerID, &wasPrimary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("contact %s: %w", id, models.ErrNotFound)
		}
		return fmt.Errorf("failed to load contact %s: %w", id, err)
	}

	_, err = tx.Exec(ctx, `
	UPDATE emergency_contacts
	SET is_active = false, is_primary = false, updated_at = NOW()
	WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact %s: %w", id, err)
	}

	if wasPrimary {
		_, err = tx.Exec(ctx, `
		UPDATE emergency_contacts
		SET is_primary = true, updated_at = NOW()
		WHERE id = (
			SELECT id FROM emergency_contacts
			WHERE owner_id = $1 AND is_active = true
			ORDER BY created_at ASC
			LIMIT 1
		)`, ownerID)
		if err != nil {
			return fmt.Errorf("failed to promote replacement primary: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit contact delete: %w", err)
	}
	return nil
}

func demotePrimary(ctx context.Context, tx pgx.Tx, ownerID string) error {
	_, err := tx.Exec(ctx, `
	UPDATE emergency_contacts
	SET is_primary = false, updated_at = NOW()
	WHERE owner_id = $1 AND is_active = true AND is_primary = true`, ownerID)
	if err != nil {
		return fmt.Errorf("failed to demote previous primary: %w", err)
	}
	return nil
}

func scanContact(row pgx.Row) (models.EmergencyContact, error) {
	var c models.EmergencyContact
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Name,
		&c.Phone,
		&c.Email,
		&c.Relationship,
		&c.IsPrimary,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return models.EmergencyContact{}, err
	}
	return c, nil
}

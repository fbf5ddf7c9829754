package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"alert-service/internal/models"
)

// ReplaceChallenge invalidates any unconsumed challenge for the same
// (target, purpose) and inserts the new one in a single transaction, so
// only one challenge is ever live per pair. Superseded rows are kept
// (marked used) so the trailing-window issuance count stays accurate.
func (d *DB) ReplaceChallenge(ctx context.Context, ch models.Challenge) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
	UPDATE challenges SET is_used = true
	WHERE target = $1 AND purpose = $2 AND is_used = false`, ch.Target, ch.Purpose)
	if err != nil {
		return fmt.Errorf("failed to invalidate prior challenge: %w", err)
	}

	_, err = tx.Exec(ctx, `
	INSERT INTO challenges (
		id, target, purpose, code_hash, expires_at, attempts, is_used, created_at
	) VALUES ($1, $2, $3, $4, $5, 0, false, $6)`,
		ch.ID, ch.Target, ch.Purpose, ch.CodeHash, ch.ExpiresAt, ch.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert challenge: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit challenge: %w", err)
	}
	return nil
}

// LatestChallenge returns the most recent challenge for (target, purpose),
// used or not. Expiry and used-state checks belong to the OTP service so
// it can report the exact failure.
func (d *DB) LatestChallenge(ctx context.Context, target string, purpose models.ChallengePurpose) (models.Challenge, error) {
	var ch models.Challenge
	err := d.Pool.QueryRow(ctx, `
	SELECT id, target, purpose, code_hash, expires_at, attempts, is_used, created_at
	FROM challenges
	WHERE target = $1 AND purpose = $2
	ORDER BY created_at DESC
	LIMIT 1`, target, purpose).Scan(
		&ch.ID, &ch.Target, &ch.Purpose, &ch.CodeHash,
		&ch.ExpiresAt, &ch.Attempts, &ch.IsUsed, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Challenge{}, fmt.Errorf("challenge for %s/%s: %w", target, purpose, models.ErrNotFound)
		}
		return models.Challenge{}, fmt.Errorf("failed to get challenge: %w", err)
	}
	return ch, nil
}

// IncrementAttempts bumps the attempt counter of a challenge.
func (d *DB) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	result, err := d.Pool.Exec(ctx,
		`UPDATE challenges SET attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment attempts: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("challenge %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// MarkUsed consumes a challenge. A challenge can be consumed at most once;
// zero rows affected means it was already used.
func (d *DB) MarkUsed(ctx context.Context, id uuid.UUID) error {
	result, err := d.Pool.Exec(ctx,
		`UPDATE challenges SET is_used = true WHERE id = $1 AND is_used = false`, id)
	if err != nil {
		return fmt.Errorf("failed to mark challenge used: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("challenge %s: %w", id, models.ErrAlreadyUsed)
	}
	return nil
}

// CountIssuedSince counts challenges issued for a target in the trailing
// window, across purposes. Feeds the issuance rate limit.
func (d *DB) CountIssuedSince(ctx context.Context, target string, since time.Time) (int, error) {
	var n int
	err := d.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM challenges WHERE target = $1 AND created_at >= $2`,
		target, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count issued challenges: %w", err)
	}
	return n, nil
}

// PurgeExpiredChallenges removes challenges past their TTL. The TTL is
// enforced at verification time regardless; this keeps the table small.
func (d *DB) PurgeExpiredChallenges(ctx context.Context) (int64, error) {
	result, err := d.Pool.Exec(ctx,
		`DELETE FROM challenges WHERE expires_at < NOW() - INTERVAL '1 day'`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired challenges: %w", err)
	}
	return result.RowsAffected(), nil
}

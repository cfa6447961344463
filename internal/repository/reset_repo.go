package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-task-manager/internal/model"
)

const resetColumns = `id, email, code, expiry, used, created_at,
	(SELECT count(*) FROM password_reset_failures f WHERE f.reset_id = password_resets.id)`

// ConsumeFunc validates the locked reset row against its user and returns the
// new password hash to store. Returning an error rolls the transaction back.
type ConsumeFunc func(reset model.PasswordReset, user model.User) (string, error)

type ResetRepository struct {
	pool *pgxpool.Pool
}

func NewResetRepository(pool *pgxpool.Pool) *ResetRepository {
	return &ResetRepository{pool: pool}
}

func (r *ResetRepository) Create(ctx context.Context, reset model.PasswordReset) (model.PasswordReset, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO password_resets (email, code, expiry, used, created_at)
		 VALUES ($1, $2, $3, false, $4)
		 RETURNING id`,
		reset.Email, reset.Code, reset.Expiry, reset.CreatedAt).Scan(&reset.ID)
	if err != nil {
		return model.PasswordReset{}, fmt.Errorf("create password reset: %w", err)
	}
	return reset, nil
}

// Latest returns the live reset row for email: the most recent one.
func (r *ResetRepository) Latest(ctx context.Context, email string) (model.PasswordReset, error) {
	reset, err := scanReset(r.pool.QueryRow(ctx,
		`SELECT `+resetColumns+` FROM password_resets
		 WHERE email = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`, email))
	if err != nil {
		return model.PasswordReset{}, fmt.Errorf("latest password reset: %w", err)
	}
	return reset, nil
}

// RecordFailure logs one wrong code against a reset row. The row itself is
// left untouched.
func (r *ResetRepository) RecordFailure(ctx context.Context, resetID int64) error {
	if _, err := r.pool.Exec(ctx, `INSERT INTO password_reset_failures (reset_id) VALUES ($1)`, resetID); err != nil {
		return fmt.Errorf("record reset failure: %w", err)
	}
	return nil
}

// Consume locks the live reset row and its user, lets apply decide, then
// stores the new hash and marks the row used in the same transaction.
func (r *ResetRepository) Consume(ctx context.Context, email string, apply ConsumeFunc) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		reset, err := scanReset(tx.QueryRow(ctx,
			`SELECT `+resetColumns+` FROM password_resets
			 WHERE email = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT 1
			 FOR UPDATE`, email))
		if err != nil {
			return fmt.Errorf("lock password reset: %w", err)
		}

		user, err := scanUser(tx.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1) FOR UPDATE`, email))
		if err != nil {
			return fmt.Errorf("lock reset user: %w", err)
		}

		hash, err := apply(reset, user)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, user.ID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}

		tag, err := tx.Exec(ctx, `UPDATE password_resets SET used = true WHERE id = $1 AND used = false`, reset.ID)
		if err != nil {
			return fmt.Errorf("mark reset used: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return model.ErrResetCodeUsed
		}
		return nil
	})
}

func scanReset(row pgx.Row) (model.PasswordReset, error) {
	var reset model.PasswordReset
	err := row.Scan(&reset.ID, &reset.Email, &reset.Code, &reset.Expiry, &reset.Used, &reset.CreatedAt, &reset.Failures)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PasswordReset{}, model.ErrResetNotFound
	}
	return reset, err
}

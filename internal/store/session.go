package store

import (
	"context"
	"database/sql"
)

// SessionRepository is the registry of issued tokens. A token is live
// only while its row exists; the row is what makes a self-verifying
// token revocable. Each operation is a single statement, so concurrent
// logins and logouts on the same user cannot lose each other's writes.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Add records a newly issued token for the user.
func (r *SessionRepository) Add(ctx context.Context, userID int, token string) error {
	const query = `
		INSERT INTO sessions (user_id, token)
		VALUES ($1, $2)`
	_, err := r.db.ExecContext(ctx, query, userID, token)
	return err
}

// Revoke removes the exact matching token. Revoking a token that is
// not registered is not an error.
func (r *SessionRepository) Revoke(ctx context.Context, userID int, token string) error {
	const query = `
		DELETE FROM sessions
		WHERE user_id = $1 AND token = $2`
	_, err := r.db.ExecContext(ctx, query, userID, token)
	return err
}

// RevokeAll removes every session the user holds.
func (r *SessionRepository) RevokeAll(ctx context.Context, userID int) error {
	const query = `DELETE FROM sessions WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

// Live reports whether the token is currently registered for the user.
func (r *SessionRepository) Live(ctx context.Context, userID int, token string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM sessions WHERE user_id = $1 AND token = $2
		)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, token).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

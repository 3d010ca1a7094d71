package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jurisdesk/jurisdesk/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	CreateSession(ctx context.Context, id, authUserID string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a credential by corporate email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Credential, error) {
	row := r.pool.QueryRow(ctx, `SELECT c.auth_user_id, c.email, c.senha_hash, u.ativo, c.created_at, c.updated_at
		FROM credenciais_acesso c
		JOIN usuarios u ON u.auth_user_id = c.auth_user_id
		WHERE c.email = $1`, email)
	var cred Credential
	if err := row.Scan(&cred.AuthUserID, &cred.Email, &cred.PasswordHash, &cred.Active, &cred.CreatedAt, &cred.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id, authUserID string, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO sessoes (id, auth_user_id, created_at, expires_at, ip, ua) VALUES ($1, $2, NOW(), $3, NULLIF($4, ''), NULLIF($5, ''))`,
		id, authUserID, expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessoes WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)

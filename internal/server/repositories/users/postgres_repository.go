package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/chatauth/internal/common"
	"github.com/dmitrijs2005/chatauth/internal/dbx"
	"github.com/dmitrijs2005/chatauth/internal/server/models"
)

const userColumns = `id, email, username, display_name, password_hash, is_verified,
		        verification_token, reset_token, reset_token_expires_at,
		        status, last_login_at, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, username, display_name, password_hash, verification_token)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, is_verified, status, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.Username, user.DisplayName, user.PasswordHash, user.VerificationTokenHash,
	).Scan(&user.ID, &user.IsVerified, &user.Status, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s", common.ErrConflict, pgErr.ConstraintName)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *PostgresRepository) FindByVerificationToken(ctx context.Context, tokenHash string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE verification_token = $1`, tokenHash)
}

func (r *PostgresRepository) FindByResetToken(ctx context.Context, tokenHash string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE reset_token = $1 AND reset_token_expires_at > now()
		 FOR UPDATE`
	return r.findOne(ctx, query, tokenHash)
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, tokenHash string) (*models.User, error) {
	query := `UPDATE users
		 SET is_verified = true, verification_token = NULL, updated_at = now()
		 WHERE verification_token = $1
		 RETURNING ` + userColumns
	return r.findOne(ctx, query, tokenHash)
}

func (r *PostgresRepository) SetVerificationToken(ctx context.Context, userID, tokenHash string) (int64, error) {
	query :=
		`UPDATE users SET verification_token = $2, updated_at = now()
		 WHERE id = $1 AND is_verified = false`
	return r.exec(ctx, query, userID, tokenHash)
}

func (r *PostgresRepository) UpdatePasswordDigest(ctx context.Context, userID, digest string) (int64, error) {
	query :=
		`UPDATE users SET password_hash = $2, updated_at = now()
		 WHERE id = $1`
	return r.exec(ctx, query, userID, digest)
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (int64, error) {
	query :=
		`UPDATE users SET reset_token = $2, reset_token_expires_at = $3, updated_at = now()
		 WHERE id = $1`
	return r.exec(ctx, query, userID, tokenHash, expiresAt)
}

func (r *PostgresRepository) ClearResetToken(ctx context.Context, userID string) (int64, error) {
	query :=
		`UPDATE users SET reset_token = NULL, reset_token_expires_at = NULL, updated_at = now()
		 WHERE id = $1`
	return r.exec(ctx, query, userID)
}

func (r *PostgresRepository) TouchLastLogin(ctx context.Context, userID string) (int64, error) {
	query :=
		`UPDATE users SET last_login_at = now()
		 WHERE id = $1`
	return r.exec(ctx, query, userID)
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, userID string, status models.UserStatus) (int64, error) {
	query :=
		`UPDATE users SET status = $2, updated_at = now()
		 WHERE id = $1`
	return r.exec(ctx, query, userID, string(status))
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Email, &user.Username, &user.DisplayName, &user.PasswordHash, &user.IsVerified,
		&user.VerificationTokenHash, &user.ResetTokenHash, &user.ResetTokenExpiresAt,
		&user.Status, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	n, err := dbx.ExecAffected(ctx, r.db, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

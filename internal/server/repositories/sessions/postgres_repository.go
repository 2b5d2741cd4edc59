package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatauth/internal/common"
	"github.com/dmitrijs2005/chatauth/internal/dbx"
	"github.com/dmitrijs2005/chatauth/internal/server/models"
)

const sessionColumns = `id, user_id, refresh_token, device_info, ip_address, expires_at, created_at`

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query :=
		`INSERT INTO sessions (user_id, refresh_token, device_info, ip_address, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		s.UserID, s.RefreshTokenHash, s.DeviceInfo, s.IPAddress, s.ExpiresAt,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindActive(ctx context.Context, tokenHash string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		 WHERE refresh_token = $1 AND expires_at > now()`
	return r.scanOne(r.db.QueryRowContext(ctx, query, tokenHash))
}

func (r *PostgresRepository) ConsumeActive(ctx context.Context, tokenHash string) (*models.Session, error) {
	query := `DELETE FROM sessions
		 WHERE refresh_token = $1 AND expires_at > now()
		 RETURNING ` + sessionColumns
	return r.scanOne(r.db.QueryRowContext(ctx, query, tokenHash))
}

func (r *PostgresRepository) DeleteByToken(ctx context.Context, tokenHash string) (int64, error) {
	return r.exec(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, tokenHash)
}

func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	return r.exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
}

func (r *PostgresRepository) ListActiveForUser(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		 WHERE user_id = $1 AND expires_at > now()
		 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Session, 0)
	for rows.Next() {
		s, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanOne(row scanner) (*models.Session, error) {
	s := &models.Session{}
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.DeviceInfo, &s.IPAddress, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	n, err := dbx.ExecAffected(ctx, r.db, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

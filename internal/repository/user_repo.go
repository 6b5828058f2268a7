package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyspace/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateOTP(ctx context.Context, id, otpHash string, otpExpiresAt time.Time) error
	ClearOTP(ctx context.Context, id string) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, email, name, role, avatar_url, phone, verification_status,
		password_hash, otp_code_hash, otp_expires_at, created_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, email, name, role, avatar_url, phone, verification_status, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Role,
		user.AvatarURL,
		user.Phone,
		user.VerificationStatus,
		user.PasswordHash,
		user.CreatedAt,
	)
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PgUserRepository) getBy(ctx context.Context, query string, arg any) (domain.User, error) {
	var (
		u            domain.User
		avatarURL    *string
		phone        *string
		otpCodeHash  *string
		otpExpiresAt *time.Time
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Role,
		&avatarURL,
		&phone,
		&u.VerificationStatus,
		&u.PasswordHash,
		&otpCodeHash,
		&otpExpiresAt,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	if avatarURL != nil {
		u.AvatarURL = *avatarURL
	}
	if phone != nil {
		u.Phone = *phone
	}
	if otpCodeHash != nil {
		u.OtpCodeHash = *otpCodeHash
	}
	u.OtpExpiresAt = otpExpiresAt
	return u, err
}

func (r *PgUserRepository) List(ctx context.Context) ([]domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var (
			u            domain.User
			avatarURL    *string
			phone        *string
			otpCodeHash  *string
			otpExpiresAt *time.Time
		)
		if err := rows.Scan(
			&u.ID, &u.Email, &u.Name, &u.Role, &avatarURL, &phone,
			&u.VerificationStatus, &u.PasswordHash, &otpCodeHash, &otpExpiresAt, &u.CreatedAt,
		); err != nil {
			return nil, err
		}
		if avatarURL != nil {
			u.AvatarURL = *avatarURL
		}
		if phone != nil {
			u.Phone = *phone
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PgUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	ct, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) UpdateOTP(ctx context.Context, id, otpHash string, otpExpiresAt time.Time) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE users SET otp_code_hash = $2, otp_expires_at = $3 WHERE id = $1`,
		id, otpHash, otpExpiresAt,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) ClearOTP(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET otp_code_hash = NULL, otp_expires_at = NULL WHERE id = $1`, id)
	return err
}

package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyspace/internal/domain"
)

// WaitlistRepository define el contrato de persistencia para la lista de
// espera de cabinas y el estado de las cabinas consultadas por ella.
type WaitlistRepository interface {
	CreateEntry(ctx context.Context, entry domain.WaitlistEntry) error
	FindByUserAndCabin(ctx context.Context, userID, cabinID string) (domain.WaitlistEntry, error)
	ListForUser(ctx context.Context, userID string) ([]domain.WaitlistEntry, error)
	ListForCabin(ctx context.Context, cabinID string) ([]domain.WaitlistEntry, error)
	Delete(ctx context.Context, id, userID string) error
	GetCabin(ctx context.Context, id string) (domain.Cabin, error)
	ReleaseCabin(ctx context.Context, cabinID string) error
}

type PgWaitlistRepository struct {
	pool *pgxpool.Pool
}

func NewPgWaitlistRepository(pool *pgxpool.Pool) *PgWaitlistRepository {
	return &PgWaitlistRepository{pool: pool}
}

func (r *PgWaitlistRepository) CreateEntry(ctx context.Context, entry domain.WaitlistEntry) error {
	const query = `
		INSERT INTO waitlist_entries (id, user_id, cabin_id, reading_room_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.CabinID,
		entry.ReadingRoomID,
		entry.CreatedAt,
	)
	return err
}

func (r *PgWaitlistRepository) FindByUserAndCabin(ctx context.Context, userID, cabinID string) (domain.WaitlistEntry, error) {
	const query = `
		SELECT id, user_id, cabin_id, reading_room_id, created_at
		FROM waitlist_entries
		WHERE user_id = $1 AND cabin_id = $2
	`
	var e domain.WaitlistEntry
	err := r.pool.QueryRow(ctx, query, userID, cabinID).
		Scan(&e.ID, &e.UserID, &e.CabinID, &e.ReadingRoomID, &e.CreatedAt)
	if err != nil {
		return domain.WaitlistEntry{}, err
	}
	return e, nil
}

func (r *PgWaitlistRepository) ListForUser(ctx context.Context, userID string) ([]domain.WaitlistEntry, error) {
	return r.list(ctx, `user_id`, userID)
}

func (r *PgWaitlistRepository) ListForCabin(ctx context.Context, cabinID string) ([]domain.WaitlistEntry, error) {
	return r.list(ctx, `cabin_id`, cabinID)
}

func (r *PgWaitlistRepository) list(ctx context.Context, column, value string) ([]domain.WaitlistEntry, error) {
	query := `
		SELECT id, user_id, cabin_id, reading_room_id, created_at
		FROM waitlist_entries
		WHERE ` + column + ` = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.WaitlistEntry
	for rows.Next() {
		var e domain.WaitlistEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.CabinID, &e.ReadingRoomID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *PgWaitlistRepository) Delete(ctx context.Context, id, userID string) error {
	ct, err := r.pool.Exec(ctx,
		`DELETE FROM waitlist_entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgWaitlistRepository) GetCabin(ctx context.Context, id string) (domain.Cabin, error) {
	const query = `
		SELECT id, reading_room_id, number, status, current_occupant_id, created_at
		FROM cabins
		WHERE id = $1
	`
	var (
		c        domain.Cabin
		occupant *string
	)
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&c.ID, &c.ReadingRoomID, &c.Number, &c.Status, &occupant, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Cabin{}, err
	}
	if occupant != nil {
		c.CurrentOccupantID = *occupant
	}
	return c, err
}

func (r *PgWaitlistRepository) ReleaseCabin(ctx context.Context, cabinID string) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE cabins
		SET status = $2, current_occupant_id = NULL
		WHERE id = $1
	`, cabinID, domain.CabinAvailable)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

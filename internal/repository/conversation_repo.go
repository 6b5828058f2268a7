package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyspace/internal/domain"
)

// ConversationRepository define el contrato de persistencia para conversaciones.
type ConversationRepository interface {
	Create(ctx context.Context, conv domain.Conversation) error
	GetByID(ctx context.Context, id string) (domain.Conversation, error)
	FindByParticipants(ctx context.Context, userA, userB string) (domain.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error)
}

// IsUniqueViolation indica si err es una violacion de constraint de unicidad
// de Postgres (23505). El servicio la usa para reintentar el find-or-create
// cuando dos primeros contactos del mismo par corren en paralelo.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// SortPair devuelve el par de participantes en orden canonico. Los pares se
// guardan siempre ordenados para que el constraint de unicidad
// (participant1_id, participant2_id) cubra el par sin importar el orden.
func SortPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// PgConversationRepository implementa ConversationRepository usando pgxpool.
type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

func (r *PgConversationRepository) Create(ctx context.Context, conv domain.Conversation) error {
	const query = `
		INSERT INTO conversations (id, participant1_id, participant2_id, venue_id, last_message_at, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	`
	p1, p2 := SortPair(conv.Participant1ID, conv.Participant2ID)
	_, err := r.pool.Exec(ctx, query,
		conv.ID,
		p1,
		p2,
		conv.VenueID,
		conv.LastMessageAt,
		conv.CreatedAt,
	)
	return err
}

func (r *PgConversationRepository) GetByID(ctx context.Context, id string) (domain.Conversation, error) {
	const query = `
		SELECT id, participant1_id, participant2_id, venue_id, last_message_at, created_at
		FROM conversations
		WHERE id = $1
	`
	return scanConversation(r.pool.QueryRow(ctx, query, id))
}

func (r *PgConversationRepository) FindByParticipants(ctx context.Context, userA, userB string) (domain.Conversation, error) {
	// El venue no participa del match: el par es la clave natural.
	const query = `
		SELECT id, participant1_id, participant2_id, venue_id, last_message_at, created_at
		FROM conversations
		WHERE participant1_id = $1 AND participant2_id = $2
	`
	p1, p2 := SortPair(userA, userB)
	return scanConversation(r.pool.QueryRow(ctx, query, p1, p2))
}

func (r *PgConversationRepository) ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	// Conversaciones sin mensajes ordenan por su fecha de creacion.
	const query = `
		SELECT id, participant1_id, participant2_id, venue_id, last_message_at, created_at
		FROM conversations
		WHERE participant1_id = $1 OR participant2_id = $1
		ORDER BY COALESCE(last_message_at, created_at) DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (domain.Conversation, error) {
	var (
		conv          domain.Conversation
		venueID       *string
		lastMessageAt *time.Time
	)
	err := row.Scan(
		&conv.ID,
		&conv.Participant1ID,
		&conv.Participant2ID,
		&venueID,
		&lastMessageAt,
		&conv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, err
	}
	if venueID != nil {
		conv.VenueID = *venueID
	}
	conv.LastMessageAt = lastMessageAt
	return conv, err
}

package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyspace/internal/domain"
)

// ErrNotConversationParticipant se devuelve cuando el emisor o el receptor de
// un mensaje no pertenecen a la conversacion que lo contiene.
var ErrNotConversationParticipant = errors.New("message parties are not conversation participants")

// MessageRepository define el contrato de persistencia para mensajes.
type MessageRepository interface {
	Append(ctx context.Context, msg domain.Message) error
	GetByID(ctx context.Context, id string) (domain.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error)
	LatestByConversation(ctx context.Context, conversationID string) (domain.Message, error)
	MarkRead(ctx context.Context, messageID string) error
	MarkConversationRead(ctx context.Context, conversationID, receiverID string) (int64, error)
	UnreadCountForUser(ctx context.Context, userID string) (int, error)
	UnreadCountByConversation(ctx context.Context, conversationID, userID string) (int, error)
}

// PgMessageRepository implementa MessageRepository usando pgxpool.
type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

// Append inserta el mensaje y actualiza last_message_at de la conversacion en
// la misma transaccion: o se persisten ambos o ninguno. La fila de la
// conversacion se bloquea para validar que las partes del mensaje sean sus
// participantes antes de escribir.
func (r *PgMessageRepository) Append(ctx context.Context, msg domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var p1, p2 string
	err = tx.QueryRow(ctx,
		`SELECT participant1_id, participant2_id FROM conversations WHERE id = $1 FOR UPDATE`,
		msg.ConversationID,
	).Scan(&p1, &p2)
	if err != nil {
		return err
	}

	s1, s2 := SortPair(msg.SenderID, msg.ReceiverID)
	if s1 != p1 || s2 != p2 {
		return ErrNotConversationParticipant
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, receiver_id, content, timestamp, read)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.Content, msg.Timestamp, msg.Read)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE conversations SET last_message_at = $2 WHERE id = $1`,
		msg.ConversationID, msg.Timestamp,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const messageColumns = `id, conversation_id, sender_id, receiver_id, content, timestamp, read`

func (r *PgMessageRepository) GetByID(ctx context.Context, id string) (domain.Message, error) {
	var msg domain.Message
	err := r.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id,
	).Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.Timestamp, &msg.Read)
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// ListByConversation devuelve la transcripcion completa en orden ascendente:
// el feed muestra lo mas reciente primero, la transcripcion se lee desde el
// mensaje mas viejo.
func (r *PgMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	const query = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY timestamp ASC
	`
	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.Timestamp, &msg.Read); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *PgMessageRepository) LatestByConversation(ctx context.Context, conversationID string) (domain.Message, error) {
	const query = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`
	var msg domain.Message
	err := r.pool.QueryRow(ctx, query, conversationID).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.Timestamp, &msg.Read)
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// MarkRead es idempotente: marcar un mensaje ya leido no cambia nada.
func (r *PgMessageRepository) MarkRead(ctx context.Context, messageID string) error {
	ct, err := r.pool.Exec(ctx, `UPDATE messages SET read = TRUE WHERE id = $1`, messageID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkConversationRead transiciona en lote los mensajes no leidos dirigidos a
// receiverID dentro de la conversacion y devuelve cuantos cambiaron.
func (r *PgMessageRepository) MarkConversationRead(ctx context.Context, conversationID, receiverID string) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET read = TRUE
		WHERE conversation_id = $1 AND receiver_id = $2 AND read = FALSE
	`, conversationID, receiverID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *PgMessageRepository) UnreadCountForUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND read = FALSE`, userID,
	).Scan(&count)
	return count, err
}

func (r *PgMessageRepository) UnreadCountByConversation(ctx context.Context, conversationID, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = $1 AND receiver_id = $2 AND read = FALSE
	`, conversationID, userID).Scan(&count)
	return count, err
}

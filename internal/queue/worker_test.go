package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"studyspace/internal/domain"
)

type memNotificationRepo struct {
	created []domain.Notification
	err     error
}

func (m *memNotificationRepo) Create(_ context.Context, n domain.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, n)
	return nil
}

func (m *memNotificationRepo) ListForUser(_ context.Context, userID string) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range m.created {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotificationRepo) MarkRead(_ context.Context, id, _ string) error {
	for i, n := range m.created {
		if n.ID == id {
			m.created[i].Read = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func TestHandleNewMessage(t *testing.T) {
	repo := &memNotificationRepo{}
	worker := NewNotificationWorker(zap.NewNop(), repo)

	task, err := NewMessageTask(NewMessagePayload{
		MessageID:  "msg-1",
		SenderName: "Alice",
		ReceiverID: "ub",
		Preview:    "nos vemos en la sala 2",
	})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if task.Type() != TypeNewMessage {
		t.Fatalf("unexpected task type %q", task.Type())
	}

	if err := worker.HandleNewMessage(context.Background(), task); err != nil {
		t.Fatalf("handle task: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.created))
	}

	n := repo.created[0]
	if n.UserID != "ub" || n.MessageID != "msg-1" {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if n.Title != "New message from Alice" {
		t.Fatalf("unexpected title %q", n.Title)
	}
	if n.Body != "nos vemos en la sala 2" || n.Kind != domain.NotificationInfo {
		t.Fatalf("unexpected notification body: %+v", n)
	}
	if n.Read {
		t.Fatalf("notification must start unread")
	}
}

func TestHandleNewMessage_MalformedPayloadSkipsRetry(t *testing.T) {
	repo := &memNotificationRepo{}
	worker := NewNotificationWorker(zap.NewNop(), repo)

	task := asynq.NewTask(TypeNewMessage, []byte("{not json"))
	err := worker.HandleNewMessage(context.Background(), task)
	if err == nil {
		t.Fatalf("expected error for malformed payload")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload must not be retried, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no notification, got %d", len(repo.created))
	}
}

func TestHandleNewMessage_RepoErrorPropagates(t *testing.T) {
	repoErr := errors.New("db unavailable")
	repo := &memNotificationRepo{err: repoErr}
	worker := NewNotificationWorker(zap.NewNop(), repo)

	task, err := NewMessageTask(NewMessagePayload{ReceiverID: "ub", SenderName: "Alice"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := worker.HandleNewMessage(context.Background(), task); !errors.Is(err, repoErr) {
		t.Fatalf("expected repo error to propagate for retry, got %v", err)
	}
}

func TestNewMessagePayloadRoundTrip(t *testing.T) {
	task, err := NewMessageTask(NewMessagePayload{
		MessageID:  "msg-1",
		SenderName: "Alice",
		ReceiverID: "ub",
		Preview:    "hola",
	})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	var decoded NewMessagePayload
	if err := json.Unmarshal(task.Payload(), &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.MessageID != "msg-1" || decoded.ReceiverID != "ub" {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

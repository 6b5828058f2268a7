package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"studyspace/internal/domain"
	"studyspace/internal/repository"
)

// NotificationWorker consume tareas de notificacion y las materializa como
// filas in-app. Los handlers deben ser idempotentes a nivel de reintento:
// reintentar crea a lo sumo una notificacion duplicada, nunca corrompe el
// estado de mensajeria.
type NotificationWorker struct {
	logger        *zap.Logger
	notifications repository.NotificationRepository
}

func NewNotificationWorker(logger *zap.Logger, notifications repository.NotificationRepository) *NotificationWorker {
	return &NotificationWorker{
		logger:        logger,
		notifications: notifications,
	}
}

// Register vincula los handlers de este worker al mux de asynq.
func (w *NotificationWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeNewMessage, w.HandleNewMessage)
}

func (w *NotificationWorker) HandleNewMessage(ctx context.Context, t *asynq.Task) error {
	var p NewMessagePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// payload malformado: reintentar no lo va a arreglar
		return fmt.Errorf("unmarshal %s payload: %v: %w", TypeNewMessage, err, asynq.SkipRetry)
	}

	notification := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    p.ReceiverID,
		Title:     fmt.Sprintf("New message from %s", p.SenderName),
		Body:      p.Preview,
		Kind:      domain.NotificationInfo,
		MessageID: p.MessageID,
		CreatedAt: time.Now().UTC(),
	}

	if err := w.notifications.Create(ctx, notification); err != nil {
		w.logger.Warn("create notification failed",
			zap.Error(err),
			zap.String("receiver_id", p.ReceiverID),
		)
		return err
	}

	w.logger.Info("notification created",
		zap.String("notification_id", notification.ID),
		zap.String("receiver_id", p.ReceiverID),
	)
	return nil
}

// NewServer construye el servidor asynq que consume la cola de notificaciones.
func NewServer(redisAddr, redisPassword string, redisDB, concurrency int, logger *zap.Logger) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueNotifications: 5,
				"default":          1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
				logger.Warn("task failed", zap.String("type", task.Type()), zap.Error(err))
			}),
		},
	)
}

package queue

import (
	"context"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer publica tareas de notificacion en Redis via asynq. Implementa
// service.Notifier: el caller descarta el resultado, aca solo se encola.
type Enqueuer struct {
	client *asynq.Client
	logger *zap.Logger
}

func NewEnqueuer(redisAddr, redisPassword string, redisDB int, logger *zap.Logger) *Enqueuer {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
	return &Enqueuer{client: client, logger: logger}
}

func (e *Enqueuer) NotifyNewMessage(ctx context.Context, receiverID, senderName, preview, messageID string) error {
	p := NewMessagePayload{
		MessageID:  messageID,
		SenderName: senderName,
		ReceiverID: receiverID,
		Preview:    preview,
	}
	task, err := NewMessageTask(p)
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(5),
	)
	if err != nil {
		return err
	}
	if e.logger != nil {
		e.logger.Debug("notification task enqueued",
			zap.String("task_id", info.ID),
			zap.String("receiver_id", p.ReceiverID),
		)
	}
	return nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}

package queue

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TypeNewMessage es el nombre de la tarea encolada despues de confirmar un
// mensaje nuevo. El worker la consume para crear la notificacion in-app del
// receptor.
const TypeNewMessage = "notification:new_message"

// QueueNotifications es la cola dedicada a notificaciones best-effort.
const QueueNotifications = "notifications"

// NewMessagePayload viaja como JSON dentro de la tarea. Se mantiene
// desacoplado de los tipos de dominio para no arrastrar sus tags.
type NewMessagePayload struct {
	MessageID  string `json:"message_id"`
	SenderName string `json:"sender_name"`
	ReceiverID string `json:"receiver_id"`
	Preview    string `json:"preview"`
}

func NewMessageTask(p NewMessagePayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNewMessage, payload), nil
}

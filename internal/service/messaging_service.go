package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"studyspace/internal/domain"
	"studyspace/internal/repository"
)

// Notifier despacha el aviso best-effort al receptor de un mensaje nuevo. Se
// invoca despues de confirmar la transaccion de envio y su error nunca se
// propaga al caller.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, receiverID, senderName, preview, messageID string) error
}

// MessagingService coordina conversaciones, mensajes y estado de lectura.
type MessagingService struct {
	logger        *zap.Logger
	users         repository.UserRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	notifier      Notifier
}

var (
	ErrMessagingNotConfigured = errors.New("messaging service not configured")
	ErrMessageInvalidInput    = errors.New("message invalid input")
	ErrParticipantRequired    = errors.New("participant id required")
	ErrReceiverNotFound       = errors.New("receiver not found")
	ErrConversationNotFound   = errors.New("conversation not found")
	ErrMessageNotFound        = errors.New("message not found")
	ErrNotParticipant         = errors.New("not a conversation participant")
	ErrNotReceiver            = errors.New("not the message receiver")
)

// notificationPreviewLimit acota el cuerpo de la notificacion, no el mensaje:
// el contenido se persiste completo.
const notificationPreviewLimit = 100

func NewMessagingService(
	logger *zap.Logger,
	users repository.UserRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	notifier Notifier,
) *MessagingService {
	return &MessagingService{
		logger:        logger,
		users:         users,
		conversations: conversations,
		messages:      messages,
		notifier:      notifier,
	}
}

type SendMessageInput struct {
	ReceiverID string
	Content    string
	VenueID    string
}

// SendMessage valida el receptor, resuelve o crea la conversacion del par,
// persiste el mensaje y dispara la notificacion. El append y la actualizacion
// de last_message_at comparten transaccion en el repositorio.
func (s *MessagingService) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (domain.MessageResponse, error) {
	if s == nil || s.users == nil || s.conversations == nil || s.messages == nil {
		return domain.MessageResponse{}, ErrMessagingNotConfigured
	}

	receiverID := strings.TrimSpace(input.ReceiverID)
	content := strings.TrimSpace(input.Content)
	if receiverID == "" || content == "" {
		return domain.MessageResponse{}, ErrMessageInvalidInput
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return domain.MessageResponse{}, err
	}
	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MessageResponse{}, ErrReceiverNotFound
		}
		return domain.MessageResponse{}, err
	}

	conv, err := s.resolveOrCreate(ctx, senderID, receiverID, input.VenueID)
	if err != nil {
		return domain.MessageResponse{}, err
	}

	msg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		Timestamp:      time.Now().UTC(),
		Read:           false,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return domain.MessageResponse{}, err
	}

	s.dispatchNotification(ctx, msg, sender.Name)

	return domain.MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       sender.ID,
		SenderName:     sender.Name,
		SenderRole:     sender.Role,
		ReceiverID:     receiver.ID,
		ReceiverName:   receiver.Name,
		ReceiverRole:   receiver.Role,
		Content:        msg.Content,
		Timestamp:      msg.Timestamp,
		Read:           msg.Read,
		VenueID:        conv.VenueID,
	}, nil
}

// resolveOrCreate devuelve la conversacion del par sin importar el orden de
// los ids. Dos primeros contactos concurrentes convergen a una sola fila: el
// constraint de unicidad del par ordenado rechaza al perdedor, que relee.
func (s *MessagingService) resolveOrCreate(ctx context.Context, userA, userB, venueID string) (domain.Conversation, error) {
	conv, err := s.conversations.FindByParticipants(ctx, userA, userB)
	if err == nil {
		// El venue del request se ignora: el registro existente manda.
		return conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, err
	}

	conv = domain.Conversation{
		ID:             uuid.NewString(),
		Participant1ID: userA,
		Participant2ID: userB,
		VenueID:        strings.TrimSpace(venueID),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		if repository.IsUniqueViolation(err) {
			return s.conversations.FindByParticipants(ctx, userA, userB)
		}
		return domain.Conversation{}, err
	}

	conv.Participant1ID, conv.Participant2ID = repository.SortPair(userA, userB)
	return conv, nil
}

func (s *MessagingService) dispatchNotification(ctx context.Context, msg domain.Message, senderName string) {
	if s.notifier == nil {
		return
	}
	preview := msg.Content
	if runes := []rune(preview); len(runes) > notificationPreviewLimit {
		preview = string(runes[:notificationPreviewLimit]) + "..."
	}
	if err := s.notifier.NotifyNewMessage(ctx, msg.ReceiverID, senderName, preview, msg.ID); err != nil {
		// best-effort: el envio ya esta confirmado, solo se registra
		if s.logger != nil {
			s.logger.Warn("notification dispatch failed",
				zap.Error(err),
				zap.String("message_id", msg.ID),
			)
		}
	}
}

// StartConversation resuelve o crea la conversacion con participantID y
// devuelve su resumen desde la perspectiva de userID.
func (s *MessagingService) StartConversation(ctx context.Context, userID, participantID, venueID string) (domain.ConversationSummary, error) {
	if s == nil || s.users == nil || s.conversations == nil || s.messages == nil {
		return domain.ConversationSummary{}, ErrMessagingNotConfigured
	}

	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return domain.ConversationSummary{}, ErrParticipantRequired
	}
	if _, err := s.users.GetByID(ctx, participantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ConversationSummary{}, ErrReceiverNotFound
		}
		return domain.ConversationSummary{}, err
	}

	conv, err := s.resolveOrCreate(ctx, userID, participantID, venueID)
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	summary, err := s.summarize(ctx, conv, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ConversationSummary{}, ErrReceiverNotFound
		}
		return domain.ConversationSummary{}, err
	}
	return summary, nil
}

// ListMessages devuelve la transcripcion completa, del mensaje mas viejo al
// mas nuevo. Solo los participantes pueden leerla.
func (s *MessagingService) ListMessages(ctx context.Context, conversationID, requesterID string) ([]domain.MessageResponse, error) {
	if s == nil || s.conversations == nil || s.messages == nil {
		return nil, ErrMessagingNotConfigured
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, ErrNotParticipant
	}

	messages, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	identities := make(map[string]domain.User, 2)
	responses := make([]domain.MessageResponse, 0, len(messages))
	for _, msg := range messages {
		sender, okS := s.lookupCached(ctx, identities, msg.SenderID)
		receiver, okR := s.lookupCached(ctx, identities, msg.ReceiverID)
		if !okS || !okR {
			// referencia colgante: se omite el mensaje, no se falla la lectura
			continue
		}
		responses = append(responses, domain.MessageResponse{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			SenderID:       sender.ID,
			SenderName:     sender.Name,
			SenderRole:     sender.Role,
			ReceiverID:     receiver.ID,
			ReceiverName:   receiver.Name,
			ReceiverRole:   receiver.Role,
			Content:        msg.Content,
			Timestamp:      msg.Timestamp,
			Read:           msg.Read,
		})
	}
	return responses, nil
}

// BuildFeed arma la lista de conversaciones del usuario, ordenada por
// actividad reciente, con el ultimo mensaje y el conteo de no leidos de cada
// una. Las conversaciones cuyo contraparte no resuelve se omiten.
func (s *MessagingService) BuildFeed(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	if s == nil || s.users == nil || s.conversations == nil || s.messages == nil {
		return nil, ErrMessagingNotConfigured
	}

	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	feed := make([]domain.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary, err := s.summarize(ctx, conv, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, err
		}
		feed = append(feed, summary)
	}
	return feed, nil
}

// summarize construye el resumen de una conversacion relativo a userID.
// Devuelve pgx.ErrNoRows si el contraparte no existe.
func (s *MessagingService) summarize(ctx context.Context, conv domain.Conversation, userID string) (domain.ConversationSummary, error) {
	me, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	other, err := s.users.GetByID(ctx, conv.Counterpart(userID))
	if err != nil {
		return domain.ConversationSummary{}, err
	}

	unread, err := s.messages.UnreadCountByConversation(ctx, conv.ID, userID)
	if err != nil {
		return domain.ConversationSummary{}, err
	}

	var lastMessage *domain.MessageResponse
	last, err := s.messages.LatestByConversation(ctx, conv.ID)
	switch {
	case err == nil:
		identities := map[string]domain.User{me.ID: me, other.ID: other}
		sender, okS := s.lookupCached(ctx, identities, last.SenderID)
		receiver, okR := s.lookupCached(ctx, identities, last.ReceiverID)
		if okS && okR {
			lastMessage = &domain.MessageResponse{
				ID:             last.ID,
				ConversationID: last.ConversationID,
				SenderID:       sender.ID,
				SenderName:     sender.Name,
				SenderRole:     sender.Role,
				ReceiverID:     receiver.ID,
				ReceiverName:   receiver.Name,
				ReceiverRole:   receiver.Role,
				Content:        last.Content,
				Timestamp:      last.Timestamp,
				Read:           last.Read,
			}
		}
	case errors.Is(err, pgx.ErrNoRows):
		// conversacion sin mensajes todavia
	default:
		return domain.ConversationSummary{}, err
	}

	return domain.ConversationSummary{
		ID:             conv.ID,
		ParticipantIDs: []string{conv.Participant1ID, conv.Participant2ID},
		Participants:   []domain.UserIdentity{me.Identity(), other.Identity()},
		LastMessage:    lastMessage,
		UnreadCount:    unread,
		VenueID:        conv.VenueID,
	}, nil
}

func (s *MessagingService) lookupCached(ctx context.Context, cache map[string]domain.User, id string) (domain.User, bool) {
	if u, ok := cache[id]; ok {
		return u, true
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, false
	}
	cache[id] = u
	return u, true
}

// MarkMessageRead marca un mensaje como leido. Solo el receptor puede
// reconocer la recepcion; repetir la operacion sobre un mensaje ya leido es
// un exito sin efecto.
func (s *MessagingService) MarkMessageRead(ctx context.Context, messageID, requesterID string) error {
	if s == nil || s.messages == nil {
		return ErrMessagingNotConfigured
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMessageNotFound
		}
		return err
	}
	if msg.ReceiverID != requesterID {
		return ErrNotReceiver
	}
	return s.messages.MarkRead(ctx, messageID)
}

// MarkConversationRead marca como leidos los mensajes no leidos dirigidos a
// requesterID en la conversacion y devuelve cuantos transiciono. El filtro
// por receiver_id acota el efecto sin necesidad de chequeo de membresia.
func (s *MessagingService) MarkConversationRead(ctx context.Context, conversationID, requesterID string) (int64, error) {
	if s == nil || s.messages == nil {
		return 0, ErrMessagingNotConfigured
	}
	return s.messages.MarkConversationRead(ctx, conversationID, requesterID)
}

// UnreadCount devuelve el total de mensajes no leidos dirigidos al usuario en
// todas sus conversaciones.
func (s *MessagingService) UnreadCount(ctx context.Context, userID string) (int, error) {
	if s == nil || s.messages == nil {
		return 0, ErrMessagingNotConfigured
	}
	return s.messages.UnreadCountForUser(ctx, userID)
}

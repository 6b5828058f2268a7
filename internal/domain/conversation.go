package domain

import "time"

// Conversation es el hilo canonico entre dos participantes. El par
// (Participant1ID, Participant2ID) se guarda ordenado y es unico: existe a lo
// sumo una conversacion por par sin importar el orden de los ids.
type Conversation struct {
	ID             string     `json:"id"`
	Participant1ID string     `json:"participant1_id"`
	Participant2ID string     `json:"participant2_id"`
	VenueID        string     `json:"venue_id,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// HasParticipant indica si userID es una de las dos partes.
func (c Conversation) HasParticipant(userID string) bool {
	return c.Participant1ID == userID || c.Participant2ID == userID
}

// Counterpart devuelve el otro participante relativo a userID.
func (c Conversation) Counterpart(userID string) string {
	if c.Participant1ID == userID {
		return c.Participant2ID
	}
	return c.Participant1ID
}

// ConversationSummary es la entrada del feed de conversaciones de un usuario.
type ConversationSummary struct {
	ID             string           `json:"id"`
	ParticipantIDs []string         `json:"participant_ids"`
	Participants   []UserIdentity   `json:"participants"`
	LastMessage    *MessageResponse `json:"last_message,omitempty"`
	UnreadCount    int              `json:"unread_count"`
	VenueID        string           `json:"venue_id,omitempty"`
}

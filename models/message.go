package models

import (
	"time"
)

// Message represents a chat message as the relay stores and fans it out
type Message struct {
	ID        string    `json:"id"`        // Unique message ID (UUID)
	PairID    string    `json:"pairId"`    // Conversation key of the two participants
	SenderID  string    `json:"senderId"`  // ID of the user sending the message
	FirstName string    `json:"firstName"` // Display identity of the sender
	LastName  string    `json:"lastName"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`        // Server-assigned timestamp
	TempID    string    `json:"tempId,omitempty"` // Client correlation ID, echoed back once
}

// Received converts a stored message into the realtime event delivered to
// the participants of its pair.
func (m Message) Received() MessageReceived {
	return MessageReceived{
		ID:        m.ID,
		UserID:    m.SenderID,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		TempID:    m.TempID,
	}
}

// HistoryResponse is the body of GET /chat/{counterpartyId}.
type HistoryResponse struct {
	Messages []HistoryMessage `json:"messages"`
}

// HistoryMessage is one persisted message, oldest first. TempID is the
// client correlation id the message was sent under, if any.
type HistoryMessage struct {
	ID        string    `json:"_id"`
	SenderID  Sender    `json:"senderId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	TempID    string    `json:"tempId,omitempty"`
}

// Sender is the populated author of a history message.
type Sender struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

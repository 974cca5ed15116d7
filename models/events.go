package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Realtime event names exchanged over the chat socket.
const (
	EventJoinChat        = "joinChat"
	EventSendMessage     = "sendMessage"
	EventMessageReceived = "messageReceived"
	EventError           = "error"
)

// Envelope frames every event on the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals payload under the given event name.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

// Decode unmarshals the envelope data into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Event, err)
	}
	return nil
}

// JoinChat announces the (user, counterparty) pairing of a socket.
type JoinChat struct {
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
}

// SendMessage is an outbound chat message.
type SendMessage struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
	Text         string `json:"text"`
	TempID       string `json:"tempId,omitempty"`
}

// MessageReceived is delivered to every socket joined to the pair,
// the sender's own sockets included.
type MessageReceived struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"userId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	TempID    string    `json:"tempId,omitempty"`
}

// ErrorEvent reports a rejected socket event back to its sender.
type ErrorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

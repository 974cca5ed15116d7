// Package chat holds the client-side conversation timeline: the message
// model, optimistic sends and their reconciliation against server echoes,
// and the day grouping used to render it.
package chat

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrEmptyMessage  = errors.New("message text is empty")
	ErrUnknownTempID = errors.New("no message with this temp id")
	ErrNotFailed     = errors.New("message is not in failed state")
)

// Status tracks delivery of a message. The zero value is a confirmed message.
type Status int

const (
	StatusConfirmed Status = iota
	StatusPending
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFailed:
		return "failed"
	default:
		return "confirmed"
	}
}

// Author identifies who wrote a message. ID is the stable identity; the
// names are for display only.
type Author struct {
	ID        string
	FirstName string
	LastName  string
}

// FullName joins first and last name, skipping empty parts.
func (a Author) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Message is one entry of a conversation timeline.
type Message struct {
	ID        string // server id, empty until confirmed
	Sender    Author
	Text      string
	CreatedAt time.Time
	Status    Status
	TempID    string // set only while pending or failed
}

func (m Message) Pending() bool {
	return m.Status == StatusPending
}

func (m Message) Failed() bool {
	return m.Status == StatusFailed
}

// Inbound is a realtime message event as seen by the timeline.
type Inbound struct {
	ID        string
	Sender    Author
	Text      string
	CreatedAt time.Time // zero when the server sent none
	TempID    string
}

// Outcome reports what ApplyInbound did with an event.
type Outcome int

const (
	OutcomeAppended Outcome = iota
	OutcomeReconciled
	OutcomeDropped
)

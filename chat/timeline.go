package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Timeline holds the ordered messages of one conversation. It is not safe
// for concurrent use; the owner serialises access.
type Timeline struct {
	messages []Message
	newID    func() string
}

func NewTimeline() *Timeline {
	return &Timeline{newID: uuid.NewString}
}

// Messages returns a copy of the timeline, oldest first.
func (t *Timeline) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Timeline) Len() int {
	return len(t.messages)
}

// Clear drops every message.
func (t *Timeline) Clear() {
	t.messages = nil
}

// Replace installs a freshly loaded history. Loaded messages are always
// confirmed.
func (t *Timeline) Replace(history []Message) {
	t.messages = make([]Message, 0, len(history))
	for _, m := range history {
		m.Status = StatusConfirmed
		m.TempID = ""
		t.messages = append(t.messages, m)
	}
}

// AppendPending appends a locally authored message before any network
// confirmation. Whitespace-only text is rejected and leaves the timeline
// untouched.
func (t *Timeline) AppendPending(sender Author, text string, now time.Time) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	msg := Message{
		Sender:    sender,
		Text:      text,
		CreatedAt: now,
		Status:    StatusPending,
		TempID:    t.newID(),
	}
	t.messages = append(t.messages, msg)
	return msg, nil
}

// ApplyInbound merges a realtime event. An event authored by self confirms
// the unconfirmed message carrying its TempID, or without one the latest
// unconfirmed message with the same text, in place. It is dropped when
// none matches. Any other event is appended.
func (t *Timeline) ApplyInbound(evt Inbound, self Author) Outcome {
	if evt.Sender.ID != self.ID {
		t.messages = append(t.messages, Message{
			ID:        evt.ID,
			Sender:    evt.Sender,
			Text:      evt.Text,
			CreatedAt: evt.CreatedAt,
		})
		return OutcomeAppended
	}

	idx := t.findEcho(evt, self)
	if idx < 0 {
		return OutcomeDropped
	}
	msg := &t.messages[idx]
	msg.Status = StatusConfirmed
	msg.TempID = ""
	if evt.ID != "" {
		msg.ID = evt.ID
	}
	if !evt.CreatedAt.IsZero() {
		msg.CreatedAt = evt.CreatedAt
	}
	return OutcomeReconciled
}

func (t *Timeline) findEcho(evt Inbound, self Author) int {
	// A temp id is decisive: its message may already be confirmed by a
	// history reload.
	if evt.TempID != "" {
		if idx := t.indexOfTempID(evt.TempID); idx >= 0 && t.messages[idx].Text == evt.Text {
			return idx
		}
		return -1
	}
	for i := len(t.messages) - 1; i >= 0; i-- {
		m := t.messages[i]
		if m.Status == StatusConfirmed {
			continue
		}
		if m.Sender.ID == self.ID && m.Text == evt.Text {
			return i
		}
	}
	return -1
}

func (t *Timeline) indexOfTempID(tempID string) int {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].TempID == tempID {
			return i
		}
	}
	return -1
}

// Find returns the unconfirmed message carrying tempID.
func (t *Timeline) Find(tempID string) (Message, bool) {
	idx := t.indexOfTempID(tempID)
	if idx < 0 {
		return Message{}, false
	}
	return t.messages[idx], true
}

// MarkFailed demotes a pending message. It reports false when the message
// was already confirmed or failed.
func (t *Timeline) MarkFailed(tempID string) bool {
	idx := t.indexOfTempID(tempID)
	if idx < 0 || t.messages[idx].Status != StatusPending {
		return false
	}
	t.messages[idx].Status = StatusFailed
	return true
}

// MarkRetrying turns a failed message pending again with a fresh client
// timestamp. The TempID is kept so a late echo of the first attempt still
// matches.
func (t *Timeline) MarkRetrying(tempID string, now time.Time) (Message, error) {
	idx := t.indexOfTempID(tempID)
	if idx < 0 {
		return Message{}, ErrUnknownTempID
	}
	if t.messages[idx].Status != StatusFailed {
		return Message{}, ErrNotFailed
	}
	t.messages[idx].Status = StatusPending
	t.messages[idx].CreatedAt = now
	return t.messages[idx], nil
}

// PendingCount returns how many messages await confirmation.
func (t *Timeline) PendingCount() int {
	n := 0
	for _, m := range t.messages {
		if m.Pending() {
			n++
		}
	}
	return n
}

// Reload installs a freshly loaded history and keeps the messages that
// arrived live while it was in flight, unless history already holds them.
// An unconfirmed own message is held by a history entry of the same sender
// carrying its TempID or, when the entry has no TempID, by one with the same
// text stamped at or after the client timestamp. Each history entry holds at
// most one live message.
func (t *Timeline) Reload(history []Message) {
	live := t.messages
	used := make([]bool, len(history))
	var keep []Message
	for _, m := range live {
		if idx := heldBy(history, used, m); idx >= 0 {
			used[idx] = true
			continue
		}
		keep = append(keep, m)
	}
	t.Replace(history)
	t.messages = append(t.messages, keep...)
}

func heldBy(history []Message, used []bool, m Message) int {
	for i, h := range history {
		if used[i] || h.Sender.ID != m.Sender.ID || h.Text != m.Text {
			continue
		}
		if m.ID != "" && h.ID == m.ID {
			return i
		}
		if m.Status == StatusConfirmed {
			if h.CreatedAt.Equal(m.CreatedAt) {
				return i
			}
			continue
		}
		if h.TempID != "" {
			if h.TempID == m.TempID {
				return i
			}
			continue
		}
		if !h.CreatedAt.Before(m.CreatedAt) {
			return i
		}
	}
	return -1
}

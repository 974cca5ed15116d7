//go:generate go run go.uber.org/mock/mockgen -source=deps.go -destination=mocks/mock_deps.go -package=mocks
package chatview

import (
	"context"

	"github.com/karthikraju391/codecrush/chat"
	"github.com/karthikraju391/codecrush/models"
)

// HistoryLoader fetches the persisted messages of a conversation.
type HistoryLoader interface {
	History(ctx context.Context, counterpartyID string) ([]chat.Message, error)
}

// Channel is an open realtime socket.
type Channel interface {
	Join(userID, targetUserID string) error
	Send(msg models.SendMessage) error
	Inbound() <-chan models.MessageReceived
	Err() error
	Close() error
}

// Dialer opens a new Channel for each conversation activation.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context) (Channel, error)

func (f DialFunc) Dial(ctx context.Context) (Channel, error) {
	return f(ctx)
}

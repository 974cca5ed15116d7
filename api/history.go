package api

import (
	"context"
	"net/url"
	"strings"

	"github.com/karthikraju391/codecrush/chat"
	"github.com/karthikraju391/codecrush/models"
	"github.com/samber/lo"
	"github.com/valyala/fasthttp"
)

// History fetches the persisted conversation with counterpartyID, oldest
// first. Every returned message is confirmed; TempID is set on messages
// that were sent under one.
func (c *Client) History(ctx context.Context, counterpartyID string) ([]chat.Message, error) {
	if strings.TrimSpace(counterpartyID) == "" {
		return nil, ErrEmptyCounterparty
	}
	var resp models.HistoryResponse
	if _, err := c.do(ctx, fasthttp.MethodGet, "/chat/"+url.PathEscape(counterpartyID), nil, &resp); err != nil {
		return nil, err
	}
	return lo.Map(resp.Messages, func(m models.HistoryMessage, _ int) chat.Message {
		return chat.Message{
			ID: m.ID,
			Sender: chat.Author{
				ID:        m.SenderID.ID,
				FirstName: m.SenderID.FirstName,
				LastName:  m.SenderID.LastName,
			},
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
			TempID:    m.TempID,
		}
	}), nil
}

package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/karthikraju391/codecrush/models"
	"github.com/nats-io/nats.go/jetstream"
)

var (
	errNotJoined    = errors.New("join the chat before sending")
	errNotConnected = errors.New("you can only chat with your connections")
	errEmptyText    = errors.New("message text is empty")
)

// Client is one authenticated socket. It joins at most one pair at a time.
type Client struct {
	Conn        *websocket.Conn
	User        models.User
	MessageChan chan models.Envelope // events queued for the writer
	DoneChan    chan struct{}        // closed when the reader exits

	h          *Handler
	pairID     string
	consumeCtx jetstream.ConsumeContext
}

func NewClient(conn *websocket.Conn, h *Handler, user models.User) *Client {
	return &Client{
		Conn:        conn,
		User:        user,
		MessageChan: make(chan models.Envelope, 256),
		DoneChan:    make(chan struct{}),
		h:           h,
	}
}

// HandleRead reads events until the socket closes.
func (c *Client) HandleRead(ctx context.Context) {
	defer func() {
		c.h.log.Debug("Reader closed", "user_id", c.User.ID, "pair_id", c.pairID)
		close(c.DoneChan)
	}()
	c.Conn.SetReadLimit(c.h.cfg.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.h.cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.h.cfg.PongWait))
	})

	for {
		var env models.Envelope
		if err := c.Conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.h.log.Warn("WebSocket read error", "user_id", c.User.ID, "error", err)
			} else {
				c.h.log.Debug("WebSocket closed", "user_id", c.User.ID, "error", err)
			}
			return
		}

		var err error
		switch env.Event {
		case models.EventJoinChat:
			err = c.join(ctx, env)
		case models.EventSendMessage:
			err = c.send(ctx, env)
		default:
			err = errors.New("unknown event")
		}
		if err != nil {
			c.h.log.Debug("Event rejected", "user_id", c.User.ID, "event", env.Event, "error", err)
			c.reject(env.Event, err)
		}
	}
}

// join subscribes the socket to the pair of the authenticated user and the
// target. A previous pair is left first.
func (c *Client) join(ctx context.Context, env models.Envelope) error {
	var in models.JoinChat
	if err := env.Decode(&in); err != nil {
		return err
	}
	target := strings.TrimSpace(in.TargetUserID)
	if target == "" || target == c.User.ID {
		return errNotConnected
	}
	connected, err := c.h.store.Connected(c.User.ID, target)
	if err != nil {
		return err
	}
	if !connected {
		return errNotConnected
	}

	pairID := models.PairID(c.User.ID, target)
	if pairID == c.pairID {
		return nil
	}
	c.leave()
	consumeCtx, err := c.h.nats.SubscribeToPair(ctx, pairID, func(msg models.Message) {
		out, err := models.NewEnvelope(models.EventMessageReceived, msg.Received())
		if err != nil {
			c.h.log.Error("Encoding event", "error", err)
			return
		}
		select {
		case c.MessageChan <- out:
		case <-time.After(time.Second):
			c.h.log.Warn("Timeout queueing message", "user_id", c.User.ID)
		case <-c.DoneChan:
		}
	})
	if err != nil {
		return err
	}
	c.pairID = pairID
	c.consumeCtx = consumeCtx
	c.h.log.Info("Joined chat", "user_id", c.User.ID, "pair_id", pairID)
	return nil
}

func (c *Client) leave() {
	if c.consumeCtx != nil {
		c.consumeCtx.Stop()
		c.consumeCtx = nil
	}
	c.pairID = ""
}

// send stores the message and publishes it to the pair. The sender gets it
// back through its own subscription, carrying the temp id.
func (c *Client) send(ctx context.Context, env models.Envelope) error {
	var in models.SendMessage
	if err := env.Decode(&in); err != nil {
		return err
	}
	if c.pairID == "" || models.PairID(c.User.ID, in.TargetUserID) != c.pairID {
		return errNotJoined
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return errEmptyText
	}

	msg, err := c.h.store.StoreMessage(models.Message{
		ID:        uuid.NewString(),
		PairID:    c.pairID,
		SenderID:  c.User.ID,
		FirstName: c.User.FirstName,
		LastName:  c.User.LastName,
		Text:      text,
		CreatedAt: time.Now().UTC(),
		TempID:    in.TempID,
	})
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, c.h.cfg.PublishTimeout)
	defer cancel()
	return c.h.nats.PublishMessage(pubCtx, msg)
}

func (c *Client) reject(event string, cause error) {
	out, err := models.NewEnvelope(models.EventError, models.ErrorEvent{Event: event, Message: cause.Error()})
	if err != nil {
		return
	}
	select {
	case c.MessageChan <- out:
	case <-c.DoneChan:
	default:
		c.h.log.Warn("Dropping error event, queue full", "user_id", c.User.ID)
	}
}

// HandleWrite writes queued events and keeps the connection alive with
// pings.
func (c *Client) HandleWrite() {
	ticker := time.NewTicker(c.h.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.h.log.Debug("Writer closed", "user_id", c.User.ID)
	}()

	for {
		select {
		case env := <-c.MessageChan:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.h.cfg.WriteWait))
			if err := c.Conn.WriteJSON(env); err != nil {
				c.h.log.Warn("WebSocket write error", "user_id", c.User.ID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.h.cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.h.log.Warn("WebSocket ping error", "user_id", c.User.ID, "error", err)
				return
			}

		case <-c.DoneChan:
			return
		}
	}
}

// HandleWebSocket manages the lifecycle of an authenticated socket.
func (h *Handler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals(userIDKey).(string)
	u, err := h.store.UserByID(userID)
	if err != nil {
		h.log.Warn("Socket for unknown user", "user_id", userID, "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown user"))
		return
	}

	client := NewClient(conn, h, u.User)
	h.log.Info("Client connected", "user_id", userID)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.HandleWrite()
	}()

	client.HandleRead(ctx)

	client.leave()
	cancel()
	wg.Wait()
	h.log.Info("Client disconnected", "user_id", userID)
}

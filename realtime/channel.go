// Package realtime is the client side of the chat socket: it joins a
// (user, counterparty) pair, emits outbound messages and delivers inbound
// messageReceived events in arrival order.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/karthikraju391/codecrush/models"
)

const tokenCookie = "token"

var ErrClosed = errors.New("realtime channel closed")

type Config struct {
	URL        string
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	Buffer     int
}

func (c Config) withDefaults() Config {
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.Buffer <= 0 {
		c.Buffer = 64
	}
	return c
}

// SocketURL turns the REST base URL into the websocket URL of path.
func SocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return u.String(), nil
}

// Channel is one open chat socket. Close releases it; after Close no
// further events are delivered.
type Channel struct {
	conn    *websocket.Conn
	cfg     Config
	log     *slog.Logger
	inbound chan models.MessageReceived
	done    chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Dial opens the socket, authenticating with the session token cookie.
func Dial(ctx context.Context, cfg Config, token string, log *slog.Logger) (*Channel, error) {
	header := http.Header{}
	header.Set("Cookie", (&http.Cookie{Name: tokenCookie, Value: token}).String())

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", cfg.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	cfg = cfg.withDefaults()
	ch := &Channel{
		conn:    conn,
		cfg:     cfg,
		log:     log,
		inbound: make(chan models.MessageReceived, cfg.Buffer),
		done:    make(chan struct{}),
	}
	go ch.readPump()
	go ch.pingPump()
	log.Debug("Socket connected", "url", cfg.URL)
	return ch, nil
}

// Inbound yields messageReceived events in delivery order. It is closed
// when the socket stops reading.
func (c *Channel) Inbound() <-chan models.MessageReceived {
	return c.inbound
}

// Err returns the error that ended the read loop, if any.
func (c *Channel) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Join announces the pairing this socket serves.
func (c *Channel) Join(userID, targetUserID string) error {
	return c.emit(models.EventJoinChat, models.JoinChat{UserID: userID, TargetUserID: targetUserID})
}

// Send emits an outbound message. A nil error only means the frame was
// written; delivery is confirmed by the echo.
func (c *Channel) Send(msg models.SendMessage) error {
	return c.emit(models.EventSendMessage, msg)
}

func (c *Channel) emit(event string, payload any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	env, err := models.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Close is idempotent and safe from any goroutine.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.cfg.WriteWait))
		err = c.conn.Close()
		c.log.Debug("Socket closed", "url", c.cfg.URL)
	})
	return err
}

func (c *Channel) readPump() {
	defer close(c.inbound)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		var env models.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.finish(err)
			return
		}
		switch env.Event {
		case models.EventMessageReceived:
			var evt models.MessageReceived
			if err := env.Decode(&evt); err != nil {
				c.log.Warn("Dropping malformed event", "error", err)
				continue
			}
			if !c.deliver(evt) {
				return
			}
		case models.EventError:
			var evt models.ErrorEvent
			if err := env.Decode(&evt); err == nil {
				c.log.Error("Relay rejected event", "event", evt.Event, "message", evt.Message)
			}
		default:
			c.log.Debug("Ignoring event", "event", env.Event)
		}
	}
}

func (c *Channel) deliver(evt models.MessageReceived) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.inbound <- evt:
		return true
	case <-c.done:
		return false
	}
}

func (c *Channel) finish(err error) {
	select {
	case <-c.done:
		// Closed locally, the read error is expected.
		return
	default:
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		c.log.Error("Socket read error", "url", c.cfg.URL, "error", err)
	} else {
		c.log.Info("Socket closed by relay", "url", c.cfg.URL, "error", err)
	}
	c.errMu.Lock()
	c.err = err
	c.errMu.Unlock()
}

func (c *Channel) pingPump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.log.Warn("Socket ping failed", "error", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

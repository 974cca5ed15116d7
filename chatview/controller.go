// Package chatview drives one conversation at a time: it loads history,
// keeps a realtime channel joined to the active pair, sends optimistically
// and reconciles echoes. Every activation gets a new generation; results
// of older generations are discarded.
package chatview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/karthikraju391/codecrush/chat"
	"github.com/karthikraju391/codecrush/models"
	"github.com/karthikraju391/codecrush/session"
)

var (
	ErrNoCounterparty = errors.New("counterparty id is empty")
	ErrNoConversation = errors.New("no conversation is active")
)

type Options struct {
	Session        session.Session
	History        HistoryLoader
	Dialer         Dialer
	PendingTimeout time.Duration // zero disables the send timeout
	Now            func() time.Time
	Log            *slog.Logger
}

// View is a consistent copy of the controller state.
type View struct {
	CounterpartyID string
	Generation     uint64
	Messages       []chat.Message
	Loading        bool
	Connected      bool
	Err            error
}

type Controller struct {
	self           chat.Author
	history        HistoryLoader
	dialer         Dialer
	pendingTimeout time.Duration
	now            func() time.Time
	log            *slog.Logger
	updates        chan struct{}

	// sendMu keeps emits in the order messages were appended.
	sendMu sync.Mutex

	mu           sync.Mutex
	timeline     *chat.Timeline
	counterparty string
	gen          uint64
	loading      bool
	connected    bool
	lastErr      error
	channel      Channel
	cancel       context.CancelFunc
	timers       map[string]*time.Timer
	unsent       []string
}

func New(opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Controller{
		self:           opts.Session.Author(),
		history:        opts.History,
		dialer:         opts.Dialer,
		pendingTimeout: opts.PendingTimeout,
		now:            opts.Now,
		log:            opts.Log,
		updates:        make(chan struct{}, 1),
		timeline:       chat.NewTimeline(),
		timers:         map[string]*time.Timer{},
	}
}

// Self is the local author.
func (c *Controller) Self() chat.Author {
	return c.self
}

// Updates signals after every state change. Signals coalesce: a reader
// should take a Snapshot on each receive.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		CounterpartyID: c.counterparty,
		Generation:     c.gen,
		Messages:       c.timeline.Messages(),
		Loading:        c.loading,
		Connected:      c.connected,
		Err:            c.lastErr,
	}
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// Activate switches to counterpartyID. The previous channel is closed, the
// timeline cleared, and history loading and channel joining start in the
// background. It returns the new generation.
func (c *Controller) Activate(ctx context.Context, counterpartyID string) (uint64, error) {
	counterpartyID = strings.TrimSpace(counterpartyID)
	if counterpartyID == "" {
		return 0, ErrNoCounterparty
	}

	c.mu.Lock()
	c.releaseLocked()
	c.gen++
	gen := c.gen
	c.counterparty = counterpartyID
	c.timeline.Clear()
	c.loading = true
	c.lastErr = nil
	actx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	c.notify()

	c.log.Debug("Conversation activated", "counterparty", counterpartyID, "generation", gen)
	go c.loadHistory(actx, gen, counterpartyID)
	go c.connect(actx, gen, counterpartyID)
	return gen, nil
}

// Deactivate closes the conversation. It is safe to call repeatedly and
// from any exit path.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	c.releaseLocked()
	c.gen++
	c.counterparty = ""
	c.timeline.Clear()
	c.loading = false
	c.lastErr = nil
	c.mu.Unlock()
	c.notify()
}

// releaseLocked frees the resources of the active generation.
func (c *Controller) releaseLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.log.Debug("Closing channel", "error", err)
		}
		c.channel = nil
	}
	c.connected = false
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.unsent = nil
}

func (c *Controller) loadHistory(ctx context.Context, gen uint64, counterpartyID string) {
	msgs, err := c.history.History(ctx, counterpartyID)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.Debug("Discarding stale history", "counterparty", counterpartyID, "generation", gen)
		return
	}
	c.loading = false
	if err != nil {
		c.lastErr = fmt.Errorf("load history: %w", err)
		c.mu.Unlock()
		c.log.Error("Error fetching chat", "counterparty", counterpartyID, "error", err)
		c.notify()
		return
	}
	// Keep what arrived live while the request was in flight.
	c.timeline.Reload(msgs)
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) connect(ctx context.Context, gen uint64, counterpartyID string) {
	ch, err := c.dialer.Dial(ctx)
	if err != nil {
		c.mu.Lock()
		stale := gen != c.gen
		if !stale {
			c.lastErr = fmt.Errorf("open channel: %w", err)
		}
		c.mu.Unlock()
		if !stale {
			c.log.Error("Socket connection error", "counterparty", counterpartyID, "error", err)
			c.notify()
		}
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		_ = ch.Close()
		return
	}
	c.channel = ch
	c.mu.Unlock()

	if err := ch.Join(c.self.ID, counterpartyID); err != nil {
		c.log.Error("Join failed", "counterparty", counterpartyID, "error", err)
		c.mu.Lock()
		if gen == c.gen {
			c.lastErr = fmt.Errorf("join chat: %w", err)
			c.releaseChannelLocked(ch)
		}
		c.mu.Unlock()
		c.notify()
		return
	}

	// Flush sends queued while dialing before any newer send goes out.
	c.sendMu.Lock()
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.sendMu.Unlock()
		return
	}
	c.connected = true
	queued := c.unsent
	c.unsent = nil
	c.mu.Unlock()
	c.notify()
	for _, tempID := range queued {
		c.emitLocked(gen, tempID)
	}
	c.sendMu.Unlock()

	c.pump(gen, ch)
}

func (c *Controller) releaseChannelLocked(ch Channel) {
	if c.channel == ch {
		c.channel = nil
	}
	c.connected = false
	_ = ch.Close()
}

// pump applies inbound events in delivery order until the channel closes.
func (c *Controller) pump(gen uint64, ch Channel) {
	for evt := range ch.Inbound() {
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		outcome := c.timeline.ApplyInbound(toInbound(evt), c.self)
		c.mu.Unlock()
		if outcome == chat.OutcomeDropped {
			c.log.Debug("Dropped unmatched echo", "text_len", len(evt.Text))
			continue
		}
		c.notify()
	}

	c.mu.Lock()
	if gen == c.gen {
		c.connected = false
		if err := ch.Err(); err != nil {
			c.lastErr = fmt.Errorf("channel closed: %w", err)
		}
		if c.channel == ch {
			c.channel = nil
		}
	}
	c.mu.Unlock()
	c.notify()
}

func toInbound(evt models.MessageReceived) chat.Inbound {
	return chat.Inbound{
		ID: evt.ID,
		Sender: chat.Author{
			ID:        evt.UserID,
			FirstName: evt.FirstName,
			LastName:  evt.LastName,
		},
		Text:      evt.Text,
		CreatedAt: evt.CreatedAt,
		TempID:    evt.TempID,
	}
}

// Send appends text as a pending message and emits it. Blank text is
// rejected with chat.ErrEmptyMessage and changes nothing. The message is
// marked failed if the emit fails or no echo arrives within the pending
// timeout.
func (c *Controller) Send(text string) error {
	c.mu.Lock()
	if c.counterparty == "" {
		c.mu.Unlock()
		return ErrNoConversation
	}
	msg, err := c.timeline.AppendPending(c.self, text, c.now())
	if err != nil {
		c.mu.Unlock()
		return err
	}
	gen := c.gen
	c.armLocked(gen, msg.TempID)
	ready := c.connected
	if !ready {
		c.unsent = append(c.unsent, msg.TempID)
	}
	c.mu.Unlock()
	c.notify()

	if ready {
		c.emit(gen, msg.TempID)
	}
	return nil
}

// Retry re-emits a failed message.
func (c *Controller) Retry(tempID string) error {
	c.mu.Lock()
	if c.counterparty == "" {
		c.mu.Unlock()
		return ErrNoConversation
	}
	if _, err := c.timeline.MarkRetrying(tempID, c.now()); err != nil {
		c.mu.Unlock()
		return err
	}
	gen := c.gen
	c.armLocked(gen, tempID)
	ready := c.connected
	if !ready {
		c.unsent = append(c.unsent, tempID)
	}
	c.mu.Unlock()
	c.notify()

	if ready {
		c.emit(gen, tempID)
	}
	return nil
}

// emit writes the message identified by tempID to the active channel.
func (c *Controller) emit(gen uint64, tempID string) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.emitLocked(gen, tempID)
}

// emitLocked requires sendMu.
func (c *Controller) emitLocked(gen uint64, tempID string) {
	c.mu.Lock()
	msg, ok := c.timeline.Find(tempID)
	ch := c.channel
	counterparty := c.counterparty
	if gen != c.gen || !ok || !msg.Pending() || ch == nil {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	err := ch.Send(models.SendMessage{
		FirstName:    c.self.FirstName,
		LastName:     c.self.LastName,
		UserID:       c.self.ID,
		TargetUserID: counterparty,
		Text:         msg.Text,
		TempID:       tempID,
	})
	if err == nil {
		return
	}

	c.log.Error("Send failed", "counterparty", counterparty, "error", err)
	c.mu.Lock()
	if gen == c.gen {
		c.timeline.MarkFailed(tempID)
		c.stopTimerLocked(tempID)
		c.lastErr = fmt.Errorf("send message: %w", err)
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) armLocked(gen uint64, tempID string) {
	if c.pendingTimeout <= 0 {
		return
	}
	c.stopTimerLocked(tempID)
	var timer *time.Timer
	timer = time.AfterFunc(c.pendingTimeout, func() {
		c.mu.Lock()
		if gen != c.gen || c.timers[tempID] != timer {
			c.mu.Unlock()
			return
		}
		delete(c.timers, tempID)
		failed := c.timeline.MarkFailed(tempID)
		c.mu.Unlock()
		if failed {
			c.log.Warn("Message not confirmed in time", "temp_id", tempID, "timeout", c.pendingTimeout)
			c.notify()
		}
	})
	c.timers[tempID] = timer
}

func (c *Controller) stopTimerLocked(tempID string) {
	if t, ok := c.timers[tempID]; ok {
		t.Stop()
		delete(c.timers, tempID)
	}
}

package chatview_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/karthikraju391/codecrush/chat"
	"github.com/karthikraju391/codecrush/chatview"
	"github.com/karthikraju391/codecrush/chatview/mocks"
	"github.com/karthikraju391/codecrush/models"
	"github.com/karthikraju391/codecrush/session"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var (
	ada = models.User{Contact: models.Contact{ID: "u1", FirstName: "Ada", LastName: "Lovelace"}}
	bea = chat.Author{ID: "u2", FirstName: "Bea", LastName: "Smith"}
)

type fixture struct {
	history *mocks.MockHistoryLoader
	dialer  *mocks.MockDialer
	ctl     *chatview.Controller
	ctrl    *gomock.Controller
}

func newFixture(t *testing.T, pendingTimeout time.Duration) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		history: mocks.NewMockHistoryLoader(ctrl),
		dialer:  mocks.NewMockDialer(ctrl),
		ctrl:    ctrl,
	}
	f.ctl = chatview.New(chatview.Options{
		Session:        session.Session{User: ada, Token: "tok"},
		History:        f.history,
		Dialer:         f.dialer,
		PendingTimeout: pendingTimeout,
		Log:            logs.GetLoggerFromLevel(slog.LevelDebug),
	})
	t.Cleanup(f.ctl.Deactivate)
	return f
}

// openChannel expects one dial that yields a joined channel, closed at
// least once before the test ends. Sent messages are forwarded on the
// returned sent channel.
func (f *fixture) openChannel(counterpartyID string) (chan models.MessageReceived, chan models.SendMessage) {
	ch := mocks.NewMockChannel(f.ctrl)
	inbound := make(chan models.MessageReceived, 8)
	sent := make(chan models.SendMessage, 8)
	f.dialer.EXPECT().Dial(gomock.Any()).Return(ch, nil)
	ch.EXPECT().Join(ada.ID, counterpartyID).Return(nil)
	ch.EXPECT().Inbound().Return(inbound).AnyTimes()
	ch.EXPECT().Err().Return(nil).AnyTimes()
	ch.EXPECT().Close().Return(nil).MinTimes(1)
	ch.EXPECT().Send(gomock.Any()).DoAndReturn(func(m models.SendMessage) error {
		sent <- m
		return nil
	}).AnyTimes()
	return inbound, sent
}

func (f *fixture) waitReady(t *testing.T) {
	require.Eventually(t, func() bool {
		v := f.ctl.Snapshot()
		return v.Connected && !v.Loading
	}, waitFor, tick)
}

func (f *fixture) waitMessages(t *testing.T, cond func([]chat.Message) bool) {
	require.Eventually(t, func() bool {
		return cond(f.ctl.Snapshot().Messages)
	}, waitFor, tick)
}

func receive(t *testing.T, sent <-chan models.SendMessage) models.SendMessage {
	t.Helper()
	select {
	case m := <-sent:
		return m
	case <-time.After(waitFor):
		t.Fatal("nothing was sent")
		return models.SendMessage{}
	}
}

func TestController_EndToEndOptimisticSend(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 0)
	f.history.EXPECT().History(gomock.Any(), "u2").Return([]chat.Message{}, nil)
	inbound, sent := f.openChannel("u2")

	// Given the conversation with u2 is active and empty
	_, err := f.ctl.Activate(context.Background(), "u2")
	req.NoError(err)
	f.waitReady(t)
	req.Empty(f.ctl.Snapshot().Messages)

	// When the user sends "hi"
	req.NoError(f.ctl.Send("hi"))

	// Then it is visible at once as pending
	msgs := f.ctl.Snapshot().Messages
	req.Len(msgs, 1)
	req.Equal("hi", msgs[0].Text)
	req.True(msgs[0].Pending())

	// And it went out with the pairing and its temp id
	out := receive(t, sent)
	req.Equal(models.SendMessage{
		FirstName: "Ada", LastName: "Lovelace", UserID: "u1", TargetUserID: "u2",
		Text: "hi", TempID: msgs[0].TempID,
	}, out)

	// When the self-echo arrives
	serverAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	inbound <- models.MessageReceived{UserID: "u1", FirstName: "Ada", Text: "hi", CreatedAt: serverAt}

	// Then the pending message is confirmed in place
	f.waitMessages(t, func(m []chat.Message) bool { return len(m) == 1 && !m[0].Pending() })
	got := f.ctl.Snapshot().Messages[0]
	req.Equal(chat.StatusConfirmed, got.Status)
	req.Equal(serverAt, got.CreatedAt)
	req.Empty(got.TempID)
}

func TestController_BlankSendIsNoop(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 0)
	f.history.EXPECT().History(gomock.Any(), "u2").Return([]chat.Message{{Sender: bea, Text: "yo"}}, nil)
	f.openChannel("u2")

	_, err := f.ctl.Activate(context.Background(), "u2")
	req.NoError(err)
	f.waitReady(t)

	req.ErrorIs(f.ctl.Send("   \t"), chat.ErrEmptyMessage)
	req.Len(f.ctl.Snapshot().Messages, 1)
}

func TestController_SendWithoutConversation(t *testing.T) {
	f := newFixture(t, 0)
	require.ErrorIs(t, f.ctl.Send("hi"), chatview.ErrNoConversation)
	require.ErrorIs(t, f.ctl.Retry("x"), chatview.ErrNoConversation)
}

func TestController_ActivateRejectsEmptyID(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.ctl.Activate(context.Background(), " ")
	require.ErrorIs(t, err, chatview.ErrNoCounterparty)
}

func TestController_RemoteMessageAppends(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 0)
	f.history.EXPECT().History(gomock.Any(), "u2").Return([]chat.Message{{Sender: bea, Text: "old"}}, nil)
	inbound, _ := f.openChannel("u2")

	_, err := f.ctl.Activate(context.Background(), "u2")
	req.NoError(err)
	f.waitReady(t)

	inbound <- models.MessageReceived{UserID: "u2", FirstName: "Bea", LastName: "Smith", Text: "new"}

	f.waitMessages(t, func(m []chat.Message) bool { return len(m) == 2 })
	last := f.ctl.Snapshot().Messages[1]
	req.Equal("new", last.Text)
	req.Equal(bea, last.Sender)
	req.False(last.Pending())
}

func TestController_SwitchDiscardsStaleResults(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 0)

	// Given the history of u2 is slow
	release := make(chan struct{})
	f.history.EXPECT().History(gomock.Any(), "u2").DoAndReturn(
		func(ctx context.Context, _ string) ([]chat.Message, error) {
			<-release
			return []chat.Message{{Sender: bea, Text: "from u2"}}, nil
		})
	firstInbound, _ := f.openChannel("u2")
	_, err := f.ctl.Activate(context.Background(), "u2")
	req.NoError(err)
	require.Eventually(t, func() bool { return f.ctl.Snapshot().Connected }, waitFor, tick)

	// When the user switches to u3
	f.history.EXPECT().History(gomock.Any(), "u3").Return([]chat.Message{}, nil)
	f.openChannel("u3")
	gen, err := f.ctl.Activate(context.Background(), "u3")
	req.NoError(err)
	f.waitReady(t)

	// And the old history and an old inbound event land afterwards
	close(release)
	firstInbound <- models.MessageReceived{UserID: "u2", Text: "late"}
	time.Sleep(50 * time.Millisecond)

	// Then the u3 timeline is untouched
	v := f.ctl.Snapshot()
	req.Equal("u3", v.CounterpartyID)
	req.Equal(gen, v.Generation)
	req.Empty(v.Messages)
}

func TestController_LiveMessagesSurviveSlowHistory(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 0)
	release := make(chan struct{})
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	f.history.EXPECT().History(gomock.Any(), "u2").DoAndReturn(
		func(context.Context, string) ([]chat.Message, error) {
			<-release
			return []chat.Message{
				{Sender: bea, Text: "stored", CreatedAt: at},
				{Sender: bea, Text: "both", CreatedAt: at.Add(time.Minute)},
			}, nil
		})
	inbound, _ := f.openChannel("u2")

	_, err := f.ctl.Activate(context.Background(), "u2")
	req.NoError(err)
	require.Eventually(t, func() bool { return f.ctl.Snapshot().Connected }, waitFor, tick)

	// Given two events arrive before history: one the server already stored
	inbound <- models.MessageReceived{UserID: "u2", FirstName: "Bea", LastName: "Smith", Text: "both", CreatedAt: at.Add(time.Minute)}
	inbound <- models.MessageReceived{UserID: "u2", FirstName: "Bea", LastName: "Smith", Text: "fresh", CreatedAt: at.Add(2 * time.Minute)}
	f.waitMessages(t, func(m []chat.Message) bool { return len(m) == 2 })

	// When history completes
	close(release)

	// Then nothing is lost or duplicated
	f.waitMessages(t, func(m []chat.Message) bool { return len(m) == 3 })
	texts := []string{}
	for _, m := range f.ctl.Snapshot().Messages {
		texts = append(texts, m.Text)
	}
	req.Equal([]string{"stored", "both", "fresh"}, texts)
}

func TestController_HistoryHoldingPendingSendShowsItOnce(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 0)
	self := f.ctl.Self()
	release := make(chan struct{})
	storedAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	var stored chat.Message
	f.history.EXPECT().History(gomock.Any(), "u2").DoAndReturn(
		func(context.Context, string) ([]chat.Message, error) {
			<-release
			return []chat.Message{stored}, nil
		})
	inbound, sent := f.openChannel("u2")

	_, err := f.ctl.Activate(context.Background(), "u2")
	req.NoError(err)
	require.Eventually(t, func() bool { return f.ctl.Snapshot().Connected }, waitFor, tick)

	// Given a send the relay stores before history is read
	req.NoError(f.ctl.Send("hi"))
	out := receive(t, sent)
	stored = chat.Message{ID: "m1", Sender: self, Text: "hi", CreatedAt: storedAt, TempID: out.TempID}

	// When history completes before the echo
	close(release)
	require.Eventually(t, func() bool { return !f.ctl.Snapshot().Loading }, waitFor, tick)

	// And the echo follows, then a reply
	inbound <- models.MessageReceived{ID: "m1", UserID: ada.ID, FirstName: "Ada", Text: "hi", CreatedAt: storedAt, TempID: out.TempID}
	inbound <- models.MessageReceived{ID: "m2", UserID: "u2", FirstName: "Bea", Text: "hey", CreatedAt: storedAt.Add(time.Second)}
	f.waitMessages(t, func(m []chat.Message) bool { return len(m) == 2 })

	// Then the message shows once, confirmed
	msgs := f.ctl.Snapshot().Messages
	req.Equal("hi", msgs[0].Text)
	req.Equal(chat.StatusConfirmed, msgs[0].Status)
	req.Equal("m1", msgs[0].ID)
	req.Equal("hey", msgs[1].Text)
}

func TestController_HistoryFailureLeavesTimelineEmpty(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 0)
	f.history.EXPECT().History(gomock.Any(), "u2").Return(nil, errors.New("boom"))
	f.openChannel("u2")

	_, err := f.ctl.Activate(context.Background(), "u2")
	req.NoError(err)

	require.Eventually(t, func() bool {
		v := f.ctl.Snapshot()
		return !v.Loading && v.Err != nil && v.Connected
	}, waitFor, tick)
	v := f.ctl.Snapshot()
	req.Empty(v.Messages)
	req.ErrorContains(v.Err, "boom")
}

func TestController_PendingTimesOutAndRetries(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 50*time.Millisecond)
	f.history.EXPECT().History(gomock.Any(), "u2").Return(nil, nil)
	inbound, sent := f.openChannel("u2")

	_, err := f.ctl.Activate(context.Background(), "u2")
	req.NoError(err)
	f.waitReady(t)

	// Given a send that never gets its echo
	req.NoError(f.ctl.Send("anyone?"))
	first := receive(t, sent)

	// Then it fails after the timeout
	f.waitMessages(t, func(m []chat.Message) bool { return len(m) == 1 && m[0].Failed() })

	// When the user retries
	req.NoError(f.ctl.Retry(first.TempID))
	req.True(f.ctl.Snapshot().Messages[0].Pending())
	second := receive(t, sent)
	req.Equal(first.TempID, second.TempID)

	// And the echo arrives in time
	inbound <- models.MessageReceived{UserID: "u1", Text: "anyone?", TempID: first.TempID}
	f.waitMessages(t, func(m []chat.Message) bool { return m[0].Status == chat.StatusConfirmed })

	// Then the old timer does not demote it later
	time.Sleep(100 * time.Millisecond)
	req.Equal(chat.StatusConfirmed, f.ctl.Snapshot().Messages[0].Status)
}

func TestController_EmitErrorMarksFailed(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 0)
	f.history.EXPECT().History(gomock.Any(), "u2").Return(nil, nil)
	ch := mocks.NewMockChannel(f.ctrl)
	f.dialer.EXPECT().Dial(gomock.Any()).Return(ch, nil)
	ch.EXPECT().Join("u1", "u2").Return(nil)
	ch.EXPECT().Inbound().Return(make(chan models.MessageReceived)).AnyTimes()
	ch.EXPECT().Close().Return(nil).AnyTimes()
	ch.EXPECT().Send(gomock.Any()).Return(errors.New("broken pipe"))

	_, err := f.ctl.Activate(context.Background(), "u2")
	req.NoError(err)
	f.waitReady(t)

	req.NoError(f.ctl.Send("hi"))

	f.waitMessages(t, func(m []chat.Message) bool { return len(m) == 1 && m[0].Failed() })
	req.ErrorContains(f.ctl.Snapshot().Err, "broken pipe")
}

func TestController_SendBeforeJoinIsFlushed(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 0)
	f.history.EXPECT().History(gomock.Any(), "u2").Return(nil, nil)
	ch := mocks.NewMockChannel(f.ctrl)
	gate := make(chan struct{})
	sent := make(chan models.SendMessage, 2)
	f.dialer.EXPECT().Dial(gomock.Any()).DoAndReturn(func(context.Context) (chatview.Channel, error) {
		<-gate
		return ch, nil
	})
	ch.EXPECT().Join("u1", "u2").Return(nil)
	ch.EXPECT().Inbound().Return(make(chan models.MessageReceived)).AnyTimes()
	ch.EXPECT().Close().Return(nil).AnyTimes()
	ch.EXPECT().Send(gomock.Any()).DoAndReturn(func(m models.SendMessage) error {
		sent <- m
		return nil
	}).Times(2)

	_, err := f.ctl.Activate(context.Background(), "u2")
	req.NoError(err)

	// Given two sends while the socket is still dialing
	req.NoError(f.ctl.Send("one"))
	req.NoError(f.ctl.Send("two"))
	req.Len(f.ctl.Snapshot().Messages, 2)

	// When the socket opens
	close(gate)

	// Then both go out in order
	req.Equal("one", receive(t, sent).Text)
	req.Equal("two", receive(t, sent).Text)
}

func TestController_DialFailure(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 30*time.Millisecond)
	f.history.EXPECT().History(gomock.Any(), "u2").Return(nil, nil)
	f.dialer.EXPECT().Dial(gomock.Any()).Return(nil, errors.New("connection refused"))

	_, err := f.ctl.Activate(context.Background(), "u2")
	req.NoError(err)
	require.Eventually(t, func() bool { return f.ctl.Snapshot().Err != nil }, waitFor, tick)
	req.False(f.ctl.Snapshot().Connected)

	// A send still shows up, then fails since nothing can deliver it
	req.NoError(f.ctl.Send("hello?"))
	f.waitMessages(t, func(m []chat.Message) bool { return len(m) == 1 && m[0].Failed() })
}

func TestController_DeactivateClosesChannel(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 0)
	f.history.EXPECT().History(gomock.Any(), "u2").Return(nil, nil)
	inbound, _ := f.openChannel("u2")

	_, err := f.ctl.Activate(context.Background(), "u2")
	req.NoError(err)
	f.waitReady(t)

	f.ctl.Deactivate()
	inbound <- models.MessageReceived{UserID: "u2", Text: "after close"}
	time.Sleep(50 * time.Millisecond)

	v := f.ctl.Snapshot()
	req.Empty(v.CounterpartyID)
	req.Empty(v.Messages)
	req.False(v.Connected)
	req.ErrorIs(f.ctl.Send("hi"), chatview.ErrNoConversation)
}

func TestController_UpdatesSignalMutations(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 0)
	f.history.EXPECT().History(gomock.Any(), "u2").Return(nil, nil)
	f.openChannel("u2")

	_, err := f.ctl.Activate(context.Background(), "u2")
	req.NoError(err)
	f.waitReady(t)
	// Drain whatever is buffered
	select {
	case <-f.ctl.Updates():
	default:
	}

	req.NoError(f.ctl.Send("ping"))

	select {
	case <-f.ctl.Updates():
	case <-time.After(waitFor):
		req.Fail("no update after send")
	}
}

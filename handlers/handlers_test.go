package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/karthikraju391/codecrush/api"
	"github.com/karthikraju391/codecrush/auth"
	"github.com/karthikraju391/codecrush/config"
	"github.com/karthikraju391/codecrush/models"
	"github.com/karthikraju391/codecrush/nats_service"
	"github.com/karthikraju391/codecrush/realtime"
	"github.com/karthikraju391/codecrush/store"
	"github.com/mama165/sdk-go/logs"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/require"
)

const password = "Engine#1843"

func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}
	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

// startRelay serves the full relay on a loopback port and returns its base URL.
func startRelay(t *testing.T) string {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	cfg := config.RelayConfig{
		NatsURL:        startTestNATSServer(t).ClientURL(),
		StreamName:     "TEST_CHAT",
		SubjectPrefix:  "chat",
		StreamMaxAge:   time.Hour,
		PongWait:       time.Minute,
		PingPeriod:     50 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
		PublishTimeout: 5 * time.Second,
		JWTSecret:      "test-secret",
		TokenDuration:  time.Hour,
		HistoryLimit:   100,
	}

	st, err := store.Open(t.TempDir(), log)
	req.NoError(err)
	natsSvc, err := nats_service.NewNatsService(context.Background(), cfg, log)
	req.NoError(err)
	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.TokenDuration)
	req.NoError(err)

	app := NewApp(New(cfg, st, natsSvc, tokens, log))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	go func() { _ = app.Listener(ln) }()

	t.Cleanup(func() {
		_ = app.Shutdown()
		natsSvc.Close()
		_ = st.Close()
	})
	return "http://" + ln.Addr().String()
}

func signup(t *testing.T, baseURL, first, email string) (*api.Client, models.User) {
	t.Helper()
	client := api.New(baseURL, 5*time.Second, logs.GetLoggerFromLevel(slog.LevelDebug))
	user, token, err := client.Signup(context.Background(), api.SignupRequest{
		FirstName: first, LastName: "Test", EmailID: email, Password: password,
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotEmpty(t, user.ID)
	return client, user
}

func connect(t *testing.T, from *api.Client, to *api.Client, toUser models.User) {
	t.Helper()
	ctx := context.Background()
	_, err := from.SendRequest(ctx, models.StatusInterested, toUser.ID)
	require.NoError(t, err)
	received, err := to.ReceivedRequests(ctx)
	require.NoError(t, err)
	require.Len(t, received, 1)
	_, err = to.ReviewRequest(ctx, models.StatusAccepted, received[0].ID)
	require.NoError(t, err)
}

func dial(t *testing.T, baseURL string, client *api.Client) *realtime.Channel {
	t.Helper()
	url, err := realtime.SocketURL(baseURL, "/socket")
	require.NoError(t, err)
	ch, err := realtime.Dial(context.Background(), realtime.Config{URL: url}, client.Token(), logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func next(t *testing.T, ch *realtime.Channel) models.MessageReceived {
	t.Helper()
	select {
	case evt, ok := <-ch.Inbound():
		require.True(t, ok, "channel closed: %v", ch.Err())
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
		return models.MessageReceived{}
	}
}

func TestRelay_AuthFlow(t *testing.T) {
	req := require.New(t)
	baseURL := startRelay(t)
	ctx := context.Background()
	client, ada := signup(t, baseURL, "Ada", "ada@example.com")

	profile, err := client.Profile(ctx)
	req.NoError(err)
	req.Equal(ada, profile)

	// Duplicate email
	_, _, err = api.New(baseURL, time.Second, logs.GetLoggerFromLevel(slog.LevelDebug)).
		Signup(ctx, api.SignupRequest{FirstName: "Ada", EmailID: "ADA@example.com", Password: password})
	var se *api.StatusError
	req.True(errors.As(err, &se))
	req.Equal(409, se.Code)

	// Wrong password
	other := api.New(baseURL, time.Second, logs.GetLoggerFromLevel(slog.LevelDebug))
	_, _, err = other.Login(ctx, "ada@example.com", "nope")
	req.ErrorIs(err, api.ErrUnauthorized)

	// Right password
	user, token, err := other.Login(ctx, "ada@example.com", password)
	req.NoError(err)
	req.NotEmpty(token)
	req.Equal(ada.ID, user.ID)

	// No token
	_, err = api.New(baseURL, time.Second, logs.GetLoggerFromLevel(slog.LevelDebug)).Profile(ctx)
	req.ErrorIs(err, api.ErrUnauthorized)

	// Weak password
	_, _, err = other.Signup(ctx, api.SignupRequest{FirstName: "Bea", EmailID: "bea@example.com", Password: "password"})
	req.True(errors.As(err, &se))
	req.Equal(400, se.Code)
}

func TestRelay_ConnectionsAndChat(t *testing.T) {
	req := require.New(t)
	baseURL := startRelay(t)
	ctx := context.Background()
	adaClient, ada := signup(t, baseURL, "Ada", "ada@example.com")
	beaClient, bea := signup(t, baseURL, "Bea", "bea@example.com")
	cyClient, _ := signup(t, baseURL, "Cy", "cy@example.com")

	// Given Ada and Bea are connected
	connect(t, adaClient, beaClient, bea)
	contacts, err := adaClient.Connections(ctx)
	req.NoError(err)
	req.Equal([]models.Contact{bea.Contact}, contacts)
	history, err := adaClient.History(ctx, bea.ID)
	req.NoError(err)
	req.Empty(history)

	// And Bea's socket has joined and proven its subscription
	beaCh := dial(t, baseURL, beaClient)
	req.NoError(beaCh.Join(bea.ID, ada.ID))
	req.NoError(beaCh.Send(models.SendMessage{UserID: bea.ID, TargetUserID: ada.ID, Text: "ready", TempID: "b-1"}))
	echo := next(t, beaCh)
	req.Equal("ready", echo.Text)
	req.Equal("b-1", echo.TempID)

	// When Ada joins and sends padded text
	adaCh := dial(t, baseURL, adaClient)
	req.NoError(adaCh.Join(ada.ID, bea.ID))
	req.NoError(adaCh.Send(models.SendMessage{FirstName: "Ada", UserID: ada.ID, TargetUserID: bea.ID, Text: "  hi \n", TempID: "a-1"}))

	// Then Ada gets her trimmed echo with the temp id, an id and a server timestamp
	mine := next(t, adaCh)
	req.Equal(ada.ID, mine.UserID)
	req.Equal("hi", mine.Text)
	req.NotEmpty(mine.ID)
	req.Equal("a-1", mine.TempID)
	req.False(mine.CreatedAt.IsZero())

	// And Bea receives it too
	theirs := next(t, beaCh)
	req.Equal(ada.ID, theirs.UserID)
	req.Equal("Ada", theirs.FirstName)
	req.Equal("hi", theirs.Text)

	// And both messages are in the history, oldest first
	history, err = beaClient.History(ctx, ada.ID)
	req.NoError(err)
	req.Len(history, 2)
	req.Equal("ready", history[0].Text)
	req.Equal(bea.ID, history[0].Sender.ID)
	req.Equal("hi", history[1].Text)
	req.Equal(ada.ID, history[1].Sender.ID)
	req.Equal(mine.ID, history[1].ID)
	req.Equal("a-1", history[1].TempID)

	// And a stranger can neither read nor join
	_, err = cyClient.History(ctx, ada.ID)
	var se *api.StatusError
	req.True(errors.As(err, &se))
	req.Equal(403, se.Code)

	cyCh := dial(t, baseURL, cyClient)
	req.NoError(cyCh.Join("ignored", ada.ID))
	req.NoError(cyCh.Send(models.SendMessage{TargetUserID: ada.ID, Text: "sneaky"}))
	select {
	case evt := <-cyCh.Inbound():
		req.Failf("stranger received an event", "%+v", evt)
	case <-time.After(300 * time.Millisecond):
	}
	history, err = adaClient.History(ctx, bea.ID)
	req.NoError(err)
	req.Len(history, 2)
}

func TestRelay_SocketRequiresToken(t *testing.T) {
	baseURL := startRelay(t)
	url, err := realtime.SocketURL(baseURL, "/socket")
	require.NoError(t, err)
	_, err = realtime.Dial(context.Background(), realtime.Config{URL: url}, "bogus", logs.GetLoggerFromLevel(slog.LevelDebug))
	require.Error(t, err)
}

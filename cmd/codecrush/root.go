package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/karthikraju391/codecrush/api"
	"github.com/karthikraju391/codecrush/config"
	"github.com/karthikraju391/codecrush/session"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// app holds what every command needs once the environment is loaded.
type app struct {
	cfg      config.ClientConfig
	log      *slog.Logger
	sessions *session.Store
	in       *bufio.Reader
	out      io.Writer
	// ttyFd is the descriptor of an interactive stdin, -1 otherwise.
	ttyFd int
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: bufio.NewReader(in), out: out, ttyFd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		a.ttyFd = int(f.Fd())
	}
	root := &cobra.Command{
		Use:           "codecrush",
		Short:         "Chat with your CodeCrush connections from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.AddCommand(
		a.loginCmd(),
		a.signupCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.connectionsCmd(),
		a.requestsCmd(),
		a.chatCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logs.GetLoggerFromString(cfg.LogLevel)
	a.sessions, err = session.NewStore(cfg.SessionFile)
	return err
}

func (a *app) client(token string, log *slog.Logger) *api.Client {
	return api.New(a.cfg.BaseURL, a.cfg.HTTPTimeout, log, api.WithToken(token))
}

// authed loads the stored session and a client that sends its token.
func (a *app) authed() (session.Session, *api.Client, error) {
	sess, err := a.sessions.Load()
	if errors.Is(err, session.ErrNoSession) {
		return session.Session{}, nil, fmt.Errorf("%w: run `codecrush login` first", err)
	}
	if err != nil {
		return session.Session{}, nil, err
	}
	return sess, a.client(sess.Token, a.log), nil
}

// expired drops the stored session when the relay rejects its token.
func (a *app) expired(err error) error {
	if !errors.Is(err, api.ErrUnauthorized) {
		return err
	}
	if clearErr := a.sessions.Clear(); clearErr != nil {
		a.log.Warn("Clearing session", "error", clearErr)
	}
	return fmt.Errorf("session expired, log in again: %w", err)
}

// prompt asks for value on the input stream unless a flag already set it.
func (a *app) prompt(label string, value *string) error {
	if strings.TrimSpace(*value) != "" {
		return nil
	}
	fmt.Fprintf(a.out, "%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	*value = strings.TrimSpace(line)
	if *value == "" {
		return fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return nil
}

// promptSecret is prompt without echo when stdin is a terminal.
func (a *app) promptSecret(label string, value *string) error {
	if a.ttyFd < 0 {
		return a.prompt(label, value)
	}
	if strings.TrimSpace(*value) != "" {
		return nil
	}
	fmt.Fprintf(a.out, "%s: ", label)
	secret, err := term.ReadPassword(a.ttyFd)
	fmt.Fprintln(a.out)
	if err != nil {
		return fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	*value = strings.TrimSpace(string(secret))
	if *value == "" {
		return fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return nil
}

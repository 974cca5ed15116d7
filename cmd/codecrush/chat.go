package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/karthikraju391/codecrush/chatview"
	"github.com/karthikraju391/codecrush/realtime"
	"github.com/karthikraju391/codecrush/session"
	"github.com/karthikraju391/codecrush/tui"
	"github.com/spf13/cobra"
)

var errNotConnection = errors.New("not one of your connections")

func (a *app) chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [userId]",
		Short: "Open the chat screen, optionally with a connection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, client, err := a.authed()
			if err != nil {
				return err
			}
			contacts, err := client.Connections(cmd.Context())
			if err != nil {
				return a.expired(err)
			}
			dir := session.NewDirectory()
			dir.Replace(contacts)

			var initial string
			if len(args) == 1 {
				if initial, err = resolveCounterparty(dir, args[0]); err != nil {
					return err
				}
			}

			// The screen owns the terminal, so logs go to a file.
			logFile, err := tea.LogToFile(a.cfg.LogFile, "codecrush")
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer logFile.Close()
			log := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: levelOf(a.log)}))

			socketURL, err := realtime.SocketURL(a.cfg.BaseURL, a.cfg.SocketPath)
			if err != nil {
				return err
			}
			rtCfg := realtime.Config{
				URL:        socketURL,
				PingPeriod: a.cfg.PingPeriod,
				PongWait:   a.cfg.PongWait,
				WriteWait:  a.cfg.WriteWait,
			}

			ctl := chatview.New(chatview.Options{
				Session: sess,
				History: a.client(sess.Token, log),
				Dialer: chatview.DialFunc(func(ctx context.Context) (chatview.Channel, error) {
					ch, err := realtime.Dial(ctx, rtCfg, sess.Token, log)
					if err != nil {
						return nil, err
					}
					return ch, nil
				}),
				PendingTimeout: a.cfg.PendingTimeout,
				Log:            log,
			})
			return tui.Run(tui.Options{
				Conversation: ctl,
				Contacts:     dir,
				Initial:      initial,
				Log:          log,
			})
		},
	}
}

// resolveCounterparty accepts a connection's id, or its full name when it
// is unambiguous.
func resolveCounterparty(dir *session.Directory, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if _, ok := dir.Lookup(arg); ok {
		return arg, nil
	}
	var match string
	for _, c := range dir.All() {
		if strings.EqualFold(c.FullName(), arg) {
			if match != "" {
				return "", fmt.Errorf("%q matches several connections, use the id", arg)
			}
			match = c.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%q: %w", arg, errNotConnection)
	}
	return match, nil
}

// levelOf returns the lowest level log accepts, so the file log keeps the
// level of the configured logger.
func levelOf(log *slog.Logger) slog.Level {
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn} {
		if log.Enabled(context.Background(), level) {
			return level
		}
	}
	return slog.LevelError
}

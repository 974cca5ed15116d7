package main

import (
	"fmt"

	"github.com/karthikraju391/codecrush/api"
	"github.com/karthikraju391/codecrush/models"
	"github.com/karthikraju391/codecrush/session"
	"github.com/spf13/cobra"
)

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.prompt("Email", &email); err != nil {
				return err
			}
			if err := a.promptSecret("Password", &password); err != nil {
				return err
			}
			user, token, err := a.client("", a.log).Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			return a.remember(user, token)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	return cmd
}

func (a *app) signupCmd() *cobra.Command {
	var in api.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, f := range []struct {
				label string
				value *string
			}{
				{"First name", &in.FirstName},
				{"Email", &in.EmailID},
			} {
				if err := a.prompt(f.label, f.value); err != nil {
					return err
				}
			}
			if err := a.promptSecret("Password", &in.Password); err != nil {
				return err
			}
			user, token, err := a.client("", a.log).Signup(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("signup failed: %w", err)
			}
			return a.remember(user, token)
		},
	}
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&in.EmailID, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "account password (prompted when empty)")
	return cmd
}

func (a *app) remember(user models.User, token string) error {
	if err := a.sessions.Save(session.Session{User: user, Token: token}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", user.FullName())
	return nil
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, client, err := a.authed()
			if err != nil {
				return err
			}
			if err := client.Logout(cmd.Context()); err != nil {
				a.log.Warn("Relay logout failed", "error", err)
			}
			if err := a.sessions.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, client, err := a.authed()
			if err != nil {
				return err
			}
			user, err := client.Profile(cmd.Context())
			if err != nil {
				return a.expired(err)
			}
			fmt.Fprintf(a.out, "%s <%s> (%s)\n", user.FullName(), user.EmailID, user.ID)
			return nil
		},
	}
}

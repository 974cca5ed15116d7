// Package session carries the authenticated user and the contact directory
// shared by the chat view and the connections listing.
package session

import (
	"errors"

	"github.com/karthikraju391/codecrush/chat"
	"github.com/karthikraju391/codecrush/models"
)

var ErrNoSession = errors.New("not logged in")

// Session is the authenticated user plus the token the relay issued.
type Session struct {
	User  models.User `yaml:"user"`
	Token string      `yaml:"token"`
}

func (s Session) Valid() bool {
	return s.Token != "" && s.User.ID != ""
}

// Author returns the user as a message author.
func (s Session) Author() chat.Author {
	return chat.Author{
		ID:        s.User.ID,
		FirstName: s.User.FirstName,
		LastName:  s.User.LastName,
	}
}

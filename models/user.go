package models

import "strings"

// Contact is the public profile of a user, as listed by GET /user/connections.
type Contact struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	PhotoURL  string `json:"photoUrl,omitempty"`
	Age       int    `json:"age,omitempty"`
	Gender    string `json:"gender,omitempty"`
	About     string `json:"about,omitempty"`
}

// FullName joins first and last name, skipping empty parts.
func (c Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// User is the authenticated account behind a session.
type User struct {
	Contact
	EmailID string `json:"emailId"`
}

// Request statuses. A sender marks a profile interested or ignored; the
// receiver reviews an interested request as accepted or rejected.
const (
	StatusInterested = "interested"
	StatusIgnored    = "ignored"
	StatusAccepted   = "accepted"
	StatusRejected   = "rejected"
)

// ConnectionRequest is a pending or reviewed connection between two users.
type ConnectionRequest struct {
	ID         string  `json:"_id"`
	FromUserID Contact `json:"fromUserId"`
	ToUserID   string  `json:"toUserId"`
	Status     string  `json:"status"`
}

// DataResponse wraps list payloads as {data: [...]}.
type DataResponse[T any] struct {
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

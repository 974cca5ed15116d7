package store

import (
	"errors"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/karthikraju391/codecrush/models"
)

// User is an account with its password hash.
type User struct {
	models.User
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

func emailKey(email string) string {
	return "email:" + strings.ToLower(strings.TrimSpace(email))
}

// CreateUser assigns an id and persists u. Emails are unique, case
// insensitive.
func (s *Store) CreateUser(u User) (User, error) {
	u.ID = uuid.NewString()
	u.EmailID = strings.TrimSpace(u.EmailID)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		key := emailKey(u.EmailID)
		if _, err := txn.Get([]byte(key)); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set([]byte(key), []byte(u.ID)); err != nil {
			return err
		}
		return setJSON(txn, "user:"+u.ID, u)
	})
	if err != nil {
		return User{}, err
	}
	s.log.Debug("User created", "user_id", u.ID)
	return u, nil
}

func (s *Store) UserByID(id string) (User, error) {
	var u User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, "user:"+id, &u)
	})
	return u, err
}

func (s *Store) UserByEmail(email string) (User, error) {
	var u User
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, emailKey(email))
		if err != nil {
			return err
		}
		return getJSON(txn, "user:"+id, &u)
	})
	return u, err
}

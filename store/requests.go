package store

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/karthikraju391/codecrush/models"
	"github.com/samber/lo"
)

// Request is a stored connection request.
type Request struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"fromUserId"`
	ToUserID   string    `json:"toUserId"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// SendRequest records fromID's interest in (or dismissal of) toID. Only
// one request may exist per pair, whichever side sent it.
func (s *Store) SendRequest(fromID, toID, status string) (Request, error) {
	if status != models.StatusInterested && status != models.StatusIgnored {
		return Request{}, ErrInvalidStatus
	}
	if fromID == toID {
		return Request{}, ErrSelfRequest
	}
	now := time.Now().UTC()
	r := Request{
		ID:         uuid.NewString(),
		FromUserID: fromID,
		ToUserID:   toID,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, "user:"+toID, &User{}); err != nil {
			return err
		}
		pairKey := "reqpair:" + models.PairID(fromID, toID)
		if _, err := txn.Get([]byte(pairKey)); err == nil {
			return ErrDuplicateRequest
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set([]byte(pairKey), []byte(r.ID)); err != nil {
			return err
		}
		return setJSON(txn, "req:"+r.ID, r)
	})
	if err != nil {
		return Request{}, err
	}
	return r, nil
}

// ReviewRequest lets the receiver accept or reject an interested request.
func (s *Store) ReviewRequest(requestID, reviewerID, status string) (Request, error) {
	if status != models.StatusAccepted && status != models.StatusRejected {
		return Request{}, ErrInvalidStatus
	}
	var r Request
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, "req:"+requestID, &r); err != nil {
			return err
		}
		if r.ToUserID != reviewerID || r.Status != models.StatusInterested {
			return ErrNotFound
		}
		r.Status = status
		r.UpdatedAt = time.Now().UTC()
		return setJSON(txn, "req:"+r.ID, r)
	})
	if err != nil {
		return Request{}, err
	}
	return r, nil
}

// ReceivedRequests lists the interested requests waiting on userID, with
// the sender's profile.
func (s *Store) ReceivedRequests(userID string) ([]models.ConnectionRequest, error) {
	var out []models.ConnectionRequest
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, "req:", func(r Request) error {
			if r.ToUserID != userID || r.Status != models.StatusInterested {
				return nil
			}
			var from User
			if err := getJSON(txn, "user:"+r.FromUserID, &from); err != nil {
				return err
			}
			out = append(out, models.ConnectionRequest{
				ID:         r.ID,
				FromUserID: from.Contact,
				ToUserID:   r.ToUserID,
				Status:     r.Status,
			})
			return nil
		})
	})
	return out, err
}

// Connections lists the profiles userID has an accepted request with.
func (s *Store) Connections(userID string) ([]models.Contact, error) {
	var ids []string
	var out []models.Contact
	err := s.db.View(func(txn *badger.Txn) error {
		if err := scan(txn, "req:", func(r Request) error {
			if r.Status != models.StatusAccepted {
				return nil
			}
			switch userID {
			case r.FromUserID:
				ids = append(ids, r.ToUserID)
			case r.ToUserID:
				ids = append(ids, r.FromUserID)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, id := range lo.Uniq(ids) {
			var u User
			if err := getJSON(txn, "user:"+id, &u); err != nil {
				return err
			}
			out = append(out, u.Contact)
		}
		return nil
	})
	return out, err
}

// Connected reports whether a and b share an accepted request.
func (s *Store) Connected(a, b string) (bool, error) {
	var connected bool
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, "reqpair:"+models.PairID(a, b))
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var r Request
		if err := getJSON(txn, "req:"+id, &r); err != nil {
			return err
		}
		connected = r.Status == models.StatusAccepted
		return nil
	})
	return connected, err
}

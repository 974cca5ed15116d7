package store

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/karthikraju391/codecrush/models"
)

// messageKey sorts chronologically within a pair: the timestamp is zero
// padded to 19 digits and the id breaks ties within a nanosecond.
func messageKey(m models.Message) string {
	return fmt.Sprintf("msg:%s:%019d:%s", m.PairID, m.CreatedAt.UnixNano(), m.ID)
}

// StoreMessage persists m, filling in its id and timestamp when unset. The
// client correlation id is kept so a history reload can recognise messages
// the sender still shows as pending.
func (s *Store) StoreMessage(m models.Message) (models.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, messageKey(m), m)
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("store message: %w", err)
	}
	return m, nil
}

// History returns the messages of a pair, oldest first. A positive limit
// keeps only the newest limit messages.
func (s *Store) History(pairID string, limit int) ([]models.Message, error) {
	var out []models.Message
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, "msg:"+pairID+":", func(m models.Message) error {
			out = append(out, m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		s.log.Debug("History truncated", "pair_id", pairID, "total", len(out), "limit", limit)
		out = out[len(out)-limit:]
	}
	return out, nil
}

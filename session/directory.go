package session

import (
	"sync"

	"github.com/karthikraju391/codecrush/models"
)

const unknownName = "User"

// Directory caches the user's accepted connections. Replace is last write
// wins; readers get copies.
type Directory struct {
	mu       sync.RWMutex
	contacts []models.Contact
	byID     map[string]int
}

func NewDirectory() *Directory {
	return &Directory{byID: map[string]int{}}
}

func (d *Directory) Replace(contacts []models.Contact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts = append([]models.Contact(nil), contacts...)
	d.byID = make(map[string]int, len(contacts))
	for i, c := range d.contacts {
		d.byID[c.ID] = i
	}
}

func (d *Directory) All() []models.Contact {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.Contact(nil), d.contacts...)
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.contacts)
}

func (d *Directory) Lookup(id string) (models.Contact, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.byID[id]
	if !ok {
		return models.Contact{}, false
	}
	return d.contacts[i], true
}

// DisplayName returns the contact's full name, or "User" when the id is not
// a known connection.
func (d *Directory) DisplayName(id string) string {
	if c, ok := d.Lookup(id); ok && c.FullName() != "" {
		return c.FullName()
	}
	return unknownName
}

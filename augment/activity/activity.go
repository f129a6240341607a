// Package activity defines the records emitted by the augmentation engine.
// Consumers import it to receive a JSON-lines or webhook feed of what the
// engine did to a page.
package activity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind is what happened.
type Kind string

const (
	KindInjected       Kind = "injected"        // first insertion of an augmentation
	KindRestored       Kind = "restored"        // re-insertion after the host removed it
	KindPlaceholderSet Kind = "placeholder_set" // input field marked
	KindDispatched     Kind = "dispatched"      // submit clicked after a send
	KindDropped        Kind = "dropped"         // submit absent or disabled after the delay
	KindShortcut       Kind = "shortcut"        // keymap action ran
	KindReady          Kind = "ready"           // host document ready
)

// Record is a single engine activity.
type Record struct {
	ID        string `json:"id"` // UUIDv7
	PageID    string `json:"page_id"`
	Kind      Kind   `json:"kind"`
	Subject   string `json:"subject,omitempty"` // augmentation id, chord or query text
	Timestamp int64  `json:"timestamp"`         // epoch milliseconds
}

// New stamps a record with a fresh ID and the current time.
func New(pageID string, kind Kind, subject string) Record {
	return Record{
		ID:        uuid.Must(uuid.NewV7()).String(),
		PageID:    pageID,
		Kind:      kind,
		Subject:   subject,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Marshal serialises a Record to JSON.
func Marshal(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal deserialises a Record from JSON.
func Unmarshal(data []byte) (Record, error) {
	var r Record
	err := json.Unmarshal(data, &r)
	return r, err
}

// Package notify fans out "feed published" events to in-process
// subscribers and to Redis pub/sub.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Event describes one publish.
type Event struct {
	Version     uint64    `json:"version"`
	Checksum    string    `json:"checksum"`
	Operation   string    `json:"operation"`
	Batch       string    `json:"batch,omitempty"`
	V4Entries   int       `json:"v4_entries"`
	V6Entries   int       `json:"v6_entries"`
	Lines       int       `json:"lines"`
	PublishedAt time.Time `json:"published_at"`
}

// Marshal encodes e as JSON.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEvent decodes a JSON event.
func ParseEvent(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Notifier delivers an event somewhere.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

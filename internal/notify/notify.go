// Package notify relays identity events onto the external pub/sub channel.
// This core only tags messages with the resolved identity; message fan-out
// and delivery belong to the channel's consumers.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/quayside/storefront/internal/db/bunx"
	"github.com/quayside/storefront/internal/identity"
)

const (
	// EventSignedIn is published when a session token first verifies for a
	// request carrying a guest context.
	EventSignedIn = "identity.signed_in"
	// EventCartMerged is published after a guest cart has been folded into
	// a user cart.
	EventCartMerged = "cart.merged"
)

// Event is an identity-tagged message for the notification channel.
type Event struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	UserID string    `json:"user_id,omitempty"`
	Role   string    `json:"role,omitempty"`
	// GuestID tags the retiring anonymous identity on merge events.
	GuestID string    `json:"guest_id,omitempty"`
	Lines   int       `json:"lines,omitempty"`
	At      time.Time `json:"at"`
}

// NewEvent builds an event tagged with the resolved identity.
func NewEvent(eventType string, id identity.Identity) Event {
	ev := Event{
		ID:   bunx.NewUUIDv7(),
		Type: eventType,
		At:   time.Now().UTC(),
	}
	if id.IsAuthenticated() {
		ev.UserID = id.UserID
		ev.Role = string(id.Role)
	} else {
		ev.GuestID = id.GuestID
	}
	return ev
}

// Marshal renders the event payload for the wire.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher pushes events to the channel. Publish failures are advisory;
// callers log and continue, they never fail the request over a lost
// notification.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop drops every event. Used when no channel is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Package notify delivers fleet events to humans: Slack, Discord, or an
// arbitrary shell command. Delivery is best-effort; a failing sink never
// stops the watcher.
package notify

import (
	"context"
	"log"
)

// Event kinds.
const (
	KindSessionCreated = "session-created"
	KindSessionRemoved = "session-removed"
	KindDigest         = "digest"
)

// Event is a human-facing notification about a fleet change.
type Event struct {
	Kind       string
	Title      string
	Body       string
	SessionKey string
	Room       string
}

// Notifier delivers a single event to one sink.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// Fanout delivers an event to every sink, logging failures instead of
// returning them.
type Fanout []Notifier

// Notify sends evt to all sinks. Always returns nil.
func (f Fanout) Notify(ctx context.Context, evt Event) error {
	for _, n := range f {
		if err := n.Notify(ctx, evt); err != nil {
			log.Printf("notify: %v", err)
		}
	}
	return nil
}

// kindColor maps event kinds to the accent color sinks render.
func kindColor(kind string) string {
	switch kind {
	case KindSessionCreated:
		return "#2eb67d"
	case KindSessionRemoved:
		return "#e01e5a"
	case KindDigest:
		return "#36c5f0"
	default:
		return "#cccccc"
	}
}

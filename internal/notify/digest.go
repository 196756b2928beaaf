package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/atriumhq/atrium/internal/fleet"
	"github.com/atriumhq/atrium/internal/rooms"
)

// Digester periodically summarizes the fleet per room and sends the summary
// through a Notifier. A digest is suppressed when the fleet has not changed
// since the last one.
type Digester struct {
	fleet    *fleet.Store
	rooms    *rooms.Store
	resolver *rooms.Resolver
	sink     Notifier
	schedule string

	lastFingerprint string
	sent            bool
}

// DigesterOpts holds parameters for creating a Digester.
type DigesterOpts struct {
	Fleet    *fleet.Store
	Rooms    *rooms.Store
	Sink     Notifier
	Schedule string // 5-field cron expression
}

// NewDigester creates a Digester.
func NewDigester(opts DigesterOpts) (*Digester, error) {
	if opts.Fleet == nil {
		return nil, fmt.Errorf("notify: fleet store is required")
	}
	if opts.Rooms == nil {
		return nil, fmt.Errorf("notify: rooms store is required")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("notify: sink is required")
	}
	if _, err := cronParser.Parse(opts.Schedule); err != nil {
		return nil, fmt.Errorf("notify: invalid digest schedule %q: %w", opts.Schedule, err)
	}
	return &Digester{
		fleet:    opts.Fleet,
		rooms:    opts.Rooms,
		resolver: rooms.NewResolver(opts.Rooms),
		sink:     opts.Sink,
		schedule: opts.Schedule,
	}, nil
}

// Run fires digests on the cron schedule until ctx is cancelled.
func (d *Digester) Run(ctx context.Context) {
	for {
		wait := NextCronDuration(d.schedule)
		if wait == 0 {
			wait = time.Minute
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			d.Fire(ctx)
		}
	}
}

// Fire builds and sends one digest if the fleet changed since the last one.
// Returns true when a digest was sent.
func (d *Digester) Fire(ctx context.Context) bool {
	sessions := d.fleet.Read().Sessions
	fp := fleet.Fingerprint(sessions)
	if d.sent && fp == d.lastFingerprint {
		return false
	}

	evt := Event{
		Kind:  KindDigest,
		Title: fmt.Sprintf("Fleet digest: %d session(s)", len(sessions)),
		Body:  d.buildBody(sessions),
	}
	d.sink.Notify(ctx, evt)
	d.lastFingerprint = fp
	d.sent = true
	return true
}

// buildBody renders one line per room plus an unplaced bucket.
func (d *Digester) buildBody(sessions []fleet.Session) string {
	byRoom := map[string]int{}
	unplaced := 0
	for _, s := range sessions {
		roomID, ok := d.resolver.Resolve(s.Key, rooms.SessionAttrs{
			Label:   s.Label,
			Model:   s.Model,
			Channel: s.Channel,
			Kind:    s.Kind,
		})
		if !ok {
			unplaced++
			continue
		}
		byRoom[roomID]++
	}

	names := map[string]string{}
	for _, r := range d.rooms.Rooms() {
		names[r.ID] = r.Name
	}

	var lines []string
	for id, count := range byRoom {
		name := names[id]
		if name == "" {
			name = id
		}
		lines = append(lines, fmt.Sprintf("%s: %d", name, count))
	}
	sort.Strings(lines)
	if unplaced > 0 {
		lines = append(lines, fmt.Sprintf("unplaced: %d", unplaced))
	}
	if len(lines) == 0 {
		return "No active sessions."
	}
	return strings.Join(lines, "\n")
}

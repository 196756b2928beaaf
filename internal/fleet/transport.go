package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Event names delivered by the backend push channel.
const (
	EventSessionsRefresh = "sessions-refresh"
	EventSessionCreated  = "session-created"
	EventSessionUpdated  = "session-updated"
	EventSessionRemoved  = "session-removed"
	EventRoomsRefresh    = "rooms-refresh"
)

// Event is a named push event carrying a raw JSON payload.
type Event struct {
	Name string
	Data []byte
}

// ConnState is the push-channel connection state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

// String returns the state name for logs and status output.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Source is an opaque push event channel. Run connects and delivers events
// and connection-state transitions until ctx is cancelled; both channels
// are closed on return. Implementations handle their own reconnection.
type Source interface {
	Run(ctx context.Context) (<-chan Event, <-chan ConnState, error)
}

// Fetcher produces a full session snapshot from the backend.
type Fetcher interface {
	Sessions(ctx context.Context) ([]Session, error)
}

// Default polling cadence for the fallback loop.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultMaxPollInterval = 60 * time.Second

	// maxBackoffSteps bounds how many times a failed poll doubles the
	// interval before it goes flat.
	maxBackoffSteps = 4
)

// Controller owns the single logical "live updates" channel to the backend.
// It degrades to sequential polling when the push channel drops after
// having been connected, and upgrades back when it recovers. All delivered
// events are treated as idempotent deltas against the Store.
type Controller struct {
	source  Source
	fetcher Fetcher
	store   *Store
	onEvent func(Event)

	pollInterval    time.Duration
	maxPollInterval time.Duration

	mu            sync.Mutex
	state         ConnState
	everConnected bool
	reconnecting  bool
	failures      int
	pollCancel    context.CancelFunc
}

// ControllerOpts holds parameters for creating a Controller.
type ControllerOpts struct {
	Source          Source
	Fetcher         Fetcher
	Store           *Store
	PollInterval    time.Duration // defaults to DefaultPollInterval
	MaxPollInterval time.Duration // defaults to DefaultMaxPollInterval
	OnEvent         func(Event)   // optional tap, invoked after an event is applied
}

// NewController creates a Controller.
func NewController(opts ControllerOpts) (*Controller, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("fleet: controller: source is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fleet: controller: fetcher is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("fleet: controller: store is required")
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	maxPoll := opts.MaxPollInterval
	if maxPoll <= 0 {
		maxPoll = DefaultMaxPollInterval
	}
	return &Controller{
		source:          opts.Source,
		fetcher:         opts.Fetcher,
		store:           opts.Store,
		onEvent:         opts.OnEvent,
		pollInterval:    poll,
		maxPollInterval: maxPoll,
	}, nil
}

// Run activates the controller: one immediate full refresh (so data appears
// even if the push channel takes time to establish), then the event loop.
// It blocks until ctx is cancelled or the source ends.
func (c *Controller) Run(ctx context.Context) error {
	// First activation always fetches once, regardless of transport
	// state. Polling does NOT start here; only a disconnection that
	// follows a prior connected state triggers the fallback loop.
	c.refresh(ctx)

	events, states, err := c.source.Run(ctx)
	if err != nil {
		return fmt.Errorf("fleet: controller: source: %w", err)
	}

	defer c.stopPolling()
	for events != nil || states != nil {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			c.handleState(ctx, st)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.handleEvent(ev)
		}
	}
	return nil
}

// State returns the current push-channel state and the reconnecting flag.
func (c *Controller) State() (ConnState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.reconnecting
}

func (c *Controller) handleState(ctx context.Context, st ConnState) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()

	switch st {
	case StateConnected:
		c.mu.Lock()
		wasConnected := c.everConnected
		c.everConnected = true
		c.reconnecting = false
		c.mu.Unlock()

		c.stopPolling()
		c.store.setConnection(true, false, MethodLive)
		if wasConnected {
			// Reconnect: events may have been missed while down, so
			// force exactly one refetch. The initial connect is already
			// covered by the activation fetch.
			c.refresh(ctx)
		}
	case StateDisconnected:
		c.mu.Lock()
		fallback := c.everConnected
		if fallback {
			c.reconnecting = true
		}
		c.mu.Unlock()

		if fallback {
			c.store.setConnection(false, true, MethodPolling)
			c.startPolling(ctx)
		} else {
			c.store.setConnection(false, false, "")
		}
	case StateConnecting:
		// Internal transition; the read model only distinguishes
		// connected from not-connected.
	}
}

// handleEvent applies one push event to the store as an idempotent delta.
// Undecodable payloads are logged and dropped without affecting connection
// state.
func (c *Controller) handleEvent(ev Event) {
	switch ev.Name {
	case EventSessionsRefresh:
		var payload struct {
			Sessions []Session `json:"sessions"`
		}
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			log.Printf("fleet: malformed %s payload dropped: %v", ev.Name, err)
			return
		}
		c.store.ApplySnapshot(payload.Sessions)
	case EventSessionCreated:
		rec, err := decodeSession(ev.Data)
		if err != nil {
			log.Printf("fleet: malformed %s payload dropped: %v", ev.Name, err)
			return
		}
		c.store.ApplyCreate(rec)
	case EventSessionUpdated:
		rec, err := decodeSession(ev.Data)
		if err != nil {
			log.Printf("fleet: malformed %s payload dropped: %v", ev.Name, err)
			return
		}
		c.store.ApplyUpdate(rec)
	case EventSessionRemoved:
		var payload struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			log.Printf("fleet: malformed %s payload dropped: %v", ev.Name, err)
			return
		}
		c.store.ApplyRemove(payload.Key)
	}

	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

func decodeSession(data []byte) (Session, error) {
	var rec Session
	if err := json.Unmarshal(data, &rec); err != nil {
		return Session{}, err
	}
	if rec.Key == "" {
		return Session{}, errors.New("session payload missing key")
	}
	return rec, nil
}

// refresh fetches a full snapshot and applies it. Failures are caught at
// this boundary: logged, surfaced as a displayable error string, and
// returned only so the poll loop can count them toward backoff.
func (c *Controller) refresh(ctx context.Context) error {
	sessions, err := c.fetcher.Sessions(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		log.Printf("fleet: session fetch failed: %v", err)
		c.store.setError(err.Error())
		return err
	}
	c.store.setError("")
	c.store.ApplySnapshot(sessions)
	return nil
}

// startPolling begins the fallback poll loop. Idempotent: a second call
// while a loop is active does nothing.
func (c *Controller) startPolling(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollCancel != nil {
		return
	}
	pctx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.failures = 0
	go c.pollLoop(pctx)
}

// stopPolling stops any active poll loop. Idempotent.
func (c *Controller) stopPolling() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
}

// pollLoop polls sequentially: each iteration schedules the next poll only
// after the previous one resolves, so requests never overlap during slow
// responses. Errors count toward backoff but never stop the loop.
func (c *Controller) pollLoop(ctx context.Context) {
	for {
		timer := time.NewTimer(c.nextPollDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		err := c.refresh(ctx)
		c.mu.Lock()
		if err != nil {
			c.failures++
		} else {
			c.failures = 0
		}
		c.mu.Unlock()
	}
}

// nextPollDelay computes the delay before the next poll: the base interval
// doubled once per consecutive failure, with both the number of doublings
// and the absolute delay capped.
func (c *Controller) nextPollDelay() time.Duration {
	c.mu.Lock()
	failures := c.failures
	c.mu.Unlock()

	steps := failures
	if steps > maxBackoffSteps {
		steps = maxBackoffSteps
	}
	d := c.pollInterval << uint(steps)
	if d > c.maxPollInterval {
		d = c.maxPollInterval
	}
	return d
}

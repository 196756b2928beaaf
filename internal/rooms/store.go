package rooms

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/atriumhq/atrium/internal/models"
)

// API is the backend surface the Store consumes.
type API interface {
	Rooms(ctx context.Context) ([]models.Room, error)
	Assignments(ctx context.Context) ([]models.SessionRoomAssignment, error)
	Rules(ctx context.Context) ([]models.RoomAssignmentRule, error)

	CreateRoom(ctx context.Context, room models.Room) error
	UpdateRoom(ctx context.Context, id string, upd models.RoomUpdate) error
	DeleteRoom(ctx context.Context, id string) error
	ReorderRooms(ctx context.Context, order []string) error
	SetRoomHQ(ctx context.Context, id string) error

	CreateRule(ctx context.Context, rule models.RoomAssignmentRule) error
	UpdateRule(ctx context.Context, id string, upd models.RuleUpdate) error
	DeleteRule(ctx context.Context, id string) error

	AssignSession(ctx context.Context, sessionKey, roomID string) error
	UnassignSession(ctx context.Context, sessionKey string) error
}

// Result is the outcome of a mutation, returned instead of an error so
// callers can render inline failure messages.
type Result struct {
	Success bool
	Error   string
}

// Store caches rooms, explicit assignments and routing rules fetched
// together from the backend. The cache is derived data: rebuilt wholesale
// on every successful fetch, never partially patched. Per-collection
// fingerprints suppress subscriber signals when nothing visible changed.
type Store struct {
	api API

	mu            sync.Mutex
	rooms         []models.Room
	assignments   map[string]string // session key -> room id
	rules         []models.RoomAssignmentRule
	fpRooms       string
	fpAssignments string
	fpRules       string
	lastErr       string

	gen    int
	cancel context.CancelFunc

	subs    map[int]chan struct{}
	nextSub int
}

// NewStore creates a Store backed by the given API.
func NewStore(api API) (*Store, error) {
	if api == nil {
		return nil, fmt.Errorf("rooms: store: api is required")
	}
	return &Store{
		api:         api,
		assignments: make(map[string]string),
		subs:        make(map[int]chan struct{}),
	}, nil
}

// Subscribe returns a coalescing change signal and a cancel function.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Rooms returns the cached rooms in sort order.
func (s *Store) Rooms() []models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Room, len(s.rooms))
	copy(out, s.rooms)
	return out
}

// Rules returns the cached routing rules.
func (s *Store) Rules() []models.RoomAssignmentRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RoomAssignmentRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Assignment returns the explicitly pinned room for a session key.
func (s *Store) Assignment(sessionKey string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roomID, ok := s.assignments[sessionKey]
	return roomID, ok
}

// Err returns the last refresh error, empty when the cache is healthy.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Refresh fetches rooms, assignments and rules concurrently and rebuilds
// the cache. Starting a new refresh cancels any in-flight one; a
// superseded response can never overwrite fresher data (generation guard).
// A refresh aborted by a newer one is silent, not an error.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	defer cancel()

	var (
		wg          sync.WaitGroup
		rooms       []models.Room
		assignments []models.SessionRoomAssignment
		rules       []models.RoomAssignmentRule
		errs        [3]error
	)
	wg.Add(3)
	go func() { defer wg.Done(); rooms, errs[0] = s.api.Rooms(fctx) }()
	go func() { defer wg.Done(); assignments, errs[1] = s.api.Assignments(fctx) }()
	go func() { defer wg.Done(); rules, errs[2] = s.api.Rules(fctx) }()
	wg.Wait()

	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		s.mu.Lock()
		if gen == s.gen {
			s.lastErr = err.Error()
		}
		s.mu.Unlock()
		return fmt.Errorf("rooms: refresh: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// Superseded while in flight; the newer refresh owns the cache.
		return nil
	}
	s.cancel = nil
	s.lastErr = ""

	changed := false
	if fp := roomsFingerprint(rooms); fp != s.fpRooms {
		s.rooms = rooms
		s.fpRooms = fp
		changed = true
	}
	if fp := assignmentsFingerprint(assignments); fp != s.fpAssignments {
		m := make(map[string]string, len(assignments))
		for _, a := range assignments {
			m[a.SessionKey] = a.RoomID
		}
		s.assignments = m
		s.fpAssignments = fp
		changed = true
	}
	if fp := rulesFingerprint(rules); fp != s.fpRules {
		s.rules = rules
		s.fpRules = fp
		changed = true
	}
	if changed {
		s.notifyLocked()
	}
	return nil
}

// mutate runs one backend mutation, then refetches all three collections
// on success. Failures come back as a Result, never as a panic or a
// propagated error.
func (s *Store) mutate(ctx context.Context, op func(context.Context) error) Result {
	if err := op(ctx); err != nil {
		return Result{Error: err.Error()}
	}
	if err := s.Refresh(ctx); err != nil {
		log.Printf("rooms: refetch after mutation failed: %v", err)
	}
	return Result{Success: true}
}

// CreateRoom creates a room and refetches the cache.
func (s *Store) CreateRoom(ctx context.Context, room models.Room) Result {
	return s.mutate(ctx, func(ctx context.Context) error { return s.api.CreateRoom(ctx, room) })
}

// UpdateRoom applies a partial room update and refetches the cache.
func (s *Store) UpdateRoom(ctx context.Context, id string, upd models.RoomUpdate) Result {
	return s.mutate(ctx, func(ctx context.Context) error { return s.api.UpdateRoom(ctx, id, upd) })
}

// DeleteRoom deletes a room and refetches the cache.
func (s *Store) DeleteRoom(ctx context.Context, id string) Result {
	return s.mutate(ctx, func(ctx context.Context) error { return s.api.DeleteRoom(ctx, id) })
}

// ReorderRooms persists a new display order and refetches the cache.
func (s *Store) ReorderRooms(ctx context.Context, order []string) Result {
	return s.mutate(ctx, func(ctx context.Context) error { return s.api.ReorderRooms(ctx, order) })
}

// SetRoomHQ marks a room as headquarters and refetches the cache.
func (s *Store) SetRoomHQ(ctx context.Context, id string) Result {
	return s.mutate(ctx, func(ctx context.Context) error { return s.api.SetRoomHQ(ctx, id) })
}

// CreateRule creates a routing rule and refetches the cache.
func (s *Store) CreateRule(ctx context.Context, rule models.RoomAssignmentRule) Result {
	return s.mutate(ctx, func(ctx context.Context) error { return s.api.CreateRule(ctx, rule) })
}

// UpdateRule applies a partial rule update and refetches the cache.
func (s *Store) UpdateRule(ctx context.Context, id string, upd models.RuleUpdate) Result {
	return s.mutate(ctx, func(ctx context.Context) error { return s.api.UpdateRule(ctx, id, upd) })
}

// DeleteRule deletes a routing rule and refetches the cache.
func (s *Store) DeleteRule(ctx context.Context, id string) Result {
	return s.mutate(ctx, func(ctx context.Context) error { return s.api.DeleteRule(ctx, id) })
}

// AssignSession pins a session to a room and refetches the cache.
func (s *Store) AssignSession(ctx context.Context, sessionKey, roomID string) Result {
	return s.mutate(ctx, func(ctx context.Context) error { return s.api.AssignSession(ctx, sessionKey, roomID) })
}

// UnassignSession removes a session pin and refetches the cache.
func (s *Store) UnassignSession(ctx context.Context, sessionKey string) Result {
	return s.mutate(ctx, func(ctx context.Context) error { return s.api.UnassignSession(ctx, sessionKey) })
}

// fingerprint folds projected records into an order-independent signature,
// the same scheme fleet.Fingerprint uses for sessions.
func fingerprint(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

func roomsFingerprint(rooms []models.Room) string {
	parts := make([]string, len(rooms))
	for i, r := range rooms {
		parts[i] = fmt.Sprintf("%s:%d:%d:%t", r.ID, r.SortOrder, r.UpdatedAt, r.IsHQ)
	}
	return fingerprint(parts)
}

func assignmentsFingerprint(assignments []models.SessionRoomAssignment) string {
	parts := make([]string, len(assignments))
	for i, a := range assignments {
		parts[i] = fmt.Sprintf("%s:%s:%d", a.SessionKey, a.RoomID, a.AssignedAt)
	}
	return fingerprint(parts)
}

func rulesFingerprint(rules []models.RoomAssignmentRule) string {
	parts := make([]string, len(rules))
	for i, r := range rules {
		parts[i] = fmt.Sprintf("%s:%s:%s:%s:%d", r.ID, r.RoomID, r.RuleType, r.RuleValue, r.Priority)
	}
	return fingerprint(parts)
}

package fleet

import (
	"log"
	"sync"
)

// Connection methods reported on the read model.
const (
	MethodLive    = "live"
	MethodPolling = "polling"
)

// ReadModel is the consumer-visible view of the session collection.
type ReadModel struct {
	Sessions     []Session
	Loading      bool
	Err          string
	Connected    bool
	Reconnecting bool
	Method       string
}

// Store is the single source of truth for what sessions currently exist.
// Mutations come from the TransportController; consumers read via Read and
// learn about changes via Subscribe. Writes that leave the visible state
// unchanged do not signal subscribers: each session feeds a potentially
// expensive downstream step, so suppressing no-op updates is the central
// performance contract here.
type Store struct {
	mu           sync.Mutex
	sessions     []Session
	fingerprint  string
	loading      bool
	err          string
	connected    bool
	reconnecting bool
	method       string

	subs    map[int]chan struct{}
	nextSub int
}

// NewStore creates an empty Store in the loading state.
func NewStore() *Store {
	return &Store{
		loading: true,
		subs:    make(map[int]chan struct{}),
	}
}

// Subscribe returns a coalescing change signal and a cancel function.
// The channel receives at most one pending signal; consumers re-read the
// store when it fires.
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

// Read returns a copy of the current read model.
func (s *Store) Read() ReadModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]Session, len(s.sessions))
	copy(sessions, s.sessions)
	return ReadModel{
		Sessions:     sessions,
		Loading:      s.loading,
		Err:          s.err,
		Connected:    s.connected,
		Reconnecting: s.reconnecting,
		Method:       s.method,
	}
}

// notifyLocked signals all subscribers. Callers must hold s.mu.
func (s *Store) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// ApplySnapshot replaces the entire collection, but only when its
// fingerprint differs from the stored one. An identical snapshot is a
// no-op apart from clearing the loading flag.
func (s *Store) ApplySnapshot(records []Session) {
	fp := Fingerprint(records)

	s.mu.Lock()
	defer s.mu.Unlock()

	if fp == s.fingerprint && !s.loading {
		return
	}
	if fp != s.fingerprint {
		s.sessions = make([]Session, len(records))
		copy(s.sessions, records)
		s.fingerprint = fp
	}
	s.loading = false
	s.notifyLocked()
}

// ApplyCreate inserts a session unless its key is already present. A
// duplicate create (optimistic local add racing a delayed transport echo)
// is silently dropped.
func (s *Store) ApplyCreate(rec Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sessions {
		if existing.Key == rec.Key {
			return
		}
	}
	s.sessions = append(s.sessions, rec)
	s.fingerprint = Fingerprint(s.sessions)
	s.notifyLocked()
}

// ApplyUpdate replaces the session with rec's key in place, preserving
// collection order. Updates for unknown sessions are logged and dropped;
// updates that leave the display-relevant fields unchanged are skipped.
func (s *Store) ApplyUpdate(rec Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.sessions {
		if existing.Key != rec.Key {
			continue
		}
		if displayEqual(existing, rec) {
			return
		}
		s.sessions[i] = rec
		s.fingerprint = Fingerprint(s.sessions)
		s.notifyLocked()
		return
	}
	log.Printf("fleet: update for unknown session %q dropped", rec.Key)
}

// ApplyRemove deletes the session with the given key; no-op when absent.
func (s *Store) ApplyRemove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.sessions {
		if existing.Key != key {
			continue
		}
		s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
		s.fingerprint = Fingerprint(s.sessions)
		s.notifyLocked()
		return
	}
}

// setConnection records connection state for the status indicator.
func (s *Store) setConnection(connected, reconnecting bool, method string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected == connected && s.reconnecting == reconnecting && s.method == method {
		return
	}
	s.connected = connected
	s.reconnecting = reconnecting
	s.method = method
	s.notifyLocked()
}

// setError records a displayable fetch error. An empty string clears it.
func (s *Store) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err == msg {
		return
	}
	s.err = msg
	s.notifyLocked()
}

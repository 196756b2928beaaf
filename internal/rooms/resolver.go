package rooms

// Resolver computes one room id per session. An explicit assignment always
// wins; rules are consulted only when no pin exists. Resolution reads the
// Store's cache and never touches the network; it runs per session, per
// render.
type Resolver struct {
	store *Store
}

// NewResolver creates a Resolver over the given Store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the room id for a session, or false when neither an
// assignment nor a rule places it.
func (r *Resolver) Resolve(sessionKey string, attrs SessionAttrs) (string, bool) {
	if roomID, ok := r.store.Assignment(sessionKey); ok {
		return roomID, true
	}
	return MatchRoom(r.store.Rules(), sessionKey, attrs)
}

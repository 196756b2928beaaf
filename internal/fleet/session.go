// Package fleet keeps a live collection of agent sessions consistent with
// the backend, using a push event source with a polling fallback.
package fleet

// Session kinds.
const (
	KindAgent    = "agent"
	KindSubagent = "subagent"
)

// Session is one unit of agent activity tracked by the backend. Key is the
// stable identity; no two sessions in a collection share a key.
type Session struct {
	Key           string    `json:"key"`
	Kind          string    `json:"kind"`
	Channel       string    `json:"channel,omitempty"`
	DisplayName   string    `json:"displayName,omitempty"`
	Label         string    `json:"label,omitempty"`
	UpdatedAt     int64     `json:"updatedAt"`
	Model         string    `json:"model,omitempty"`
	TotalTokens   int       `json:"totalTokens"`
	ContextTokens int       `json:"contextTokens"`
	Messages      []Message `json:"messages,omitempty"`
}

// Message is a single chat message within a session, most-recent last.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// displayEqual reports whether two records are identical on the fields that
// drive downstream rendering. Label and message edits that leave these
// untouched must not trigger consumer updates.
func displayEqual(a, b Session) bool {
	return a.UpdatedAt == b.UpdatedAt && a.TotalTokens == b.TotalTokens
}

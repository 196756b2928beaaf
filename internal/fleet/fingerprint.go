package fleet

import (
	"fmt"
	"sort"
	"strings"
)

// Fingerprint returns a cheap order-independent signature over a session
// collection. Two collections with the same (key, updatedAt, totalTokens)
// triples produce the same signature regardless of ordering; any differing
// triple changes it. The empty collection maps to "".
//
// The signature is used to detect "no real change" and skip redundant
// store writes, so it deliberately ignores fields that don't affect
// what consumers render.
func Fingerprint(sessions []Session) string {
	if len(sessions) == 0 {
		return ""
	}
	parts := make([]string, len(sessions))
	for i, s := range sessions {
		parts[i] = fmt.Sprintf("%s:%d:%d", s.Key, s.UpdatedAt, s.TotalTokens)
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

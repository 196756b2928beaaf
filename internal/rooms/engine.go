// Package rooms assigns agent sessions to logical rooms: explicit pins
// first, then a priority-ordered, first-match-wins rule set.
package rooms

import (
	"regexp"
	"sort"
	"strings"

	"github.com/atriumhq/atrium/internal/models"
)

// Session type vocabulary for session_type rules.
const (
	SessionTypeCron     = "cron"
	SessionTypeSubagent = "subagent"
	SessionTypeMain     = "main"
	SessionTypeSlack    = "slack"
	SessionTypeWhatsApp = "whatsapp"
	SessionTypeTelegram = "telegram"
	SessionTypeDiscord  = "discord"
)

// SessionAttrs are the session attributes rules can match on.
type SessionAttrs struct {
	Label   string
	Model   string
	Channel string
	Kind    string
}

// MatchRoom evaluates rules in priority order (higher first, ties keep the
// original collection order) and returns the room of the first match.
func MatchRoom(rules []models.RoomAssignmentRule, sessionKey string, attrs SessionAttrs) (string, bool) {
	sorted := make([]models.RoomAssignmentRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	for _, rule := range sorted {
		if ruleMatches(rule, sessionKey, attrs) {
			return rule.RoomID, true
		}
	}
	return "", false
}

func ruleMatches(rule models.RoomAssignmentRule, sessionKey string, attrs SessionAttrs) bool {
	switch rule.RuleType {
	case models.RuleSessionKeyContains:
		return strings.Contains(sessionKey, rule.RuleValue)
	case models.RuleKeyword:
		return attrs.Label != "" &&
			strings.Contains(strings.ToLower(attrs.Label), strings.ToLower(rule.RuleValue))
	case models.RuleModel:
		return attrs.Model != "" &&
			strings.Contains(strings.ToLower(attrs.Model), strings.ToLower(rule.RuleValue))
	case models.RuleLabelPattern:
		// A malformed pattern is an always-false predicate, never a fault.
		re, err := regexp.Compile("(?i)" + rule.RuleValue)
		if err != nil {
			return false
		}
		if attrs.Label != "" && re.MatchString(attrs.Label) {
			return true
		}
		return re.MatchString(sessionKey)
	case models.RuleSessionType:
		return matchSessionType(rule.RuleValue, sessionKey, attrs)
	}
	return false
}

// matchSessionType inspects structural substrings of the session key; the
// channel-based types fall back to channel equality when the key gives no
// answer.
func matchSessionType(value, sessionKey string, attrs SessionAttrs) bool {
	switch value {
	case SessionTypeCron:
		return strings.Contains(sessionKey, ":cron:") || strings.HasPrefix(sessionKey, "cron:")
	case SessionTypeSubagent:
		return strings.Contains(sessionKey, ":subagent:") || attrs.Kind == SessionTypeSubagent
	case SessionTypeMain:
		return strings.HasSuffix(sessionKey, ":main") || strings.Contains(sessionKey, ":main:")
	case SessionTypeSlack, SessionTypeWhatsApp, SessionTypeTelegram, SessionTypeDiscord:
		return strings.Contains(sessionKey, ":"+value+":") || attrs.Channel == value
	}
	return false
}

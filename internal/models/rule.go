package models

// Rule types. RuleValue semantics depend on the type; see rooms.MatchRoom.
const (
	RuleSessionKeyContains = "session_key_contains"
	RuleKeyword            = "keyword"
	RuleModel              = "model"
	RuleLabelPattern       = "label_pattern"
	RuleSessionType        = "session_type"
)

// ruleTypes is the allowed rule_type vocabulary.
var ruleTypes = map[string]bool{
	RuleSessionKeyContains: true,
	RuleKeyword:            true,
	RuleModel:              true,
	RuleLabelPattern:       true,
	RuleSessionType:        true,
}

// ValidRuleType reports whether t is an allowed rule type.
func ValidRuleType(t string) bool {
	return ruleTypes[t]
}

// RoomAssignmentRule routes sessions to a room when no explicit assignment
// exists. Higher priority evaluates first; ties keep creation order.
type RoomAssignmentRule struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	RoomID    string `gorm:"size:64;index;not null" json:"room_id"`
	RuleType  string `gorm:"size:32;not null" json:"rule_type"`
	RuleValue string `gorm:"size:256;not null" json:"rule_value"`
	Priority  int    `gorm:"default:0;index" json:"priority"`
	CreatedAt int64  `gorm:"autoCreateTime:milli" json:"created_at"`
}

package models

// RoomUpdate is a partial room update; nil fields are left untouched.
type RoomUpdate struct {
	Name            *string  `json:"name,omitempty"`
	Icon            *string  `json:"icon,omitempty"`
	Color           *string  `json:"color,omitempty"`
	SortOrder       *int     `json:"sort_order,omitempty"`
	DefaultModel    *string  `json:"default_model,omitempty"`
	SpeedMultiplier *float64 `json:"speed_multiplier,omitempty"`
	FloorStyle      *string  `json:"floor_style,omitempty"`
	WallStyle       *string  `json:"wall_style,omitempty"`
}

// RuleUpdate is a partial rule update; nil fields are left untouched.
type RuleUpdate struct {
	RoomID    *string `json:"room_id,omitempty"`
	RuleType  *string `json:"rule_type,omitempty"`
	RuleValue *string `json:"rule_value,omitempty"`
	Priority  *int    `json:"priority,omitempty"`
}

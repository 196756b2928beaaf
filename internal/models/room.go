package models

// Room is a workspace area that groups agent sessions for display.
// At most one room carries the HQ flag; the server enforces this on the
// set-HQ operation and refuses to delete the HQ room.
type Room struct {
	ID              string  `gorm:"primaryKey;size:64" json:"id"`
	Name            string  `gorm:"not null" json:"name"`
	Icon            string  `gorm:"size:64" json:"icon,omitempty"`
	Color           string  `gorm:"size:16" json:"color,omitempty"`
	SortOrder       int     `gorm:"default:0;index" json:"sort_order"`
	DefaultModel    string  `gorm:"size:64" json:"default_model,omitempty"`
	SpeedMultiplier float64 `gorm:"default:1" json:"speed_multiplier"`
	FloorStyle      string  `gorm:"size:32;default:default" json:"floor_style"`
	WallStyle       string  `gorm:"size:32;default:default" json:"wall_style"`
	ProjectID       *string `gorm:"size:64" json:"project_id,omitempty"`
	IsHQ            bool    `gorm:"column:is_hq;default:false" json:"is_hq"`
	CreatedAt       int64   `gorm:"autoCreateTime:milli" json:"created_at"`
	UpdatedAt       int64   `gorm:"autoUpdateTime:milli" json:"updated_at"`
}

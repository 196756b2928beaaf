package models

// SessionRoomAssignment pins a session key to a room, overriding any
// routing rule. One assignment per session key; re-assigning is an upsert.
type SessionRoomAssignment struct {
	SessionKey string `gorm:"primaryKey;size:128" json:"session_key"`
	RoomID     string `gorm:"size:64;index;not null" json:"room_id"`
	AssignedAt int64  `gorm:"autoCreateTime:milli" json:"assigned_at"`
}

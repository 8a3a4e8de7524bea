package domain

import (
	"time"
)

// AuditEvent records one change to a room's directory entry.
type AuditEvent struct {
	ID        int64          `json:"id"`
	EventTime time.Time      `json:"event_time"`
	Actor     string         `json:"actor"`
	RoomName  string         `json:"room_name"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
}

const (
	EventTypeRoomCreated   = "ROOM_CREATED"
	EventTypeRoomRemoved   = "ROOM_REMOVED"
	EventTypeMemberAdded   = "MEMBER_ADDED"
	EventTypeMemberRemoved = "MEMBER_REMOVED"
)

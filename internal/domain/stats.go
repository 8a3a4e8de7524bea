package domain

import "time"

// RoomStats summarizes the in-memory log of one room.
type RoomStats struct {
	RoomName        string     `json:"room_name"`
	Members         int        `json:"members"`
	Messages        int        `json:"messages"`
	PendingMessages int        `json:"pending_messages"`
	LastSequenceNum int64      `json:"last_sequence_num"`
	OldestSentTime  *time.Time `json:"oldest_sent_time,omitempty"`
	NewestSentTime  *time.Time `json:"newest_sent_time,omitempty"`
	MetadataDirty   bool       `json:"metadata_dirty"`
}

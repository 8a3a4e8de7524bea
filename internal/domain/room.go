package domain

import (
	"time"
)

type RoomType string

const (
	RoomTypePublic  RoomType = "public"
	RoomTypePrivate RoomType = "private"
)

func (t RoomType) Valid() bool {
	return t == RoomTypePublic || t == RoomTypePrivate
}

// RoomMetadata is the room document kept next to the room's messages.
type RoomMetadata struct {
	RoomName   string    `json:"room_name"`
	OwnerAlias string    `json:"owner_alias"`
	RoomType   RoomType  `json:"room_type"`
	MemberList []string  `json:"member_list"`
	CreateTime time.Time `json:"create_time"`
	ModifyTime time.Time `json:"modify_time"`
}

// RoomSnapshot is the per-room entry stored inside a room list document.
type RoomSnapshot struct {
	RoomName   string   `json:"room_name"`
	RoomType   RoomType `json:"room_type"`
	OwnerAlias string   `json:"owner_alias"`
	MemberList []string `json:"member_list"`
}

// RoomListMetadata is the directory document for one room list namespace.
type RoomListMetadata struct {
	ListName      string         `json:"list_name"`
	CreateTime    time.Time      `json:"create_time"`
	ModifyTime    time.Time      `json:"modify_time"`
	RoomsMetadata []RoomSnapshot `json:"rooms_metadata"`
}

// NormalizeMembers returns members with duplicates removed and the owner
// appended when missing. Order of first appearance is kept.
func NormalizeMembers(owner string, members []string) []string {
	seen := make(map[string]struct{}, len(members)+1)
	out := make([]string, 0, len(members)+1)
	for _, m := range members {
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	if _, ok := seen[owner]; !ok && owner != "" {
		out = append(out, owner)
	}
	return out
}

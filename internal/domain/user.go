package domain

import "time"

// ChatUser is a registered alias. Aliases are the only identity the chat
// engine knows about.
type ChatUser struct {
	Alias      string    `json:"alias"`
	CreateTime time.Time `json:"create_time"`
	ModifyTime time.Time `json:"modify_time"`
}

// internal/domain/models/message.go
package models

import "time"

// ChatMessage is one entry in the append-only chat log. CreatedAt is
// assigned by the store at write time, never by the client, so ordering
// is consistent across writers. User is the sender's resolved display
// identity (a string, not a User record) — the chat log predates any
// user directory.
type ChatMessage struct {
	ID        string `json:"id"`
	Room      string `json:"room"`
	Text      string `json:"text"`
	User      string `json:"user"`
	CreatedAt int64  `json:"createdAt"`
}

// CreatedTime returns CreatedAt as a time.Time.
func (m ChatMessage) CreatedTime() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

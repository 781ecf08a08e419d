// internal/domain/models/material.go
package models

import "time"

// Material type values. A material is either an uploaded file or a shared
// link, never both.
const (
	MaterialTypeFile = "file"
	MaterialTypeLink = "link"
)

// Material is a shared study resource. Apart from ReuseCount increments
// and Comments additions it is immutable once written, and materials are
// never deleted.
//
// Timestamps are unix milliseconds, the wire form used throughout the
// remote store so that ordering comparisons stay numeric.
type Material struct {
	ID          string `json:"id"`
	GroupID     string `json:"groupId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"` // "file" or "link"

	URL      string `json:"url"`
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
	FileType string `json:"fileType,omitempty"` // MIME type, or "link"

	UploadedBy User  `json:"uploadedBy"`
	UploadedAt int64 `json:"uploadedAt"`

	// ReuseCount is a popularity signal, not a strict counter: concurrent
	// increments from separate clients are last-write-wins on the scalar.
	ReuseCount int `json:"reuseCount"`

	Comments map[string]Comment `json:"comments,omitempty"`
}

// HasFile reports whether this material carries an uploaded file.
func (m *Material) HasFile() bool { return m.Type == MaterialTypeFile }

// HasLink reports whether this material is a shared link.
func (m *Material) HasLink() bool { return m.Type == MaterialTypeLink }

// UploadedTime returns UploadedAt as a time.Time.
func (m *Material) UploadedTime() time.Time {
	return time.UnixMilli(m.UploadedAt)
}

// CommentCount returns the number of top-level comments. Replies are not
// counted.
func (m *Material) CommentCount() int {
	return len(m.Comments)
}

// Comment is a top-level comment on a material. Comments are append-only
// and never edited or deleted.
type Comment struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	Author    User             `json:"author"`
	Timestamp int64            `json:"timestamp"`
	Replies   map[string]Reply `json:"replies,omitempty"`
}

// Reply is a second-level response to a comment. Nesting stops here:
// replies cannot themselves be replied to.
type Reply struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Author    User   `json:"author"`
	Timestamp int64  `json:"timestamp"`
}

// internal/app/store/chat/chatstore.go

// Package chatstore is the live group-chat layer. All rooms share one
// message collection and one remote subscription; each tail filters by
// room on its own side. Filtering client-side keeps the listener free of
// server-side query requirements, at the cost of shipping every room's
// traffic to every subscriber. Histories are short enough that this has
// not mattered.
package chatstore

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/virtualstudy/studypoint/internal/app/store/remote"
	"github.com/virtualstudy/studypoint/internal/app/system/htmlsanitize"
	"github.com/virtualstudy/studypoint/internal/app/system/identity"
	"github.com/virtualstudy/studypoint/internal/domain/faults"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

const messagesPath = "messages"

// Stream reads and writes chat messages.
type Stream struct {
	store remote.Store
	log   *zap.Logger
}

// New builds a Stream.
func New(store remote.Store, logger *zap.Logger) *Stream {
	return &Stream{store: store, log: logger}
}

// Append writes a message to the room. The author's display identity is
// resolved once at send time and stored denormalized on the message, so
// later profile changes do not rewrite history. The creation time is
// assigned by the store.
func (s *Stream) Append(ctx context.Context, author models.User, room, text string) (string, error) {
	if !models.ValidGroupID(room) {
		return "", &faults.ValidationError{Field: "room", Reason: "unknown room " + room}
	}
	clean := strings.TrimSpace(htmlsanitize.Sanitize(text))
	if clean == "" {
		return "", &faults.ValidationError{Field: "text", Reason: "message text is empty"}
	}

	id := s.store.GenerateKey(messagesPath)
	rec := map[string]any{
		"id":        id,
		"room":      room,
		"text":      clean,
		"user":      identity.Display(author),
		"createdAt": remote.ServerTimestamp,
	}
	path := remote.JoinPath(messagesPath, id)
	if err := s.store.Write(ctx, path, rec); err != nil {
		return "", &faults.RemoteWriteError{Path: path, Err: err}
	}
	s.log.Debug("chat message appended", zap.String("room", room), zap.String("message", id))
	return id, nil
}

// Tail streams the room's messages to fn, oldest first, re-delivered in
// full after every change. The subscription covers the whole message
// collection; messages from other rooms are dropped before fn sees them.
func (s *Stream) Tail(ctx context.Context, room string, fn func([]models.ChatMessage, error)) (func(), error) {
	if !models.ValidGroupID(room) {
		return nil, &faults.ValidationError{Field: "room", Reason: "unknown room " + room}
	}

	cancel, err := s.store.Subscribe(ctx, messagesPath, func(snap remote.Snapshot, err error) {
		if err != nil {
			fn(nil, &faults.RemoteReadError{Path: messagesPath, Err: err})
			return
		}
		decoded := map[string]models.ChatMessage{}
		if derr := snap.Decode(&decoded); derr != nil {
			fn(nil, &faults.RemoteReadError{Path: messagesPath, Err: derr})
			return
		}
		msgs := make([]models.ChatMessage, 0, len(decoded))
		for id, m := range decoded {
			if m.Room != room {
				continue
			}
			if m.ID == "" {
				m.ID = id
			}
			msgs = append(msgs, m)
		}
		sort.Slice(msgs, func(i, j int) bool {
			a, b := msgs[i], msgs[j]
			if a.CreatedAt != b.CreatedAt {
				return a.CreatedAt < b.CreatedAt
			}
			return a.ID < b.ID
		})
		fn(msgs, nil)
	})
	if err != nil {
		return nil, &faults.RemoteReadError{Path: messagesPath, Err: err}
	}
	return cancel, nil
}

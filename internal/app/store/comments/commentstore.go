// internal/app/store/comments/commentstore.go

// Package commentstore manages the two-level discussion thread attached
// to each material: top-level comments, each with a flat set of replies.
// Threads live inside the material record, so material subscribers see
// comment activity without a second listener.
package commentstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	accessgate "github.com/virtualstudy/studypoint/internal/app/store/access"
	"github.com/virtualstudy/studypoint/internal/app/store/remote"
	"github.com/virtualstudy/studypoint/internal/app/system/htmlsanitize"
	"github.com/virtualstudy/studypoint/internal/app/system/listeners"
	"github.com/virtualstudy/studypoint/internal/domain/faults"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

// Thread is the ordered, render-ready discussion on one material.
type Thread struct {
	MaterialID string `json:"materialId"`
	// Comments are ordered oldest first. Each comment's Replies slice is
	// ordered the same way.
	Comments []ThreadComment `json:"comments"`
}

// ThreadComment is a comment with its replies flattened into a sorted
// slice.
type ThreadComment struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Author    models.User    `json:"author"`
	Timestamp int64          `json:"timestamp"`
	Replies   []models.Reply `json:"replies"`
}

// Store reads and writes material discussion threads.
type Store struct {
	store remote.Store
	gate  *accessgate.Gate
	log   *zap.Logger
}

// New builds a Store.
func New(store remote.Store, gate *accessgate.Gate, logger *zap.Logger) *Store {
	return &Store{store: store, gate: gate, log: logger}
}

func commentsPath(groupID, materialID string) string {
	return remote.JoinPath("groups", groupID, "materials", materialID, "comments")
}

func repliesPath(groupID, materialID, commentID string) string {
	return remote.JoinPath("groups", groupID, "materials", materialID, "comments", commentID, "replies")
}

// AddComment appends a top-level comment to the material's thread. The
// text is sanitized before it is stored; a comment that is empty after
// trimming is rejected. The timestamp is assigned by the store so all
// clients agree on ordering.
func (s *Store) AddComment(ctx context.Context, user models.User, groupID, materialID, text string) (string, error) {
	clean, err := s.prepare(ctx, user, groupID, text)
	if err != nil {
		return "", err
	}

	base := commentsPath(groupID, materialID)
	id := s.store.GenerateKey(base)
	rec := map[string]any{
		"id":        id,
		"text":      clean,
		"author":    user,
		"timestamp": remote.ServerTimestamp,
	}
	path := remote.JoinPath(base, id)
	if err := s.store.Write(ctx, path, rec); err != nil {
		return "", &faults.RemoteWriteError{Path: path, Err: err}
	}
	s.log.Info("comment added",
		zap.String("group", groupID),
		zap.String("material", materialID),
		zap.String("comment", id))
	return id, nil
}

// AddReply appends a reply under an existing comment. Replies are a
// single level deep; there is no reply-to-reply nesting.
func (s *Store) AddReply(ctx context.Context, user models.User, groupID, materialID, commentID, text string) (string, error) {
	clean, err := s.prepare(ctx, user, groupID, text)
	if err != nil {
		return "", err
	}
	if commentID == "" {
		return "", &faults.ValidationError{Field: "comment", Reason: "missing comment id"}
	}

	base := repliesPath(groupID, materialID, commentID)
	id := s.store.GenerateKey(base)
	rec := map[string]any{
		"id":        id,
		"text":      clean,
		"author":    user,
		"timestamp": remote.ServerTimestamp,
	}
	path := remote.JoinPath(base, id)
	if err := s.store.Write(ctx, path, rec); err != nil {
		return "", &faults.RemoteWriteError{Path: path, Err: err}
	}
	return id, nil
}

// prepare runs the shared write-side checks: group exists, caller is a
// member, text is non-empty once trimmed and sanitized.
func (s *Store) prepare(ctx context.Context, user models.User, groupID, text string) (string, error) {
	if !models.ValidGroupID(groupID) {
		return "", &faults.ValidationError{Field: "group", Reason: "unknown group " + groupID}
	}
	member, err := s.gate.IsMember(ctx, user.UID, groupID)
	if err != nil {
		return "", err
	}
	if !member {
		return "", &faults.AccessDeniedError{UserID: user.UID, GroupID: groupID}
	}
	clean := strings.TrimSpace(htmlsanitize.Sanitize(text))
	if clean == "" {
		return "", &faults.ValidationError{Field: "text", Reason: "comment text is empty"}
	}
	return clean, nil
}

// Watch streams the material's thread to fn, re-sorted after every
// change. A non-member receives an AccessDeniedError once and no thread
// snapshots until membership appears. The returned cancel releases the
// listener and is safe to call more than once.
func (s *Store) Watch(ctx context.Context, user models.User, groupID, materialID string, fn func(Thread, error)) (func(), error) {
	if !models.ValidGroupID(groupID) {
		return nil, &faults.ValidationError{Field: "group", Reason: "unknown group " + groupID}
	}

	regs := listeners.New()
	var mu sync.Mutex
	member := false
	var raw map[string]models.Comment
	haveThread := false

	emit := func() {
		mu.Lock()
		if !member {
			uid := user.UID
			gid := groupID
			mu.Unlock()
			fn(Thread{MaterialID: materialID}, &faults.AccessDeniedError{UserID: uid, GroupID: gid})
			return
		}
		if !haveThread {
			mu.Unlock()
			return
		}
		t := buildThread(materialID, raw)
		mu.Unlock()
		fn(t, nil)
	}

	memberCancel, err := s.gate.Watch(ctx, user.UID, groupID, func(m bool, err error) {
		if err != nil {
			fn(Thread{MaterialID: materialID}, err)
			return
		}
		mu.Lock()
		member = m
		mu.Unlock()
		emit()
	})
	if err != nil {
		return nil, err
	}
	regs.Add(memberCancel)

	path := commentsPath(groupID, materialID)
	threadCancel, err := s.store.Subscribe(ctx, path, func(snap remote.Snapshot, err error) {
		if err != nil {
			fn(Thread{MaterialID: materialID}, &faults.RemoteReadError{Path: path, Err: err})
			return
		}
		decoded := map[string]models.Comment{}
		if derr := snap.Decode(&decoded); derr != nil {
			fn(Thread{MaterialID: materialID}, &faults.RemoteReadError{Path: path, Err: derr})
			return
		}
		mu.Lock()
		raw = decoded
		haveThread = true
		mu.Unlock()
		emit()
	})
	if err != nil {
		regs.Close()
		return nil, &faults.RemoteReadError{Path: path, Err: err}
	}
	regs.Add(threadCancel)

	return regs.Close, nil
}

// buildThread orders comments and replies oldest first, breaking equal
// timestamps by id so the layout is stable across clients.
func buildThread(materialID string, raw map[string]models.Comment) Thread {
	t := Thread{MaterialID: materialID}
	for id, c := range raw {
		if c.ID == "" {
			c.ID = id
		}
		tc := ThreadComment{ID: c.ID, Text: c.Text, Author: c.Author, Timestamp: c.Timestamp}
		for rid, r := range c.Replies {
			if r.ID == "" {
				r.ID = rid
			}
			tc.Replies = append(tc.Replies, r)
		}
		sort.Slice(tc.Replies, func(i, j int) bool {
			a, b := tc.Replies[i], tc.Replies[j]
			if a.Timestamp != b.Timestamp {
				return a.Timestamp < b.Timestamp
			}
			return a.ID < b.ID
		})
		t.Comments = append(t.Comments, tc)
	}
	sort.Slice(t.Comments, func(i, j int) bool {
		a, b := t.Comments[i], t.Comments[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.ID < b.ID
	})
	return t
}

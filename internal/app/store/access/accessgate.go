// internal/app/store/access/accessgate.go

// Package accessgate owns group membership: joining, leaving, and the
// live membership checks that gate every material and comment read.
//
// Membership is written twice on join, once under the user
// (users/{uid}/groups/{gid}) for fast "am I a member" checks, and once
// under the group (groups/{gid}/members/{uid}) as a denormalized roster
// record. Leave clears both. Both writes are idempotent, so a retried
// join or leave converges to the same state.
package accessgate

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/virtualstudy/studypoint/internal/app/store/remote"
	"github.com/virtualstudy/studypoint/internal/app/system/identity"
	"github.com/virtualstudy/studypoint/internal/app/system/timeouts"
	"github.com/virtualstudy/studypoint/internal/domain/faults"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

// Gate performs membership operations against the remote store.
type Gate struct {
	store remote.Store
	log   *zap.Logger
	now   func() time.Time
}

// New builds a Gate on the given store.
func New(store remote.Store, logger *zap.Logger) *Gate {
	return &Gate{store: store, log: logger, now: time.Now}
}

// SetClock overrides the join-time clock. Test hook.
func (g *Gate) SetClock(now func() time.Time) { g.now = now }

func membershipPath(userID, groupID string) string {
	return remote.JoinPath("users", userID, "groups", groupID)
}

func memberPath(groupID, userID string) string {
	return remote.JoinPath("groups", groupID, "members", userID)
}

// Join marks the user as a member of the group and records the roster
// entry. Safe to call when already a member.
func (g *Gate) Join(ctx context.Context, user models.User, groupID string) error {
	if user.UID == "" {
		return &faults.ValidationError{Field: "user", Reason: "uid is required"}
	}
	if !models.ValidGroupID(groupID) {
		return &faults.ValidationError{Field: "group", Reason: "unknown group " + groupID}
	}

	member := identity.MemberRecord(user, g.now().UnixMilli())

	flagPath := membershipPath(user.UID, groupID)
	if err := g.store.Write(ctx, flagPath, map[string]any{"joinedAt": member.JoinedAt}); err != nil {
		return &faults.RemoteWriteError{Path: flagPath, Err: err}
	}
	rosterPath := memberPath(groupID, user.UID)
	if err := g.store.Write(ctx, rosterPath, member); err != nil {
		return &faults.RemoteWriteError{Path: rosterPath, Err: err}
	}

	g.log.Info("user joined group",
		zap.String("uid", user.UID), zap.String("group", groupID))
	return nil
}

// Leave clears both membership records. Safe to call when not a member.
func (g *Gate) Leave(ctx context.Context, user models.User, groupID string) error {
	if user.UID == "" {
		return &faults.ValidationError{Field: "user", Reason: "uid is required"}
	}
	if !models.ValidGroupID(groupID) {
		return &faults.ValidationError{Field: "group", Reason: "unknown group " + groupID}
	}

	flagPath := membershipPath(user.UID, groupID)
	if err := g.store.Write(ctx, flagPath, nil); err != nil {
		return &faults.RemoteWriteError{Path: flagPath, Err: err}
	}
	rosterPath := memberPath(groupID, user.UID)
	if err := g.store.Write(ctx, rosterPath, nil); err != nil {
		return &faults.RemoteWriteError{Path: rosterPath, Err: err}
	}

	g.log.Info("user left group",
		zap.String("uid", user.UID), zap.String("group", groupID))
	return nil
}

// IsMember answers a one-shot membership check: the first snapshot the
// subscription delivers. Staleness is bounded only by the store's own
// propagation delay.
func (g *Gate) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	type result struct {
		member bool
		err    error
	}
	ch := make(chan result, 1)

	path := membershipPath(userID, groupID)
	cancel, err := g.store.Subscribe(ctx, path, func(snap remote.Snapshot, err error) {
		select {
		case ch <- result{member: snap.Exists, err: err}:
		default:
		}
	})
	if err != nil {
		return false, &faults.RemoteReadError{Path: path, Err: err}
	}
	defer cancel()

	select {
	case r := <-ch:
		if r.err != nil {
			return false, &faults.RemoteReadError{Path: path, Err: r.err}
		}
		return r.member, nil
	case <-time.After(timeouts.Medium()):
		return false, &faults.TimeoutError{Op: "membership check"}
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Watch streams the live membership flag. fn observes the value after
// every change; errors from the underlying subscription are passed
// through as RemoteReadError. The returned cancel must be called when
// the consuming view loses interest.
func (g *Gate) Watch(ctx context.Context, userID, groupID string, fn func(bool, error)) (func(), error) {
	path := membershipPath(userID, groupID)
	cancel, err := g.store.Subscribe(ctx, path, func(snap remote.Snapshot, err error) {
		if err != nil {
			fn(false, &faults.RemoteReadError{Path: path, Err: err})
			return
		}
		fn(snap.Exists, nil)
	})
	if err != nil {
		return nil, &faults.RemoteReadError{Path: path, Err: err}
	}
	return cancel, nil
}

// Roster streams the group's member list, ordered by join time (ties by
// uid so the order is stable).
func (g *Gate) Roster(ctx context.Context, groupID string, fn func([]models.Member, error)) (func(), error) {
	if !models.ValidGroupID(groupID) {
		return nil, &faults.ValidationError{Field: "group", Reason: "unknown group " + groupID}
	}

	path := remote.JoinPath("groups", groupID, "members")
	cancel, err := g.store.Subscribe(ctx, path, func(snap remote.Snapshot, err error) {
		if err != nil {
			fn(nil, &faults.RemoteReadError{Path: path, Err: err})
			return
		}
		var byID map[string]models.Member
		if err := snap.Decode(&byID); err != nil {
			fn(nil, &faults.RemoteReadError{Path: path, Err: err})
			return
		}
		members := make([]models.Member, 0, len(byID))
		for uid, m := range byID {
			if m.UID == "" {
				m.UID = uid
			}
			members = append(members, m)
		}
		sort.Slice(members, func(i, j int) bool {
			if members[i].JoinedAt != members[j].JoinedAt {
				return members[i].JoinedAt < members[j].JoinedAt
			}
			return members[i].UID < members[j].UID
		})
		fn(members, nil)
	})
	if err != nil {
		return nil, &faults.RemoteReadError{Path: path, Err: err}
	}
	return cancel, nil
}

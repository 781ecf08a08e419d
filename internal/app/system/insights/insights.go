// internal/app/system/insights/insights.go

// Package insights derives dashboard statistics from the live material
// and membership feeds. Nothing is computed incrementally: every query
// walks the full current state, so a missed or reordered delivery can
// never leave a counter drifted.
package insights

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	materialstore "github.com/virtualstudy/studypoint/internal/app/store/materials"
	"github.com/virtualstudy/studypoint/internal/app/store/remote"
	"github.com/virtualstudy/studypoint/internal/app/system/listeners"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

// RecentWindow is the trailing wall-clock window counted as "recent
// activity" in group stats.
const RecentWindow = 7 * 24 * time.Hour

// HighlightCount caps the global recent and popular lists.
const HighlightCount = 5

// GroupStats describes one group's current state.
type GroupStats struct {
	Group         models.Group `json:"group"`
	MemberCount   int          `json:"memberCount"`
	MaterialCount int          `json:"materialCount"`
	CommentCount  int          `json:"commentCount"`
	// TotalReuses sums reuseCount across the group's materials.
	TotalReuses int `json:"totalReuses"`
	// RecentUploads counts materials uploaded inside RecentWindow.
	RecentUploads int `json:"recentUploads"`
}

// UserStats describes one user's share activity: what they uploaded and
// the engagement those uploads drew. Comments the user left on other
// people's materials are not theirs to count here.
type UserStats struct {
	UID              string `json:"uid"`
	Uploads          int    `json:"uploads"`
	ReuseReceived    int    `json:"reuseReceived"`
	CommentsReceived int    `json:"commentsReceived"`
}

// Overview is the global dashboard payload.
type Overview struct {
	Groups         []GroupStats      `json:"groups"`
	Recent         []models.Material `json:"recent"`
	Popular        []models.Material `json:"popular"`
	TotalMaterials int               `json:"totalMaterials"`
}

// Aggregator keeps the live state the stats are derived from.
type Aggregator struct {
	store remote.Store
	log   *zap.Logger
	regs  *listeners.Registry
	now   func() time.Time

	mu        sync.Mutex
	materials map[string]map[string]models.Material // group id -> material id -> material
	members   map[string]map[string]models.Member   // group id -> uid -> member
}

// New builds an Aggregator. Call Start before querying.
func New(store remote.Store, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		store:     store,
		log:       logger,
		regs:      listeners.New(),
		now:       time.Now,
		materials: map[string]map[string]models.Material{},
		members:   map[string]map[string]models.Member{},
	}
}

// SetClock overrides the clock used for the recent-activity window.
// Test hook.
func (a *Aggregator) SetClock(now func() time.Time) { a.now = now }

// Start opens material and membership subscriptions for every group.
func (a *Aggregator) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, grp := range models.Groups() {
		gid := grp.ID
		g.Go(func() error {
			cancel, err := a.watchMaterials(ctx, gid)
			if err != nil {
				return err
			}
			a.regs.Add(cancel)
			return nil
		})
		g.Go(func() error {
			cancel, err := a.watchMembers(ctx, gid)
			if err != nil {
				return err
			}
			a.regs.Add(cancel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.regs.Close()
		return err
	}
	return nil
}

// Close tears down every subscription. Idempotent.
func (a *Aggregator) Close() { a.regs.Close() }

func (a *Aggregator) watchMaterials(ctx context.Context, groupID string) (func(), error) {
	path := materialstore.MaterialsPath(groupID)
	return a.store.Subscribe(ctx, path, func(snap remote.Snapshot, err error) {
		if err != nil {
			a.log.Warn("insights material feed error", zap.String("group", groupID), zap.Error(err))
			return
		}
		decoded := map[string]models.Material{}
		if derr := snap.Decode(&decoded); derr != nil {
			return
		}
		for id, m := range decoded {
			if m.ID == "" {
				m.ID = id
			}
			if m.GroupID == "" {
				m.GroupID = groupID
			}
			decoded[id] = m
		}
		a.mu.Lock()
		a.materials[groupID] = decoded
		a.mu.Unlock()
	})
}

func (a *Aggregator) watchMembers(ctx context.Context, groupID string) (func(), error) {
	path := remote.JoinPath("groups", groupID, "members")
	return a.store.Subscribe(ctx, path, func(snap remote.Snapshot, err error) {
		if err != nil {
			a.log.Warn("insights member feed error", zap.String("group", groupID), zap.Error(err))
			return
		}
		decoded := map[string]models.Member{}
		if derr := snap.Decode(&decoded); derr != nil {
			return
		}
		a.mu.Lock()
		a.members[groupID] = decoded
		a.mu.Unlock()
	})
}

// Overview computes the global dashboard from current state.
func (a *Aggregator) Overview() Overview {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-RecentWindow).UnixMilli()
	var all []models.Material
	out := Overview{}

	for _, grp := range models.Groups() {
		stats := GroupStats{Group: grp, MemberCount: len(a.members[grp.ID])}
		for _, m := range a.materials[grp.ID] {
			stats.MaterialCount++
			stats.CommentCount += m.CommentCount()
			stats.TotalReuses += m.ReuseCount
			if m.UploadedAt >= cutoff {
				stats.RecentUploads++
			}
			all = append(all, m)
		}
		out.Groups = append(out.Groups, stats)
	}

	out.TotalMaterials = len(all)
	out.Recent = topBy(all, HighlightCount, byRecency)
	out.Popular = topBy(all, HighlightCount, byPopularity)
	return out
}

// User computes one user's contribution stats across all groups.
func (a *Aggregator) User(uid string) UserStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := UserStats{UID: uid}
	for _, mats := range a.materials {
		for _, m := range mats {
			if m.UploadedBy.UID != uid {
				continue
			}
			stats.Uploads++
			stats.ReuseReceived += m.ReuseCount
			stats.CommentsReceived += m.CommentCount()
		}
	}
	return stats
}

// Group computes one group's stats, or false for an unknown group.
func (a *Aggregator) Group(groupID string) (GroupStats, bool) {
	grp, ok := models.GroupByID(groupID)
	if !ok {
		return GroupStats{}, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-RecentWindow).UnixMilli()
	stats := GroupStats{Group: grp, MemberCount: len(a.members[groupID])}
	for _, m := range a.materials[groupID] {
		stats.MaterialCount++
		stats.CommentCount += m.CommentCount()
		stats.TotalReuses += m.ReuseCount
		if m.UploadedAt >= cutoff {
			stats.RecentUploads++
		}
	}
	return stats, true
}

// byRecency orders newest first, id as the final tie-break.
func byRecency(a, b models.Material) bool {
	if a.UploadedAt != b.UploadedAt {
		return a.UploadedAt > b.UploadedAt
	}
	return a.ID < b.ID
}

// byPopularity orders by reuse count, then recency, then id. Equal-count
// materials therefore surface the newer upload first.
func byPopularity(a, b models.Material) bool {
	if a.ReuseCount != b.ReuseCount {
		return a.ReuseCount > b.ReuseCount
	}
	return byRecency(a, b)
}

func topBy(ms []models.Material, n int, less func(a, b models.Material) bool) []models.Material {
	sorted := append([]models.Material(nil), ms...)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

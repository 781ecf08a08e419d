// internal/app/system/search/search.go

// Package search keeps a cross-group index fed by live subscriptions and
// answers substring queries over materials, groups, and people.
//
// The index is eventually consistent: each group's subscription updates
// independently, and a group whose subscription is erroring is marked
// degraded rather than blocking results from the healthy ones.
package search

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dalemusser/waffle/pantry/text"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	materialstore "github.com/virtualstudy/studypoint/internal/app/store/materials"
	"github.com/virtualstudy/studypoint/internal/app/store/remote"
	"github.com/virtualstudy/studypoint/internal/app/system/identity"
	"github.com/virtualstudy/studypoint/internal/app/system/listeners"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

// MaterialHit is a matched material together with its group's display
// name.
type MaterialHit struct {
	Material  models.Material `json:"material"`
	GroupName string          `json:"groupName"`
}

// GroupHit is a matched group annotated with its live material count.
type GroupHit struct {
	models.Group
	MaterialCount int `json:"materialCount"`
}

// UserHit is a person known to the index. Source reports where the
// identity was seen: "uploader" entries carry a uid, "chat" entries are
// display names only. MaterialsShared and LastActive are derived from
// the activity the index has observed, so they trail reality the same
// way the rest of the index does.
type UserHit struct {
	UID             string `json:"uid,omitempty"`
	Display         string `json:"display"`
	Source          string `json:"source"`
	MaterialsShared int    `json:"materialsShared"`
	LastActive      int64  `json:"lastActive,omitempty"`
}

// Results is one query's answer, bucketed by kind.
type Results struct {
	Term      string        `json:"term"`
	Materials []MaterialHit `json:"materials"`
	Groups    []GroupHit    `json:"groups"`
	Users     []UserHit     `json:"users"`
	// DegradedGroups lists groups whose index is stale because their
	// subscription is failing. Their last-known materials still match.
	DegradedGroups []string `json:"degradedGroups,omitempty"`
}

// Aggregator is the live search index.
type Aggregator struct {
	store remote.Store
	log   *zap.Logger
	regs  *listeners.Registry

	mu        sync.Mutex
	materials map[string]map[string]models.Material // group id -> material id -> material
	degraded  map[string]error
	uploaders map[string]models.User // uid -> last-seen user record
	chatters  map[string]int64       // chat display name -> latest message time
}

// New builds an Aggregator. Call Start before Query.
func New(store remote.Store, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		store:     store,
		log:       logger,
		regs:      listeners.New(),
		materials: map[string]map[string]models.Material{},
		degraded:  map[string]error{},
		uploaders: map[string]models.User{},
		chatters:  map[string]int64{},
	}
}

// Start opens one subscription per group plus the chat feed. All
// subscriptions are opened concurrently; if any fails to open, the ones
// that succeeded are torn down and the first error is returned.
func (a *Aggregator) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, grp := range models.Groups() {
		grp := grp
		g.Go(func() error {
			cancel, err := a.watchGroup(ctx, grp.ID)
			if err != nil {
				return err
			}
			a.regs.Add(cancel)
			return nil
		})
	}
	g.Go(func() error {
		cancel, err := a.watchChat(ctx)
		if err != nil {
			return err
		}
		a.regs.Add(cancel)
		return nil
	})

	if err := g.Wait(); err != nil {
		a.regs.Close()
		return err
	}
	a.log.Info("search index started", zap.Int("groups", len(models.Groups())))
	return nil
}

// Close tears down every subscription. Idempotent.
func (a *Aggregator) Close() { a.regs.Close() }

func (a *Aggregator) watchGroup(ctx context.Context, groupID string) (func(), error) {
	path := materialstore.MaterialsPath(groupID)
	return a.store.Subscribe(ctx, path, func(snap remote.Snapshot, err error) {
		if err != nil {
			a.mu.Lock()
			a.degraded[groupID] = err
			a.mu.Unlock()
			a.log.Warn("search index degraded", zap.String("group", groupID), zap.Error(err))
			return
		}
		decoded := map[string]models.Material{}
		if derr := snap.Decode(&decoded); derr != nil {
			a.mu.Lock()
			a.degraded[groupID] = derr
			a.mu.Unlock()
			return
		}
		a.mu.Lock()
		delete(a.degraded, groupID)
		for id, m := range decoded {
			if m.ID == "" {
				m.ID = id
			}
			if m.GroupID == "" {
				m.GroupID = groupID
			}
			decoded[id] = m
			if !m.UploadedBy.IsZero() {
				a.uploaders[m.UploadedBy.UID] = m.UploadedBy
			}
		}
		a.materials[groupID] = decoded
		a.mu.Unlock()
	})
}

func (a *Aggregator) watchChat(ctx context.Context) (func(), error) {
	return a.store.Subscribe(ctx, "messages", func(snap remote.Snapshot, err error) {
		if err != nil {
			// Chat only feeds the people directory; a failing feed leaves
			// the directory stale, not the whole index degraded.
			a.log.Warn("search chat feed error", zap.Error(err))
			return
		}
		decoded := map[string]models.ChatMessage{}
		if derr := snap.Decode(&decoded); derr != nil {
			return
		}
		a.mu.Lock()
		for _, m := range decoded {
			if m.User == "" {
				continue
			}
			if last, ok := a.chatters[m.User]; !ok || m.CreatedAt > last {
				a.chatters[m.User] = m.CreatedAt
			}
		}
		a.mu.Unlock()
	})
}

// Query answers a substring search over the current index. Matching is
// case-insensitive. An empty term returns empty buckets.
func (a *Aggregator) Query(term string) Results {
	res := Results{Term: strings.TrimSpace(term)}
	needle := text.Fold(res.Term)

	a.mu.Lock()
	defer a.mu.Unlock()

	for gid := range a.degraded {
		res.DegradedGroups = append(res.DegradedGroups, gid)
	}
	sort.Strings(res.DegradedGroups)

	if needle == "" {
		return res
	}

	for gid, mats := range a.materials {
		grp, _ := models.GroupByID(gid)
		for _, m := range mats {
			if materialMatches(m, grp.Name, needle) {
				res.Materials = append(res.Materials, MaterialHit{Material: m, GroupName: grp.Name})
			}
		}
	}
	sort.Slice(res.Materials, func(i, j int) bool {
		a, b := res.Materials[i].Material, res.Materials[j].Material
		if a.UploadedAt != b.UploadedAt {
			return a.UploadedAt > b.UploadedAt
		}
		return a.ID < b.ID
	})

	for _, g := range models.Groups() {
		if strings.Contains(text.Fold(g.Name), needle) || strings.Contains(text.Fold(g.Description), needle) {
			res.Groups = append(res.Groups, GroupHit{Group: g, MaterialCount: len(a.materials[g.ID])})
		}
	}

	// Per-uploader activity: how many materials the index has seen from
	// them and when the latest landed.
	type activity struct {
		shared int
		last   int64
	}
	acts := map[string]*activity{}
	for _, mats := range a.materials {
		for _, m := range mats {
			if m.UploadedBy.IsZero() {
				continue
			}
			act := acts[m.UploadedBy.UID]
			if act == nil {
				act = &activity{}
				acts[m.UploadedBy.UID] = act
			}
			act.shared++
			if m.UploadedAt > act.last {
				act.last = m.UploadedAt
			}
		}
	}

	// Uploaders and chat authors feed one directory. Chat records carry
	// only a display string, so when it differs from the uploader-side
	// display there is nothing to correlate on and the same person shows
	// up twice. Accepted.
	seen := map[string]bool{}
	for uid, u := range a.uploaders {
		display := identity.Display(u)
		if !strings.Contains(text.Fold(display), needle) && !strings.Contains(text.Fold(u.Email), needle) {
			continue
		}
		hit := UserHit{UID: uid, Display: display, Source: "uploader"}
		if act := acts[uid]; act != nil {
			hit.MaterialsShared = act.shared
			hit.LastActive = act.last
		}
		if last, ok := a.chatters[display]; ok && last > hit.LastActive {
			hit.LastActive = last
		}
		res.Users = append(res.Users, hit)
		seen[display] = true
	}
	for name, last := range a.chatters {
		if seen[name] {
			continue
		}
		if strings.Contains(text.Fold(name), needle) {
			res.Users = append(res.Users, UserHit{Display: name, Source: "chat", LastActive: last})
		}
	}
	sort.Slice(res.Users, func(i, j int) bool {
		if res.Users[i].Display != res.Users[j].Display {
			return res.Users[i].Display < res.Users[j].Display
		}
		return res.Users[i].Source < res.Users[j].Source
	})

	return res
}

func materialMatches(m models.Material, groupName, foldedNeedle string) bool {
	if strings.Contains(text.Fold(m.Title), foldedNeedle) {
		return true
	}
	if strings.Contains(text.Fold(m.Description), foldedNeedle) {
		return true
	}
	if strings.Contains(text.Fold(groupName), foldedNeedle) {
		return true
	}
	return strings.Contains(text.Fold(identity.Display(m.UploadedBy)), foldedNeedle)
}

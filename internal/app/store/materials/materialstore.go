// internal/app/store/materials/materialstore.go

// Package materialstore keeps live, per-group collections of shared
// materials and the filtered views derived from them.
//
// Reads are gated by membership: a collection opened by a non-member
// reports an explicit restricted state, which is not the same thing as
// an empty group. Writes go through Create (the upload coordinator's
// commit step) and IncrementReuse; both re-check membership.
package materialstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dalemusser/waffle/pantry/text"
	"go.uber.org/zap"

	accessgate "github.com/virtualstudy/studypoint/internal/app/store/access"
	"github.com/virtualstudy/studypoint/internal/app/store/remote"
	"github.com/virtualstudy/studypoint/internal/app/system/identity"
	"github.com/virtualstudy/studypoint/internal/app/system/listeners"
	"github.com/virtualstudy/studypoint/internal/domain/faults"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

// Sort orders for the derived view.
const (
	SortNewest  = "newest"
	SortOldest  = "oldest"
	SortPopular = "popular"
	SortTitle   = "title"
)

// Type filters for the derived view.
const (
	TypeAll  = "all"
	TypeFile = models.MaterialTypeFile
	TypeLink = models.MaterialTypeLink
)

// ValidSort reports whether s names a sort order.
func ValidSort(s string) bool {
	switch s {
	case SortNewest, SortOldest, SortPopular, SortTitle:
		return true
	}
	return false
}

// ValidType reports whether s names a type filter.
func ValidType(s string) bool {
	switch s {
	case TypeAll, TypeFile, TypeLink:
		return true
	}
	return false
}

// View is the derived, render-ready state of one collection.
type View struct {
	// Restricted is set when the observing user is not a member of the
	// group. No materials are exposed in that state.
	Restricted bool
	// Err holds the last read error, when the subscription is degraded.
	Err error
	// Materials is the filtered, sorted window over the group's
	// materials.
	Materials []models.Material
	// Total is the unfiltered size of the group's collection.
	Total int
}

// Store creates live collections and performs material writes.
type Store struct {
	store remote.Store
	gate  *accessgate.Gate
	log   *zap.Logger
}

// New builds a Store.
func New(store remote.Store, gate *accessgate.Gate, logger *zap.Logger) *Store {
	return &Store{store: store, gate: gate, log: logger}
}

// MaterialsPath is the store path of a group's material collection.
func MaterialsPath(groupID string) string {
	return remote.JoinPath("groups", groupID, "materials")
}

func materialPath(groupID, materialID string) string {
	return remote.JoinPath("groups", groupID, "materials", materialID)
}

// GenerateID returns a fresh, collision-free material id for the group.
func (s *Store) GenerateID(groupID string) string {
	return s.store.GenerateKey(MaterialsPath(groupID))
}

// Create writes a new material record. Only members of the target group
// may create materials; the material's id must come from GenerateID so
// concurrent creates never overwrite each other.
func (s *Store) Create(ctx context.Context, user models.User, m models.Material) error {
	if !models.ValidGroupID(m.GroupID) {
		return &faults.ValidationError{Field: "group", Reason: "unknown group " + m.GroupID}
	}
	member, err := s.gate.IsMember(ctx, user.UID, m.GroupID)
	if err != nil {
		return err
	}
	if !member {
		return &faults.AccessDeniedError{UserID: user.UID, GroupID: m.GroupID}
	}

	path := materialPath(m.GroupID, m.ID)
	if err := s.store.Write(ctx, path, m); err != nil {
		return &faults.RemoteWriteError{Path: path, Err: err}
	}
	s.log.Info("material created",
		zap.String("group", m.GroupID),
		zap.String("material", m.ID),
		zap.String("uploader", m.UploadedBy.UID))
	return nil
}

// IncrementReuse writes the material's reuse count as the caller's
// current value plus one. This is a read-modify-write on a scalar, not a
// conflict-free counter: two clients incrementing at once can lose one
// update. The count never decreases, because every writer only ever
// writes a value above the one it read.
func (s *Store) IncrementReuse(ctx context.Context, user models.User, m models.Material) error {
	member, err := s.gate.IsMember(ctx, user.UID, m.GroupID)
	if err != nil {
		return err
	}
	if !member {
		return &faults.AccessDeniedError{UserID: user.UID, GroupID: m.GroupID}
	}

	path := remote.JoinPath("groups", m.GroupID, "materials", m.ID, "reuseCount")
	if err := s.store.Write(ctx, path, m.ReuseCount+1); err != nil {
		return &faults.RemoteWriteError{Path: path, Err: err}
	}
	return nil
}

// Collection is a live view of one group's materials for one observing
// user. Close must be called when the view is no longer interesting.
type Collection struct {
	groupID string
	regs    *listeners.Registry
	ready   chan struct{}

	mu         sync.Mutex
	sawMember  bool
	sawLoad    bool
	member     bool
	readErr    error
	materials  map[string]models.Material
	term       string
	typ        string
	sortBy     string
	onChange   func(View)
}

// Subscribe opens a live collection for the group as seen by user.
// onChange, when non-nil, fires after every snapshot or parameter change
// with the recomputed view. Callbacks arrive on the store's dispatch
// queue; keep them short.
func (s *Store) Subscribe(ctx context.Context, user models.User, groupID string, onChange func(View)) (*Collection, error) {
	if !models.ValidGroupID(groupID) {
		return nil, &faults.ValidationError{Field: "group", Reason: "unknown group " + groupID}
	}

	c := &Collection{
		groupID:   groupID,
		regs:      listeners.New(),
		ready:     make(chan struct{}),
		materials: map[string]models.Material{},
		typ:       TypeAll,
		sortBy:    SortNewest,
		onChange:  onChange,
	}

	memberCancel, err := s.gate.Watch(ctx, user.UID, groupID, func(member bool, err error) {
		c.mu.Lock()
		if err == nil {
			c.member = member
		}
		c.sawMember = true
		c.readyLocked()
		c.mu.Unlock()
		c.notify()
	})
	if err != nil {
		return nil, err
	}
	c.regs.Add(memberCancel)

	path := MaterialsPath(groupID)
	matCancel, err := s.store.Subscribe(ctx, path, func(snap remote.Snapshot, err error) {
		c.mu.Lock()
		c.sawLoad = true
		c.readyLocked()
		if err != nil {
			c.readErr = &faults.RemoteReadError{Path: path, Err: err}
			c.mu.Unlock()
			c.notify()
			return
		}
		c.readErr = nil
		decoded := map[string]models.Material{}
		if derr := snap.Decode(&decoded); derr != nil {
			c.readErr = &faults.RemoteReadError{Path: path, Err: derr}
			c.mu.Unlock()
			c.notify()
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
		c.materials = decoded
		c.mu.Unlock()
		c.notify()
	})
	if err != nil {
		c.regs.Close()
		return nil, &faults.RemoteReadError{Path: path, Err: err}
	}
	c.regs.Add(matCancel)

	return c, nil
}

// Ready is closed once both the membership and material feeds have
// delivered their initial state, which is when View first reflects the
// remote store rather than zero values.
func (c *Collection) Ready() <-chan struct{} { return c.ready }

func (c *Collection) readyLocked() {
	if c.sawMember && c.sawLoad {
		select {
		case <-c.ready:
		default:
			close(c.ready)
		}
	}
}

// SetFilter updates the substring filter and recomputes the view. The
// match is case-insensitive over title, description, and the uploader's
// resolved display name.
func (c *Collection) SetFilter(term string) {
	c.mu.Lock()
	c.term = strings.TrimSpace(term)
	c.mu.Unlock()
	c.notify()
}

// SetType updates the type filter (all, file, link).
func (c *Collection) SetType(typ string) {
	if !ValidType(typ) {
		typ = TypeAll
	}
	c.mu.Lock()
	c.typ = typ
	c.mu.Unlock()
	c.notify()
}

// SetSort updates the sort order.
func (c *Collection) SetSort(sortBy string) {
	if !ValidSort(sortBy) {
		sortBy = SortNewest
	}
	c.mu.Lock()
	c.sortBy = sortBy
	c.mu.Unlock()
	c.notify()
}

// View recomputes and returns the current derived view.
func (c *Collection) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Close releases the collection's subscriptions. Idempotent.
func (c *Collection) Close() {
	c.regs.Close()
}

func (c *Collection) notify() {
	c.mu.Lock()
	fn := c.onChange
	var v View
	if fn != nil {
		v = c.viewLocked()
	}
	c.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

func (c *Collection) viewLocked() View {
	if c.readErr != nil {
		return View{Err: c.readErr, Restricted: !c.member}
	}
	if !c.member {
		return View{Restricted: true}
	}

	filtered := make([]models.Material, 0, len(c.materials))
	needle := text.Fold(c.term)
	for _, m := range c.materials {
		if c.typ != TypeAll && m.Type != c.typ {
			continue
		}
		if needle != "" && !materialMatches(m, needle) {
			continue
		}
		filtered = append(filtered, m)
	}
	sortMaterials(filtered, c.sortBy)
	return View{Materials: filtered, Total: len(c.materials)}
}

func materialMatches(m models.Material, foldedNeedle string) bool {
	if strings.Contains(text.Fold(m.Title), foldedNeedle) {
		return true
	}
	if strings.Contains(text.Fold(m.Description), foldedNeedle) {
		return true
	}
	return strings.Contains(text.Fold(identity.Display(m.UploadedBy)), foldedNeedle)
}

// sortMaterials orders materials deterministically. The popular order
// breaks reuse-count ties by recency and then id, so equal counts still
// produce a stable listing.
func sortMaterials(ms []models.Material, sortBy string) {
	sort.Slice(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		switch sortBy {
		case SortOldest:
			if a.UploadedAt != b.UploadedAt {
				return a.UploadedAt < b.UploadedAt
			}
		case SortPopular:
			if a.ReuseCount != b.ReuseCount {
				return a.ReuseCount > b.ReuseCount
			}
			if a.UploadedAt != b.UploadedAt {
				return a.UploadedAt > b.UploadedAt
			}
		case SortTitle:
			at, bt := text.Fold(a.Title), text.Fold(b.Title)
			if at != bt {
				return at < bt
			}
		default: // SortNewest
			if a.UploadedAt != b.UploadedAt {
				return a.UploadedAt > b.UploadedAt
			}
		}
		return a.ID < b.ID
	})
}

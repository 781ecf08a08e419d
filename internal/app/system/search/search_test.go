// internal/app/system/search/search_test.go

package search_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	accessgate "github.com/virtualstudy/studypoint/internal/app/store/access"
	chatstore "github.com/virtualstudy/studypoint/internal/app/store/chat"
	materialstore "github.com/virtualstudy/studypoint/internal/app/store/materials"
	"github.com/virtualstudy/studypoint/internal/app/store/remote"
	"github.com/virtualstudy/studypoint/internal/app/system/search"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

type env struct {
	mem  *remote.Memory
	gate *accessgate.Gate
	mats *materialstore.Store
	chat *chatstore.Stream
	agg  *search.Aggregator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mem := remote.NewMemory()
	t.Cleanup(mem.Close)
	gate := accessgate.New(mem, zap.NewNop())
	e := &env{
		mem:  mem,
		gate: gate,
		mats: materialstore.New(mem, gate, zap.NewNop()),
		chat: chatstore.New(mem, zap.NewNop()),
		agg:  search.New(mem, zap.NewNop()),
	}
	if err := e.agg.Start(context.Background()); err != nil {
		t.Fatalf("start aggregator: %v", err)
	}
	t.Cleanup(e.agg.Close)
	return e
}

func (e *env) addMaterial(t *testing.T, u models.User, m models.Material) {
	t.Helper()
	ctx := context.Background()
	if err := e.gate.Join(ctx, u, m.GroupID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if m.ID == "" {
		m.ID = e.mats.GenerateID(m.GroupID)
	}
	m.UploadedBy = u
	if err := e.mats.Create(ctx, u, m); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func waitResults(t *testing.T, agg *search.Aggregator, term string, ok func(search.Results) bool) search.Results {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var last search.Results
	for time.Now().Before(deadline) {
		last = agg.Query(term)
		if ok(last) {
			return last
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("results never converged for %q, last: %+v", term, last)
	return search.Results{}
}

func TestQuery_CrossGroupMaterials(t *testing.T) {
	e := newEnv(t)
	ann := models.User{UID: "u1", Email: "ann@example.com"}
	bob := models.User{UID: "u2", Email: "bob@example.com"}

	e.addMaterial(t, ann, models.Material{
		GroupID: "programming", Title: "Sorting Algorithms", Type: models.MaterialTypeLink,
		URL: "https://example.com/sorting", UploadedAt: 2000,
	})
	e.addMaterial(t, bob, models.Material{
		GroupID: "aptitude", Title: "Algo puzzles for aptitude rounds", Type: models.MaterialTypeLink,
		URL: "https://example.com/puzzles", UploadedAt: 1000,
	})
	e.addMaterial(t, ann, models.Material{
		GroupID: "english", Title: "Idioms", Type: models.MaterialTypeLink,
		URL: "https://example.com/idioms", UploadedAt: 3000,
	})

	res := waitResults(t, e.agg, "algo", func(r search.Results) bool { return len(r.Materials) == 2 })

	// Newest first, and each hit carries its group's display name.
	if res.Materials[0].Material.Title != "Sorting Algorithms" || res.Materials[0].GroupName != "Programming" {
		t.Fatalf("first hit: %+v", res.Materials[0])
	}
	if res.Materials[1].GroupName != "Aptitude" {
		t.Fatalf("second hit: %+v", res.Materials[1])
	}
	// "algo" also hits the Programming group via its description.
	if len(res.Groups) != 1 || res.Groups[0].ID != "programming" || res.Groups[0].MaterialCount != 1 {
		t.Fatalf("groups: %+v", res.Groups)
	}
}

func TestQuery_GroupNameMatchesMaterials(t *testing.T) {
	e := newEnv(t)
	ann := models.User{UID: "u1", Email: "ann@example.com"}
	e.addMaterial(t, ann, models.Material{
		GroupID: "programming", Title: "Notes", Type: models.MaterialTypeLink,
		URL: "https://example.com/notes", UploadedAt: 1000,
	})

	// The group's display name alone pulls its materials into the
	// materials bucket.
	res := waitResults(t, e.agg, "programming", func(r search.Results) bool { return len(r.Materials) == 1 })
	if res.Materials[0].Material.Title != "Notes" || res.Materials[0].GroupName != "Programming" {
		t.Fatalf("hit: %+v", res.Materials[0])
	}
	if len(res.Groups) != 1 || res.Groups[0].ID != "programming" {
		t.Fatalf("groups: %+v", res.Groups)
	}
	if res.Groups[0].MaterialCount != 1 {
		t.Fatalf("material count = %d, want 1", res.Groups[0].MaterialCount)
	}
}

func TestQuery_GroupBucket(t *testing.T) {
	e := newEnv(t)
	res := e.agg.Query("english")
	if len(res.Groups) != 1 || res.Groups[0].ID != "english" {
		t.Fatalf("groups: %+v", res.Groups)
	}
	// Description text matches too.
	res = e.agg.Query("reasoning")
	if len(res.Groups) != 1 || res.Groups[0].ID != "aptitude" {
		t.Fatalf("groups: %+v", res.Groups)
	}
}

func TestQuery_UserDirectory(t *testing.T) {
	e := newEnv(t)
	uploader := models.User{UID: "u1", Email: "carol@example.com", DisplayName: "Carol Danvers"}
	e.addMaterial(t, uploader, models.Material{
		GroupID: "interview", Title: "Panel tips", Type: models.MaterialTypeLink,
		URL: "https://example.com/tips",
	})
	if _, err := e.chat.Append(context.Background(), models.User{UID: "u2", Email: "carlos@example.com"}, "interview", "hola"); err != nil {
		t.Fatalf("append: %v", err)
	}

	res := waitResults(t, e.agg, "car", func(r search.Results) bool { return len(r.Users) == 2 })
	if res.Users[0].Display != "Carol Danvers" || res.Users[0].Source != "uploader" || res.Users[0].UID != "u1" {
		t.Fatalf("uploader hit: %+v", res.Users[0])
	}
	if res.Users[0].MaterialsShared != 1 {
		t.Fatalf("uploader materials shared = %d, want 1", res.Users[0].MaterialsShared)
	}
	if res.Users[1].Display != "carlos" || res.Users[1].Source != "chat" {
		t.Fatalf("chat hit: %+v", res.Users[1])
	}
	// Chat entries get their last-active time from the server-stamped
	// message.
	if res.Users[1].LastActive <= 0 || res.Users[1].MaterialsShared != 0 {
		t.Fatalf("chat hit annotations: %+v", res.Users[1])
	}
}

func TestQuery_UserEmailAndActivity(t *testing.T) {
	e := newEnv(t)
	carol := models.User{UID: "u1", Email: "carol@example.com", DisplayName: "Carol Danvers"}
	e.addMaterial(t, carol, models.Material{
		GroupID: "interview", Title: "Panel tips", Type: models.MaterialTypeLink,
		URL: "https://x/tips", UploadedAt: 1000,
	})
	e.addMaterial(t, carol, models.Material{
		GroupID: "english", Title: "Essay frames", Type: models.MaterialTypeLink,
		URL: "https://x/frames", UploadedAt: 5000,
	})

	// The display name contains no "example", so this hit can only come
	// from the email match.
	res := waitResults(t, e.agg, "example.com", func(r search.Results) bool { return len(r.Users) == 1 })
	hit := res.Users[0]
	if hit.UID != "u1" || hit.Display != "Carol Danvers" {
		t.Fatalf("hit: %+v", hit)
	}
	if hit.MaterialsShared != 2 {
		t.Fatalf("materials shared = %d, want 2", hit.MaterialsShared)
	}
	if hit.LastActive != 5000 {
		t.Fatalf("last active = %d, want 5000", hit.LastActive)
	}
}

func TestQuery_EmptyTerm(t *testing.T) {
	e := newEnv(t)
	ann := models.User{UID: "u1", Email: "ann@example.com"}
	e.addMaterial(t, ann, models.Material{
		GroupID: "english", Title: "Everything", Type: models.MaterialTypeLink,
		URL: "https://example.com",
	})
	res := e.agg.Query("   ")
	if len(res.Materials) != 0 || len(res.Groups) != 0 || len(res.Users) != 0 {
		t.Fatalf("empty term returned hits: %+v", res)
	}
}

func TestQuery_DegradedGroupReported(t *testing.T) {
	e := newEnv(t)
	ann := models.User{UID: "u1", Email: "ann@example.com"}
	e.addMaterial(t, ann, models.Material{
		GroupID: "english", Title: "Grammar drills", Type: models.MaterialTypeLink,
		URL: "https://example.com/grammar",
	})
	waitResults(t, e.agg, "grammar", func(r search.Results) bool { return len(r.Materials) == 1 })

	// One group's feed starts failing; its last-known index keeps
	// serving and the degradation is reported, while other groups stay
	// live.
	e.mem.FailReads("groups/programming/materials", errors.New("feed down"))
	bob := models.User{UID: "u2", Email: "bob@example.com"}
	if err := e.gate.Join(context.Background(), bob, "programming"); err != nil {
		t.Fatalf("join: %v", err)
	}
	// A write to the failing path triggers an errored delivery.
	if err := e.mem.Write(context.Background(), "groups/programming/materials/m-x", map[string]any{
		"id": "m-x", "title": "unreachable",
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	res := waitResults(t, e.agg, "grammar", func(r search.Results) bool { return len(r.DegradedGroups) == 1 })
	if res.DegradedGroups[0] != "programming" {
		t.Fatalf("degraded: %v", res.DegradedGroups)
	}
	if len(res.Materials) != 1 {
		t.Fatalf("healthy group stopped serving: %+v", res.Materials)
	}
}

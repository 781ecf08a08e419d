package accessgate_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	accessgate "github.com/virtualstudy/studypoint/internal/app/store/access"
	"github.com/virtualstudy/studypoint/internal/app/store/remote"
	"github.com/virtualstudy/studypoint/internal/domain/faults"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

var alice = models.User{UID: "u-alice", Email: "alice@example.com", DisplayName: "Alice"}

func newGate(t *testing.T) (*accessgate.Gate, *remote.Memory) {
	t.Helper()
	store := remote.NewMemory()
	t.Cleanup(store.Close)
	return accessgate.New(store, zap.NewNop()), store
}

func TestGate_JoinThenIsMember(t *testing.T) {
	gate, _ := newGate(t)
	ctx := context.Background()

	if err := gate.Join(ctx, alice, "programming"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	member, err := gate.IsMember(ctx, alice.UID, "programming")
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if !member {
		t.Error("expected membership after join")
	}

	member, err = gate.IsMember(ctx, alice.UID, "english")
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if member {
		t.Error("unexpected membership in group never joined")
	}
}

func TestGate_JoinIsIdempotent(t *testing.T) {
	gate, _ := newGate(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := gate.Join(ctx, alice, "aptitude"); err != nil {
			t.Fatalf("Join %d failed: %v", i, err)
		}
	}
	member, err := gate.IsMember(ctx, alice.UID, "aptitude")
	if err != nil || !member {
		t.Fatalf("expected member after repeated joins, got member=%v err=%v", member, err)
	}
}

func TestGate_LeaveClearsBothRecords(t *testing.T) {
	gate, _ := newGate(t)
	ctx := context.Background()

	if err := gate.Join(ctx, alice, "programming"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := gate.Leave(ctx, alice, "programming"); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	// Leaving again is fine.
	if err := gate.Leave(ctx, alice, "programming"); err != nil {
		t.Fatalf("repeated Leave failed: %v", err)
	}

	member, err := gate.IsMember(ctx, alice.UID, "programming")
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if member {
		t.Error("expected membership cleared after leave")
	}

	var roster []models.Member
	var rosterErr error
	done := make(chan struct{}, 4)
	cancel, err := gate.Roster(ctx, "programming", func(ms []models.Member, err error) {
		roster, rosterErr = ms, err
		done <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Roster failed: %v", err)
	}
	defer cancel()
	<-done
	if rosterErr != nil {
		t.Fatalf("roster callback error: %v", rosterErr)
	}
	if len(roster) != 0 {
		t.Errorf("roster: got %d members, want 0", len(roster))
	}
}

func TestGate_JoinUnknownGroup(t *testing.T) {
	gate, _ := newGate(t)

	err := gate.Join(context.Background(), alice, "botany")
	var verr *faults.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGate_JoinSurfacesRemoteWriteError(t *testing.T) {
	gate, store := newGate(t)

	boom := errors.New("transport down")
	store.FailWrites("users", boom)

	err := gate.Join(context.Background(), alice, "programming")
	var werr *faults.RemoteWriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected RemoteWriteError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("expected wrapped cause to be reachable")
	}
}

func TestGate_WatchObservesJoinAndLeave(t *testing.T) {
	gate, _ := newGate(t)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []bool
	notify := make(chan struct{}, 16)

	cancel, err := gate.Watch(ctx, alice.UID, "english", func(member bool, err error) {
		if err != nil {
			t.Errorf("watch error: %v", err)
			return
		}
		mu.Lock()
		seen = append(seen, member)
		mu.Unlock()
		notify <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer cancel()

	wait := func() {
		select {
		case <-notify:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for watch delivery")
		}
	}

	wait() // initial: not a member
	if err := gate.Join(ctx, alice, "english"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	wait()
	if err := gate.Leave(ctx, alice, "english"); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 3 || seen[0] || !seen[1] || seen[len(seen)-1] {
		t.Errorf("watch sequence: got %v, want false,true,...,false", seen)
	}
}

func TestGate_RosterOrderedByJoinTime(t *testing.T) {
	gate, store := newGate(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	gate.SetClock(func() time.Time { return clock })

	bob := models.User{UID: "u-bob", Email: "bob@example.com"}

	if err := gate.Join(ctx, bob, "programming"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	clock = base.Add(time.Hour)
	if err := gate.Join(ctx, alice, "programming"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	rosters := make(chan []models.Member, 8)
	cancel, err := gate.Roster(ctx, "programming", func(ms []models.Member, err error) {
		if err != nil {
			t.Errorf("roster error: %v", err)
			return
		}
		rosters <- ms
	})
	if err != nil {
		t.Fatalf("Roster failed: %v", err)
	}
	defer cancel()

	var got []models.Member
	for len(got) < 2 {
		select {
		case got = <-rosters:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out; roster=%v", got)
		}
	}

	if got[0].UID != "u-bob" || got[1].UID != "u-alice" {
		t.Errorf("roster order: got %s,%s want u-bob,u-alice", got[0].UID, got[1].UID)
	}
	// The roster record resolves the display identity once, at join time.
	if got[0].DisplayName != "bob" {
		t.Errorf("bob display name: got %q, want %q", got[0].DisplayName, "bob")
	}

	_ = store
}

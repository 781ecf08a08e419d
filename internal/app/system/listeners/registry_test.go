package listeners_test

import (
	"testing"

	"github.com/virtualstudy/studypoint/internal/app/system/listeners"
)

func TestRegistry_ReleaseCancelsOnce(t *testing.T) {
	r := listeners.New()

	calls := 0
	release := r.Add(func() { calls++ })
	if r.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", r.Len())
	}

	release()
	release()
	if calls != 1 {
		t.Errorf("cancel calls: got %d, want 1", calls)
	}
	if r.Len() != 0 {
		t.Errorf("Len after release: got %d, want 0", r.Len())
	}
}

func TestRegistry_CloseReleasesAll(t *testing.T) {
	r := listeners.New()

	calls := 0
	for i := 0; i < 3; i++ {
		r.Add(func() { calls++ })
	}

	r.Close()
	r.Close()
	if calls != 3 {
		t.Errorf("cancel calls: got %d, want 3", calls)
	}
	if r.Len() != 0 {
		t.Errorf("Len after close: got %d, want 0", r.Len())
	}
}

func TestRegistry_AddAfterCloseCancelsImmediately(t *testing.T) {
	r := listeners.New()
	r.Close()

	calls := 0
	release := r.Add(func() { calls++ })
	if calls != 1 {
		t.Errorf("expected immediate cancel, got %d calls", calls)
	}
	release() // no-op
	if calls != 1 {
		t.Errorf("release after immediate cancel: got %d calls", calls)
	}
}

func TestRegistry_ReleaseAfterCloseIsNoOp(t *testing.T) {
	r := listeners.New()

	calls := 0
	release := r.Add(func() { calls++ })
	r.Close()
	release()
	if calls != 1 {
		t.Errorf("cancel calls: got %d, want 1", calls)
	}
}

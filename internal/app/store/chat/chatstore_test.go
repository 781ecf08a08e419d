// internal/app/store/chat/chatstore_test.go

package chatstore_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	chatstore "github.com/virtualstudy/studypoint/internal/app/store/chat"
	"github.com/virtualstudy/studypoint/internal/app/store/remote"
	"github.com/virtualstudy/studypoint/internal/domain/faults"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

func newStream(t *testing.T) (*remote.Memory, *chatstore.Stream) {
	t.Helper()
	mem := remote.NewMemory()
	t.Cleanup(mem.Close)
	return mem, chatstore.New(mem, zap.NewNop())
}

func waitTail(t *testing.T, tails <-chan []models.ChatMessage, ok func([]models.ChatMessage) bool) []models.ChatMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	var last []models.ChatMessage
	for {
		select {
		case msgs := <-tails:
			last = msgs
			if ok(msgs) {
				return msgs
			}
		case <-deadline:
			t.Fatalf("timed out waiting for tail, last: %+v", last)
		}
	}
}

func TestTail_FiltersByRoomAndOrders(t *testing.T) {
	mem, stream := newStream(t)

	ms := int64(1_000_000)
	mem.SetClock(func() time.Time {
		ms += 1000
		return time.UnixMilli(ms)
	})

	ctx := context.Background()
	ann := models.User{UID: "u1", Email: "ann@example.com", DisplayName: "Ann"}
	bob := models.User{UID: "u2", Email: "bob@example.com"}

	first, err := stream.Append(ctx, ann, "interview", "anyone around?")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := stream.Append(ctx, bob, "english", "different room"); err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := stream.Append(ctx, bob, "interview", "yes, reading your notes")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	tails := make(chan []models.ChatMessage, 16)
	cancel, err := stream.Tail(ctx, "interview", func(msgs []models.ChatMessage, err error) {
		if err == nil {
			tails <- msgs
		}
	})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	defer cancel()

	msgs := waitTail(t, tails, func(m []models.ChatMessage) bool { return len(m) == 2 })
	if msgs[0].ID != first || msgs[1].ID != second {
		t.Fatalf("order: got %s,%s want %s,%s", msgs[0].ID, msgs[1].ID, first, second)
	}
	for _, m := range msgs {
		if m.Room != "interview" {
			t.Fatalf("foreign room leaked into tail: %+v", m)
		}
	}
	if msgs[0].CreatedAt >= msgs[1].CreatedAt {
		t.Fatalf("timestamps not ascending: %d, %d", msgs[0].CreatedAt, msgs[1].CreatedAt)
	}
}

func TestAppend_ResolvesAuthorIdentity(t *testing.T) {
	_, stream := newStream(t)
	ctx := context.Background()

	// Display name when present, email local-part otherwise, uid last.
	if _, err := stream.Append(ctx, models.User{UID: "u1", Email: "ann@example.com", DisplayName: "Ann B"}, "aptitude", "one"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := stream.Append(ctx, models.User{UID: "u2", Email: "bob@example.com"}, "aptitude", "two"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := stream.Append(ctx, models.User{UID: "u3"}, "aptitude", "three"); err != nil {
		t.Fatalf("append: %v", err)
	}
	tails := make(chan []models.ChatMessage, 16)
	cancel, err := stream.Tail(ctx, "aptitude", func(msgs []models.ChatMessage, err error) {
		if err == nil {
			tails <- msgs
		}
	})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	defer cancel()

	msgs := waitTail(t, tails, func(m []models.ChatMessage) bool { return len(m) == 3 })
	names := map[string]bool{}
	for _, m := range msgs {
		names[m.User] = true
	}
	for _, want := range []string{"Ann B", "bob", "u3"} {
		if !names[want] {
			t.Fatalf("missing author %q in %v", want, names)
		}
	}
}

func TestAppend_SanitizesAndRejectsEmpty(t *testing.T) {
	_, stream := newStream(t)
	ctx := context.Background()
	ann := models.User{UID: "u1", Email: "ann@example.com"}

	for _, text := range []string{"", "  \t ", "<script>x</script>"} {
		_, err := stream.Append(ctx, ann, "programming", text)
		var verr *faults.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("text %q: err = %v, want ValidationError", text, err)
		}
	}

	if _, err := stream.Append(ctx, ann, "programming", `<img src=x onerror=alert(1)>see this`); err != nil {
		t.Fatalf("append: %v", err)
	}
	tails := make(chan []models.ChatMessage, 16)
	cancel, err := stream.Tail(ctx, "programming", func(msgs []models.ChatMessage, err error) {
		if err == nil {
			tails <- msgs
		}
	})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	defer cancel()
	msgs := waitTail(t, tails, func(m []models.ChatMessage) bool { return len(m) == 1 })
	if strings.Contains(msgs[0].Text, "onerror") {
		t.Fatalf("handler survived sanitization: %q", msgs[0].Text)
	}
}

func TestAppend_UnknownRoom(t *testing.T) {
	_, stream := newStream(t)
	_, err := stream.Append(context.Background(), models.User{UID: "u1"}, "poker", "hi")
	var verr *faults.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if _, terr := stream.Tail(context.Background(), "poker", func([]models.ChatMessage, error) {}); terr == nil {
		t.Fatal("tail of unknown room succeeded")
	}
}

func TestTail_LiveDelivery(t *testing.T) {
	_, stream := newStream(t)
	ctx := context.Background()

	tails := make(chan []models.ChatMessage, 16)
	cancel, err := stream.Tail(ctx, "english", func(msgs []models.ChatMessage, err error) {
		if err == nil {
			tails <- msgs
		}
	})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	defer cancel()
	waitTail(t, tails, func(m []models.ChatMessage) bool { return len(m) == 0 })

	if _, err := stream.Append(ctx, models.User{UID: "u1"}, "english", "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	waitTail(t, tails, func(m []models.ChatMessage) bool { return len(m) == 1 })
}

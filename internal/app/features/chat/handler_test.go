// internal/app/features/chat/handler_test.go

package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chatfeature "github.com/virtualstudy/studypoint/internal/app/features/chat"
	chatstore "github.com/virtualstudy/studypoint/internal/app/store/chat"
	"github.com/virtualstudy/studypoint/internal/app/store/remote"
	"github.com/virtualstudy/studypoint/internal/app/system/auth"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

func newRouter(t *testing.T) (http.Handler, *chatstore.Stream) {
	t.Helper()
	mem := remote.NewMemory()
	t.Cleanup(mem.Close)
	stream := chatstore.New(mem, zap.NewNop())

	mw := auth.NewMiddleware(nil, zap.NewNop())
	r := chi.NewRouter()
	r.Use(mw.LoadUser)
	r.Mount("/chat", chatfeature.Routes(chatfeature.NewHandler(stream, zap.NewNop())))
	return r, stream
}

func TestSendAndHistory(t *testing.T) {
	h, _ := newRouter(t)

	body := bytes.NewBufferString(`{"text":"anyone up for mock rounds?"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/interview/messages", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Debug-UID", "u1")
	req.Header.Set("X-Debug-Email", "ann@example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("send: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/chat/interview/messages", nil)
	req.Header.Set("X-Debug-UID", "u2")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: %d %s", rec.Code, rec.Body.String())
	}
	var msgs []models.ChatMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("history body: %v", err)
	}
	if len(msgs) != 1 || msgs[0].User != "ann" || msgs[0].Room != "interview" {
		t.Fatalf("messages: %+v", msgs)
	}
}

func TestSend_RejectsEmptyAndUnknownRoom(t *testing.T) {
	h, _ := newRouter(t)

	cases := []struct {
		path string
		body string
	}{
		{"/chat/interview/messages", `{"text":"  "}`},
		{"/chat/poker/messages", `{"text":"hi"}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, tc.path, bytes.NewBufferString(tc.body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Debug-UID", "u1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: %d, want 422", tc.path, rec.Code)
		}
	}
}

func TestLive_WebsocketTail(t *testing.T) {
	h, stream := newRouter(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/english/ws"
	header := http.Header{}
	header.Set("X-Debug-UID", "u1")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v (resp: %+v)", err, resp)
	}
	defer conn.Close()

	// Initial tail is the empty room.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var tail []models.ChatMessage
	if err := conn.ReadJSON(&tail); err != nil {
		t.Fatalf("initial tail: %v", err)
	}
	if len(tail) != 0 {
		t.Fatalf("initial tail: %+v", tail)
	}

	if _, err := stream.Append(context.Background(), models.User{UID: "u2", Email: "bob@example.com"}, "english", "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&tail); err != nil {
		t.Fatalf("live tail: %v", err)
	}
	if len(tail) != 1 || tail[0].Text != "hello" || tail[0].User != "bob" {
		t.Fatalf("live tail: %+v", tail)
	}
}

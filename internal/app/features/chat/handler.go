// internal/app/features/chat/handler.go

// Package chat serves the group chat rooms: message history, sends, and
// a websocket live tail.
package chat

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chatstore "github.com/virtualstudy/studypoint/internal/app/store/chat"
	"github.com/virtualstudy/studypoint/internal/app/system/auth"
	"github.com/virtualstudy/studypoint/internal/app/system/httpapi"
	"github.com/virtualstudy/studypoint/internal/app/system/timeouts"
	"github.com/virtualstudy/studypoint/internal/domain/faults"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is served to browser clients on other origins in dev.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler serves the chat endpoints.
type Handler struct {
	Stream *chatstore.Stream
	Log    *zap.Logger
}

// NewHandler constructs a chat Handler.
func NewHandler(stream *chatstore.Stream, logger *zap.Logger) *Handler {
	return &Handler{Stream: stream, Log: logger}
}

// Messages handles GET /chat/{room}/messages: the room's current tail.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	type delivery struct {
		msgs []models.ChatMessage
		err  error
	}
	first := make(chan delivery, 1)
	cancel, err := h.Stream.Tail(r.Context(), room, func(msgs []models.ChatMessage, terr error) {
		select {
		case first <- delivery{msgs: msgs, err: terr}:
		default:
		}
	})
	if err != nil {
		httpapi.Error(w, h.Log, err)
		return
	}
	defer cancel()

	select {
	case d := <-first:
		if d.err != nil {
			httpapi.Error(w, h.Log, d.err)
			return
		}
		if d.msgs == nil {
			d.msgs = []models.ChatMessage{}
		}
		httpapi.Respond(w, http.StatusOK, d.msgs)
	case <-time.After(timeouts.Medium()):
		httpapi.Error(w, h.Log, &faults.TimeoutError{Op: "chat read"})
	}
}

type sendRequest struct {
	Text string `json:"text"`
}

// Send handles POST /chat/{room}/messages.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	room := chi.URLParam(r, "room")

	var body sendRequest
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.Error(w, h.Log, err)
		return
	}
	id, err := h.Stream.Append(r.Context(), user, room, body.Text)
	if err != nil {
		httpapi.Error(w, h.Log, err)
		return
	}
	httpapi.Respond(w, http.StatusCreated, map[string]string{"id": id})
}

// Live handles GET /chat/{room}/ws. The connection receives the full
// room tail as a JSON array after every change. Writes go through the
// send channel so the tail callback, which runs on the store's dispatch
// goroutine, never blocks on a slow socket.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if !models.ValidGroupID(room) {
		httpapi.Error(w, h.Log, &faults.ValidationError{Field: "room", Reason: "unknown room " + room})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	send := make(chan []models.ChatMessage, 8)
	cancel, err := h.Stream.Tail(r.Context(), room, func(msgs []models.ChatMessage, terr error) {
		if terr != nil {
			h.Log.Warn("chat tail error", zap.String("room", room), zap.Error(terr))
			return
		}
		enqueueLatest(send, msgs)
	})
	if err != nil {
		_ = conn.Close()
		return
	}

	closed := make(chan struct{})
	go func() {
		// Reads are only used to observe the peer closing.
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		cancel()
		_ = conn.Close()
	}()
	for {
		select {
		case msgs := <-send:
			if err := conn.WriteJSON(msgs); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// enqueueLatest queues a tail for the writer without ever blocking the
// store's dispatch goroutine. When the buffer is full it evicts the
// oldest pending tail, so a slow client always receives the newest
// state once it drains. Only the dispatch goroutine sends on the
// channel, which keeps the evict-then-retry sequence race-free.
func enqueueLatest(send chan []models.ChatMessage, msgs []models.ChatMessage) {
	select {
	case send <- msgs:
		return
	default:
	}
	select {
	case <-send:
	default:
	}
	select {
	case send <- msgs:
	default:
	}
}

// internal/app/features/materials/handler.go

// Package materials serves the per-group material views, uploads, reuse
// tracking, and discussion threads.
package materials

import (
	"context"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	commentstore "github.com/virtualstudy/studypoint/internal/app/store/comments"
	materialstore "github.com/virtualstudy/studypoint/internal/app/store/materials"
	"github.com/virtualstudy/studypoint/internal/app/system/auth"
	"github.com/virtualstudy/studypoint/internal/app/system/httpapi"
	"github.com/virtualstudy/studypoint/internal/app/system/timeouts"
	"github.com/virtualstudy/studypoint/internal/app/system/upload"
	"github.com/virtualstudy/studypoint/internal/domain/faults"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

// Handler serves the material endpoints.
type Handler struct {
	Materials *materialstore.Store
	Comments  *commentstore.Store
	Uploads   *upload.Coordinator
	Log       *zap.Logger
}

// NewHandler constructs a materials Handler.
func NewHandler(mats *materialstore.Store, comments *commentstore.Store, uploads *upload.Coordinator, logger *zap.Logger) *Handler {
	return &Handler{Materials: mats, Comments: comments, Uploads: uploads, Log: logger}
}

type viewResponse struct {
	Materials []models.Material `json:"materials"`
	Total     int               `json:"total"`
}

// List handles GET /groups/{gid}/materials with optional q, type, and
// sort query parameters. Non-members get 403, which is how the API
// distinguishes a restricted group from an empty one.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	gid := chi.URLParam(r, "gid")

	col, err := h.Materials.Subscribe(r.Context(), user, gid, nil)
	if err != nil {
		httpapi.Error(w, h.Log, err)
		return
	}
	defer col.Close()

	select {
	case <-col.Ready():
	case <-time.After(timeouts.Medium()):
		httpapi.Error(w, h.Log, &faults.TimeoutError{Op: "material read"})
		return
	}

	q := r.URL.Query()
	if term := q.Get("q"); term != "" {
		col.SetFilter(term)
	}
	if typ := q.Get("type"); typ != "" {
		col.SetType(typ)
	}
	if sortBy := q.Get("sort"); sortBy != "" {
		col.SetSort(sortBy)
	}

	v := col.View()
	switch {
	case v.Err != nil:
		httpapi.Error(w, h.Log, v.Err)
	case v.Restricted:
		httpapi.Error(w, h.Log, &faults.AccessDeniedError{UserID: user.UID, GroupID: gid})
	default:
		if v.Materials == nil {
			v.Materials = []models.Material{}
		}
		httpapi.Respond(w, http.StatusOK, viewResponse{Materials: v.Materials, Total: v.Total})
	}
}

type linkRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Create handles POST /groups/{gid}/materials. A multipart body is a
// file upload; a JSON body shares a link. The response is the committed
// material record.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	gid := chi.URLParam(r, "gid")

	req := upload.Request{GroupID: gid}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(upload.MaxFileSize() + (1 << 20)); err != nil {
			httpapi.Error(w, h.Log, &faults.ValidationError{Field: "body", Reason: "malformed multipart form"})
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			httpapi.Error(w, h.Log, &faults.ValidationError{Field: "file", Reason: "missing file part"})
			return
		}
		defer file.Close()
		req.Title = r.FormValue("title")
		req.Description = r.FormValue("description")
		req.File = file
		req.FileName = header.Filename
		req.FileSize = header.Size
		req.ContentType = header.Header.Get("Content-Type")
	} else {
		var body linkRequest
		if err := httpapi.Decode(r, &body); err != nil {
			httpapi.Error(w, h.Log, err)
			return
		}
		req.Title = body.Title
		req.Description = body.Description
		req.URL = body.URL
	}

	// The upload outlives the request: a client that disconnects
	// mid-transfer must not abort the blob put or the commit.
	done := make(chan uploadResult, 1)
	task, err := h.Uploads.Start(context.WithoutCancel(r.Context()), user, req, &waitTracker{done: done})
	if err != nil {
		httpapi.Error(w, h.Log, err)
		return
	}
	defer task.Detach()

	select {
	case res := <-done:
		if res.err != nil {
			httpapi.Error(w, h.Log, res.err)
			return
		}
		httpapi.Respond(w, http.StatusCreated, res.material)
	case <-r.Context().Done():
		// Client went away; the upload finishes on its own.
	}
}

type uploadResult struct {
	material models.Material
	err      error
}

// waitTracker bridges the coordinator's async tracker to a synchronous
// handler.
type waitTracker struct {
	done chan uploadResult
}

func (t *waitTracker) Progress(int) {}

func (t *waitTracker) Done(m models.Material, err error) {
	t.done <- uploadResult{material: m, err: err}
}

// Reuse handles POST /groups/{gid}/materials/{mid}/reuse. The current
// count is read from the live view and written back incremented, so two
// racing calls can collapse into one increment.
func (h *Handler) Reuse(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	gid := chi.URLParam(r, "gid")
	mid := chi.URLParam(r, "mid")

	m, err := h.currentMaterial(r, user, gid, mid)
	if err != nil {
		httpapi.Error(w, h.Log, err)
		return
	}
	if err := h.Materials.IncrementReuse(r.Context(), user, m); err != nil {
		httpapi.Error(w, h.Log, err)
		return
	}
	httpapi.Respond(w, http.StatusOK, map[string]any{"id": mid, "reuseCount": m.ReuseCount + 1})
}

func (h *Handler) currentMaterial(r *http.Request, user models.User, gid, mid string) (models.Material, error) {
	col, err := h.Materials.Subscribe(r.Context(), user, gid, nil)
	if err != nil {
		return models.Material{}, err
	}
	defer col.Close()

	select {
	case <-col.Ready():
	case <-time.After(timeouts.Medium()):
		return models.Material{}, &faults.TimeoutError{Op: "material read"}
	}

	v := col.View()
	if v.Err != nil {
		return models.Material{}, v.Err
	}
	if v.Restricted {
		return models.Material{}, &faults.AccessDeniedError{UserID: user.UID, GroupID: gid}
	}
	for _, m := range v.Materials {
		if m.ID == mid {
			return m, nil
		}
	}
	return models.Material{}, &faults.ValidationError{Field: "material", Reason: "unknown material " + mid}
}

// Thread handles GET /groups/{gid}/materials/{mid}/comments.
func (h *Handler) Thread(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	gid := chi.URLParam(r, "gid")
	mid := chi.URLParam(r, "mid")

	type delivery struct {
		thread commentstore.Thread
		err    error
	}
	first := make(chan delivery, 1)
	cancel, err := h.Comments.Watch(r.Context(), user, gid, mid, func(th commentstore.Thread, terr error) {
		select {
		case first <- delivery{thread: th, err: terr}:
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
		if d.thread.Comments == nil {
			d.thread.Comments = []commentstore.ThreadComment{}
		}
		httpapi.Respond(w, http.StatusOK, d.thread)
	case <-time.After(timeouts.Medium()):
		httpapi.Error(w, h.Log, &faults.TimeoutError{Op: "thread read"})
	}
}

type commentRequest struct {
	Text string `json:"text"`
}

// AddComment handles POST /groups/{gid}/materials/{mid}/comments.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	gid := chi.URLParam(r, "gid")
	mid := chi.URLParam(r, "mid")

	var body commentRequest
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.Error(w, h.Log, err)
		return
	}
	id, err := h.Comments.AddComment(r.Context(), user, gid, mid, body.Text)
	if err != nil {
		httpapi.Error(w, h.Log, err)
		return
	}
	httpapi.Respond(w, http.StatusCreated, map[string]string{"id": id})
}

// AddReply handles POST /groups/{gid}/materials/{mid}/comments/{cid}/replies.
func (h *Handler) AddReply(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	gid := chi.URLParam(r, "gid")
	mid := chi.URLParam(r, "mid")
	cid := chi.URLParam(r, "cid")

	var body commentRequest
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.Error(w, h.Log, err)
		return
	}
	id, err := h.Comments.AddReply(r.Context(), user, gid, mid, cid, body.Text)
	if err != nil {
		httpapi.Error(w, h.Log, err)
		return
	}
	httpapi.Respond(w, http.StatusCreated, map[string]string{"id": id})
}

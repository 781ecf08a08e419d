// internal/app/system/upload/upload.go

// Package upload coordinates the two-phase material upload: push the
// file bytes to the blob store, then commit the material record to the
// remote store. Validation runs entirely up front, so a bad request
// never touches the network.
package upload

import (
	"context"
	"io"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.uber.org/zap"

	"github.com/virtualstudy/studypoint/internal/app/store/blob"
	materialstore "github.com/virtualstudy/studypoint/internal/app/store/materials"
	"github.com/virtualstudy/studypoint/internal/app/system/htmlsanitize"
	"github.com/virtualstudy/studypoint/internal/app/system/timeouts"
	"github.com/virtualstudy/studypoint/internal/domain/faults"
	"github.com/virtualstudy/studypoint/internal/domain/models"
)

// DefaultMaxFileSize is the largest accepted upload unless overridden
// at startup.
const DefaultMaxFileSize = 10 << 20 // 10 MiB

var maxFileSize int64 = DefaultMaxFileSize

// MaxFileSize returns the current upload size limit.
func MaxFileSize() int64 { return maxFileSize }

// SetMaxFileSize overrides the upload size limit. Call once at startup,
// before any request handling. Non-positive values are ignored.
func SetMaxFileSize(n int64) {
	if n > 0 {
		maxFileSize = n
	}
}

// allowedTypes is the accepted set of declared MIME types for file
// uploads.
var allowedTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-powerpoint":                                             true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"text/plain": true,
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// AllowedType reports whether contentType is accepted for file uploads.
func AllowedType(contentType string) bool {
	return allowedTypes[strings.ToLower(strings.TrimSpace(contentType))]
}

// Request describes one material upload. Exactly one of File or URL must
// be set.
type Request struct {
	GroupID     string
	Title       string
	Description string

	// Link material.
	URL string

	// File material.
	File        io.Reader
	FileName    string
	FileSize    int64
	ContentType string
}

// Tracker receives upload lifecycle events. Progress runs from 0 to 100
// and never decreases. After Done, no further calls are made.
type Tracker interface {
	Progress(percent int)
	Done(m models.Material, err error)
}

// Coordinator runs uploads against the blob and material stores.
type Coordinator struct {
	blobs     blob.Store
	materials *materialstore.Store
	log       *zap.Logger
}

// New builds a Coordinator.
func New(blobs blob.Store, materials *materialstore.Store, logger *zap.Logger) *Coordinator {
	return &Coordinator{blobs: blobs, materials: materials, log: logger}
}

// Task is a handle on a running upload. Detach tears the consumer down:
// after it returns, the tracker receives no further calls, though the
// upload itself runs to completion.
type Task struct {
	detached atomic.Bool
	tracker  Tracker
}

// Detach stops tracker deliveries. Safe to call more than once and
// concurrently with the upload.
func (t *Task) Detach() { t.detached.Store(true) }

func (t *Task) progress(p int) {
	if t.detached.Load() {
		return
	}
	t.tracker.Progress(p)
}

func (t *Task) done(m models.Material, err error) {
	if t.detached.Load() {
		return
	}
	t.tracker.Done(m, err)
}

// Start validates the request and, if it passes, runs the upload in the
// background, reporting to tracker. Validation errors are returned
// synchronously and mean nothing was sent anywhere.
func (c *Coordinator) Start(ctx context.Context, user models.User, req Request, tracker Tracker) (*Task, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	task := &Task{tracker: tracker}
	go c.run(ctx, user, req, task)
	return task, nil
}

func validate(req Request) error {
	if strings.TrimSpace(req.Title) == "" {
		return &faults.ValidationError{Field: "title", Reason: "title is required"}
	}
	if !models.ValidGroupID(req.GroupID) {
		return &faults.ValidationError{Field: "group", Reason: "unknown group " + req.GroupID}
	}

	hasFile := req.File != nil
	hasLink := strings.TrimSpace(req.URL) != ""
	switch {
	case hasFile && hasLink:
		return &faults.ValidationError{Field: "source", Reason: "provide a file or a link, not both"}
	case !hasFile && !hasLink:
		return &faults.ValidationError{Field: "source", Reason: "provide a file or a link"}
	}

	if hasLink {
		if !urlutil.IsValidAbsHTTPURL(strings.TrimSpace(req.URL)) {
			return &faults.ValidationError{Field: "url", Reason: "not an absolute http(s) url"}
		}
		return nil
	}

	if req.FileSize <= 0 {
		return &faults.ValidationError{Field: "file", Reason: "unknown file size"}
	}
	if req.FileSize > maxFileSize {
		return &faults.ValidationError{Field: "file", Reason: "file exceeds the size limit"}
	}
	if !AllowedType(req.ContentType) {
		return &faults.ValidationError{Field: "file", Reason: "unsupported file type " + req.ContentType}
	}
	return nil
}

func (c *Coordinator) run(ctx context.Context, user models.User, req Request, task *Task) {
	m := models.Material{
		ID:          c.materials.GenerateID(req.GroupID),
		GroupID:     req.GroupID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(htmlsanitize.Sanitize(req.Description)),
		UploadedBy:  user,
		UploadedAt:  time.Now().UnixMilli(),
	}

	task.progress(0)

	if req.File != nil {
		res, err := c.putBlob(ctx, req, task)
		if err != nil {
			c.log.Warn("upload failed",
				zap.String("group", req.GroupID),
				zap.String("file", req.FileName),
				zap.Error(err))
			task.done(models.Material{}, err)
			return
		}
		m.Type = models.MaterialTypeFile
		m.URL = res.URL
		m.FileName = path.Base(req.FileName)
		m.FileSize = res.Size
		m.FileType = req.ContentType
	} else {
		m.Type = models.MaterialTypeLink
		m.URL = strings.TrimSpace(req.URL)
		m.FileType = "link"
		task.progress(50)
	}

	commitCtx, cancel := context.WithTimeout(ctx, timeouts.Commit())
	defer cancel()
	err := c.materials.Create(commitCtx, user, m)
	if commitCtx.Err() == context.DeadlineExceeded {
		err = &faults.TimeoutError{Op: "material commit"}
	}
	if err != nil {
		// The blob, if any, stays behind: there is no delete API on the
		// upload service, so a failed commit orphans it.
		task.done(models.Material{}, err)
		return
	}

	task.progress(100)
	task.done(m, nil)
}

func (c *Coordinator) putBlob(ctx context.Context, req Request, task *Task) (blob.PutResult, error) {
	putCtx, cancel := context.WithTimeout(ctx, timeouts.Upload())
	defer cancel()

	// Blob transfer owns the 0-90 band; the commit takes it to 100.
	counted := &countingReader{
		r:     req.File,
		total: req.FileSize,
		report: func(frac float64) {
			task.progress(int(frac * 90))
		},
	}
	res, err := c.blobs.Put(putCtx, req.FileName, counted, req.FileSize, req.ContentType)
	if putCtx.Err() == context.DeadlineExceeded {
		return blob.PutResult{}, &faults.TimeoutError{Op: "blob upload"}
	}
	if err != nil {
		return blob.PutResult{}, &faults.UploadError{Err: err}
	}
	return res, nil
}

// countingReader reports transfer progress as a fraction of the declared
// size. Reported values only grow.
type countingReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   float64
	report func(frac float64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.read += int64(n)
		frac := float64(c.read) / float64(c.total)
		if frac > 1 {
			frac = 1
		}
		if frac > c.last {
			c.last = frac
			c.report(frac)
		}
	}
	return n, err
}

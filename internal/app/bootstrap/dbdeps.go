// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	accessgate "github.com/virtualstudy/studypoint/internal/app/store/access"
	"github.com/virtualstudy/studypoint/internal/app/store/blob"
	chatstore "github.com/virtualstudy/studypoint/internal/app/store/chat"
	commentstore "github.com/virtualstudy/studypoint/internal/app/store/comments"
	materialstore "github.com/virtualstudy/studypoint/internal/app/store/materials"
	"github.com/virtualstudy/studypoint/internal/app/store/remote"
	"github.com/virtualstudy/studypoint/internal/app/system/auth"
	"github.com/virtualstudy/studypoint/internal/app/system/insights"
	"github.com/virtualstudy/studypoint/internal/app/system/search"
	"github.com/virtualstudy/studypoint/internal/app/system/upload"
)

// DBDeps holds the back-end clients and the component layer built on
// top of them. Built once in ConnectDB and passed by value to the later
// hooks, so everything here is a pointer or interface.
type DBDeps struct {
	// Remote is the structured store every component reads and writes.
	// Exactly one of Firestore or Memory backs it; the concrete field is
	// kept for health probes and shutdown.
	Remote    remote.Store
	Firestore *remote.Firestore
	Memory    *remote.Memory

	Blobs blob.Store

	// Verifier is nil on the memory backend, which switches the auth
	// middleware to debug-header identity.
	Verifier auth.Verifier

	Gate      *accessgate.Gate
	Materials *materialstore.Store
	Comments  *commentstore.Store
	Chat      *chatstore.Stream
	Uploads   *upload.Coordinator
	Search    *search.Aggregator
	Insights  *insights.Aggregator
}

// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// Backend names accepted for the "backend" and "blob_backend" keys.
const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
	BlobMinio        = "minio"
	BlobMemory       = "memory"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers
// framework-level settings (ports, TLS, logging, CORS); AppConfig is
// everything specific to this service: which store and blob backends to
// run against, Firebase project coordinates, and the operation limits.
type AppConfig struct {
	// Store backend: "firestore" for production, "memory" for local
	// development and tests.
	Backend string

	// Firebase/Firestore configuration (backend=firestore only).
	FirebaseProjectID     string
	FirebaseDatabaseURL   string
	GoogleCredentialsFile string // optional; application default credentials when empty

	// Blob storage backend: "minio" or "memory".
	BlobBackend    string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Upload limits.
	UploadMaxBytes int64         // largest accepted file upload
	UploadTimeout  time.Duration // blob transfer deadline
	CommitTimeout  time.Duration // material metadata write deadline

	// AuthDebugHeaders accepts X-Debug-UID identity headers. Memory
	// backend only; the memory backend has no token issuer, so this is
	// its sole identity path.
	AuthDebugHeaders bool
}

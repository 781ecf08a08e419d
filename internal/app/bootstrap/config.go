// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"

	"github.com/virtualstudy/studypoint/internal/app/system/upload"
)

// appConfigKeys defines the configuration keys for StudyPoint.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: backend, firebase_project_id, etc.
//   - Environment variables: STUDYPOINT_BACKEND, STUDYPOINT_FIREBASE_PROJECT_ID, etc.
//   - Command-line flags: --backend, --firebase_project_id, etc.
var appConfigKeys = []config.AppKey{
	{Name: "backend", Default: "memory", Desc: "Store backend: 'firestore' or 'memory'"},
	{Name: "firebase_project_id", Default: "", Desc: "Firebase project ID (backend=firestore)"},
	{Name: "firebase_database_url", Default: "", Desc: "Firebase database URL (backend=firestore)"},
	{Name: "google_credentials_file", Default: "", Desc: "Path to a service account key file (blank uses application default credentials)"},

	// Blob storage configuration
	{Name: "blob_backend", Default: "memory", Desc: "Blob backend: 'minio' or 'memory'"},
	{Name: "minio_endpoint", Default: "localhost:9000", Desc: "MinIO endpoint host:port"},
	{Name: "minio_access_key", Default: "", Desc: "MinIO access key"},
	{Name: "minio_secret_key", Default: "", Desc: "MinIO secret key"},
	{Name: "minio_bucket", Default: "studypoint-materials", Desc: "MinIO bucket for uploaded files"},
	{Name: "minio_use_ssl", Default: false, Desc: "Use TLS when talking to MinIO"},

	// Upload limits
	{Name: "upload_max_bytes", Default: int(upload.DefaultMaxFileSize), Desc: "Largest accepted file upload in bytes (default 10 MiB)"},
	{Name: "upload_timeout", Default: "60s", Desc: "Blob transfer deadline (e.g., 60s, 2m)"},
	{Name: "commit_timeout", Default: "10s", Desc: "Material metadata write deadline"},

	// Debug identity (memory backend only)
	{Name: "auth_debug_headers", Default: true, Desc: "Accept X-Debug-UID identity headers (memory backend only)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "STUDYPOINT", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		Backend:               appValues.String("backend"),
		FirebaseProjectID:     appValues.String("firebase_project_id"),
		FirebaseDatabaseURL:   appValues.String("firebase_database_url"),
		GoogleCredentialsFile: appValues.String("google_credentials_file"),

		BlobBackend:    appValues.String("blob_backend"),
		MinioEndpoint:  appValues.String("minio_endpoint"),
		MinioAccessKey: appValues.String("minio_access_key"),
		MinioSecretKey: appValues.String("minio_secret_key"),
		MinioBucket:    appValues.String("minio_bucket"),
		MinioUseSSL:    appValues.Bool("minio_use_ssl"),

		UploadMaxBytes: int64(appValues.Int("upload_max_bytes")),
		UploadTimeout:  appValues.Duration("upload_timeout", 60*time.Second),
		CommitTimeout:  appValues.Duration("commit_timeout", 10*time.Second),

		AuthDebugHeaders: appValues.Bool("auth_debug_headers"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// This is the right place to enforce invariants that involve more than
// one key, like the firestore backend requiring project coordinates.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	switch appCfg.Backend {
	case BackendFirestore:
		if appCfg.FirebaseProjectID == "" {
			return fmt.Errorf("backend=firestore requires firebase_project_id")
		}
	case BackendMemory:
		if !appCfg.AuthDebugHeaders {
			return fmt.Errorf("the memory backend has no token issuer; auth_debug_headers is its only identity path and must stay enabled")
		}
	default:
		return fmt.Errorf("unknown backend %q (want 'firestore' or 'memory')", appCfg.Backend)
	}

	switch appCfg.BlobBackend {
	case BlobMinio:
		if appCfg.MinioAccessKey == "" || appCfg.MinioSecretKey == "" {
			return fmt.Errorf("blob_backend=minio requires minio_access_key and minio_secret_key")
		}
	case BlobMemory:
	default:
		return fmt.Errorf("unknown blob_backend %q (want 'minio' or 'memory')", appCfg.BlobBackend)
	}

	if appCfg.UploadMaxBytes <= 0 {
		return fmt.Errorf("upload_max_bytes must be positive, got %d", appCfg.UploadMaxBytes)
	}
	if appCfg.UploadTimeout <= 0 || appCfg.CommitTimeout <= 0 {
		return fmt.Errorf("upload_timeout and commit_timeout must be positive")
	}

	return nil
}

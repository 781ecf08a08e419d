// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
	"google.golang.org/api/option"

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

// ConnectDB builds the store backends selected by config and the
// component layer on top of them.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	var deps DBDeps

	switch appCfg.Backend {
	case BackendFirestore:
		fs, err := remote.NewFirestore(ctx, remote.FirestoreConfig{
			ProjectID:       appCfg.FirebaseProjectID,
			DatabaseURL:     appCfg.FirebaseDatabaseURL,
			CredentialsFile: appCfg.GoogleCredentialsFile,
		}, logger)
		if err != nil {
			return DBDeps{}, fmt.Errorf("connecting firestore: %w", err)
		}
		deps.Remote = fs
		deps.Firestore = fs

		verifier, err := connectAuth(ctx, appCfg)
		if err != nil {
			_ = fs.Close()
			return DBDeps{}, err
		}
		deps.Verifier = verifier
		logger.Info("connected to firestore", zap.String("project", appCfg.FirebaseProjectID))

	case BackendMemory:
		mem := remote.NewMemory()
		deps.Remote = mem
		deps.Memory = mem
		logger.Info("using in-memory store backend")

	default:
		return DBDeps{}, fmt.Errorf("unknown backend %q", appCfg.Backend)
	}

	switch appCfg.BlobBackend {
	case BlobMinio:
		blobs, err := blob.NewMinioStore(appCfg.MinioEndpoint, appCfg.MinioAccessKey, appCfg.MinioSecretKey, appCfg.MinioBucket, appCfg.MinioUseSSL)
		if err != nil {
			if deps.Firestore != nil {
				_ = deps.Firestore.Close()
			}
			return DBDeps{}, fmt.Errorf("connecting minio: %w", err)
		}
		deps.Blobs = blobs
		logger.Info("connected to minio",
			zap.String("endpoint", appCfg.MinioEndpoint),
			zap.String("bucket", appCfg.MinioBucket))
	case BlobMemory:
		deps.Blobs = blob.NewMemoryStore()

	default:
		if deps.Firestore != nil {
			_ = deps.Firestore.Close()
		}
		return DBDeps{}, fmt.Errorf("unknown blob_backend %q", appCfg.BlobBackend)
	}

	deps.Gate = accessgate.New(deps.Remote, logger)
	deps.Materials = materialstore.New(deps.Remote, deps.Gate, logger)
	deps.Comments = commentstore.New(deps.Remote, deps.Gate, logger)
	deps.Chat = chatstore.New(deps.Remote, logger)
	deps.Uploads = upload.New(deps.Blobs, deps.Materials, logger)
	deps.Search = search.New(deps.Remote, logger)
	deps.Insights = insights.New(deps.Remote, logger)

	return deps, nil
}

// connectAuth initializes the Firebase auth client used to verify ID
// tokens. It creates its own Firebase app handle; the Firestore store
// manages a separate one so the two can be torn down independently.
func connectAuth(ctx context.Context, appCfg AppConfig) (auth.Verifier, error) {
	fbCfg := &firebase.Config{
		ProjectID:   appCfg.FirebaseProjectID,
		DatabaseURL: appCfg.FirebaseDatabaseURL,
	}
	var opts []option.ClientOption
	if appCfg.GoogleCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(appCfg.GoogleCredentialsFile))
	}
	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app for auth: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase auth client: %w", err)
	}
	return auth.NewFirebaseVerifier(client), nil
}

// EnsureSchema sets up indexes or schema as needed. Firestore is
// schemaless and collections appear on first write, so there is nothing
// to create up front.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	return nil
}

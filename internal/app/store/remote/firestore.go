// internal/app/store/remote/firestore.go
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// docDepth is where the hierarchical path stops addressing Firestore
// documents and starts addressing fields inside one. Paths map as
// collection/document pairs down to this depth; anything deeper is a
// field path within the depth-4 document. That keeps comment and reply
// maps inline in their material document, which is what the aggregation
// layer expects to see in material snapshots.
const docDepth = 4

// FirestoreConfig carries what NewFirestore needs to reach the project.
type FirestoreConfig struct {
	ProjectID       string
	DatabaseURL     string
	CredentialsFile string // optional; ADC when empty
}

// Firestore implements Store on Cloud Firestore. All subscription
// callbacks are funneled through one dispatch goroutine regardless of
// which listener produced them.
type Firestore struct {
	client  *firestore.Client
	log     *zap.Logger
	deliver chan func()
	stopped chan struct{}
	closed  atomic.Bool
}

// NewFirestore initializes the Firebase app and its Firestore client and
// starts the dispatcher. Call Close when done.
func NewFirestore(ctx context.Context, cfg FirestoreConfig, logger *zap.Logger) (*Firestore, error) {
	fbCfg := &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: cfg.DatabaseURL,
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firestore client: %w", err)
	}

	f := &Firestore{
		client:  client,
		log:     logger,
		deliver: make(chan func(), 256),
		stopped: make(chan struct{}),
	}
	go f.dispatch()
	return f, nil
}

func (f *Firestore) dispatch() {
	defer close(f.stopped)
	for fn := range f.deliver {
		fn()
	}
}

// Close stops the dispatcher and releases the client.
func (f *Firestore) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	close(f.deliver)
	<-f.stopped
	return f.client.Close()
}

// Ping verifies connectivity by reading an arbitrary document reference.
func (f *Firestore) Ping(ctx context.Context) error {
	_, err := f.client.Collection("health").Doc("ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

// resolve splits path into the document reference (or collection, when
// the path has odd length at or under docDepth) plus the field path
// inside the document for deeper addresses.
func (f *Firestore) resolve(path string) (col *firestore.CollectionRef, doc *firestore.DocumentRef, fields []string, err error) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, nil, nil, err
	}
	limit := len(segs)
	if limit > docDepth {
		limit = docDepth
	}
	for i := 0; i < limit; i++ {
		if i%2 == 0 {
			if doc == nil {
				col = f.client.Collection(segs[i])
			} else {
				col = doc.Collection(segs[i])
			}
			doc = nil
		} else {
			doc = col.Doc(segs[i])
			col = nil
		}
	}
	return col, doc, segs[limit:], nil
}

// Write implements Store.
func (f *Firestore) Write(ctx context.Context, path string, value any) error {
	if f.closed.Load() {
		return ErrClosed
	}
	col, doc, fields, err := f.resolve(path)
	if err != nil {
		return err
	}
	if col != nil {
		return fmt.Errorf("write to collection path %s", path)
	}

	if len(fields) == 0 {
		if value == nil {
			_, err = doc.Delete(ctx)
			return err
		}
		payload, err := toFirestoreValue(value)
		if err != nil {
			return err
		}
		_, err = doc.Set(ctx, payload)
		return err
	}

	fieldValue := any(firestore.Delete)
	if value != nil {
		fieldValue, err = toFirestoreValue(value)
		if err != nil {
			return err
		}
	}
	_, err = doc.Update(ctx, []firestore.Update{{
		FieldPath: firestore.FieldPath(fields),
		Value:     fieldValue,
	}})
	return err
}

// GenerateKey implements Store. Collection paths use Firestore's own id
// generation; field-map containers fall back to UUIDs, which are equally
// collision-free.
func (f *Firestore) GenerateKey(path string) string {
	col, _, fields, err := f.resolve(path)
	if err == nil && col != nil && len(fields) == 0 {
		return col.NewDoc().ID
	}
	return uuid.NewString()
}

// Subscribe implements Store.
func (f *Firestore) Subscribe(ctx context.Context, path string, fn SnapshotFunc) (func(), error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	col, doc, fields, err := f.resolve(path)
	if err != nil {
		return nil, err
	}

	subCtx, stop := context.WithCancel(ctx)
	sub := &fsSub{path: path, fn: fn}

	if col != nil {
		it := col.Snapshots(subCtx)
		go f.runCollection(sub, it)
		return f.cancelFunc(sub, stop, it.Stop), nil
	}

	it := doc.Snapshots(subCtx)
	go f.runDocument(sub, it, fields)
	return f.cancelFunc(sub, stop, it.Stop), nil
}

type fsSub struct {
	path      string
	fn        SnapshotFunc
	cancelled atomic.Bool
}

func (f *Firestore) cancelFunc(sub *fsSub, stops ...func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			sub.cancelled.Store(true)
			for _, stop := range stops {
				stop()
			}
		})
	}
}

// emit routes one delivery through the shared dispatch queue, dropping it
// if the subscription was torn down in the meantime.
func (f *Firestore) emit(sub *fsSub, snap Snapshot, err error) {
	if f.closed.Load() || sub.cancelled.Load() {
		return
	}
	f.deliver <- func() {
		if sub.cancelled.Load() {
			return
		}
		sub.fn(snap, err)
	}
}

func (f *Firestore) runCollection(sub *fsSub, it *firestore.QuerySnapshotIterator) {
	for {
		qs, err := it.Next()
		if err != nil {
			if !isListenerShutdown(err) {
				f.log.Warn("collection listener failed",
					zap.String("path", sub.path), zap.Error(err))
				f.emit(sub, Snapshot{Path: sub.path}, err)
			}
			return
		}

		children := map[string]any{}
		for {
			ds, err := qs.Documents.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				f.emit(sub, Snapshot{Path: sub.path}, err)
				children = nil
				break
			}
			children[ds.Ref.ID] = sanitizeFromFirestore(ds.Data())
		}
		if children == nil {
			continue
		}
		if len(children) == 0 {
			f.emit(sub, Snapshot{Path: sub.path}, nil)
			continue
		}
		raw, err := json.Marshal(children)
		if err != nil {
			f.emit(sub, Snapshot{Path: sub.path}, err)
			continue
		}
		f.emit(sub, Snapshot{Path: sub.path, Exists: true, Data: raw}, nil)
	}
}

func (f *Firestore) runDocument(sub *fsSub, it *firestore.DocumentSnapshotIterator, fields []string) {
	for {
		ds, err := it.Next()
		if err != nil {
			if !isListenerShutdown(err) {
				f.log.Warn("document listener failed",
					zap.String("path", sub.path), zap.Error(err))
				f.emit(sub, Snapshot{Path: sub.path}, err)
			}
			return
		}

		if !ds.Exists() {
			f.emit(sub, Snapshot{Path: sub.path}, nil)
			continue
		}
		value := any(sanitizeFromFirestore(ds.Data()))
		ok := true
		for _, field := range fields {
			m, isMap := value.(map[string]any)
			if !isMap {
				ok = false
				break
			}
			value, ok = m[field]
			if !ok {
				break
			}
		}
		if !ok {
			f.emit(sub, Snapshot{Path: sub.path}, nil)
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			f.emit(sub, Snapshot{Path: sub.path}, err)
			continue
		}
		f.emit(sub, Snapshot{Path: sub.path, Exists: true, Data: raw}, nil)
	}
}

// isListenerShutdown reports whether the listener ended because its
// context was torn down rather than because the stream failed.
func isListenerShutdown(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Canceled, codes.DeadlineExceeded:
		return true
	}
	return false
}

// toFirestoreValue round-trips value through JSON into plain maps and
// substitutes the server-timestamp marker with Firestore's own.
func toFirestoreValue(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return substituteFirestoreTimestamps(decoded), nil
}

func substituteFirestoreTimestamps(v any) any {
	if isServerTimestamp(v) {
		return firestore.ServerTimestamp
	}
	if m, ok := v.(map[string]any); ok {
		for k, child := range m {
			m[k] = substituteFirestoreTimestamps(child)
		}
	}
	return v
}

// sanitizeFromFirestore converts Firestore-native values into the wire
// forms the models expect: timestamps become unix milliseconds.
func sanitizeFromFirestore(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.UnixMilli()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = sanitizeFromFirestore(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = sanitizeFromFirestore(child)
		}
		return out
	default:
		return v
	}
}

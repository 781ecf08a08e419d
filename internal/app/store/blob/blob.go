// Package blob wraps the external blob-upload service. Only the upload
// coordinator talks to it: raw file bytes go in, a retrievable URL plus
// storage metadata come out.
package blob

import (
	"context"
	"io"
)

// PutResult describes a stored blob.
type PutResult struct {
	URL         string
	Size        int64
	ContentType string
	StorageID   string
}

// Store is the blob-upload contract.
type Store interface {
	// Put streams the payload into storage under a caller-chosen name and
	// returns where it landed. Put does not retry.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (PutResult, error)
}

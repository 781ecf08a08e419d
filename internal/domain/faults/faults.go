// Package faults defines the error taxonomy shared by every component
// that touches the remote store, the blob store, or user input.
//
// The split matters to callers:
//
//   - ValidationError: bad input, no network call was made. Never retried.
//   - RemoteWriteError / RemoteReadError / UploadError: a remote operation
//     failed. Surfaced as a failed operation; the caller decides whether
//     to retry.
//   - AccessDeniedError: a material or comment operation was attempted
//     without the required group membership. Short-circuits reads into an
//     explicit restricted state, distinct from an empty result.
//   - TimeoutError: a bounded remote operation ran past its deadline.
//
// All types work with errors.Is/errors.As; wrapped causes are reachable
// through Unwrap.
package faults

import "fmt"

// ValidationError reports rejected input. It is always raised before any
// network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RemoteWriteError reports a rejected or failed write to the remote store.
type RemoteWriteError struct {
	Path string
	Err  error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("remote write %s: %v", e.Path, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// RemoteReadError reports a subscription that delivered an error instead
// of a snapshot.
type RemoteReadError struct {
	Path string
	Err  error
}

func (e *RemoteReadError) Error() string {
	return fmt.Sprintf("remote read %s: %v", e.Path, e.Err)
}

func (e *RemoteReadError) Unwrap() error { return e.Err }

// UploadError reports a rejected blob upload. No metadata is written when
// an upload fails.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("blob upload: %v", e.Err) }

func (e *UploadError) Unwrap() error { return e.Err }

// AccessDeniedError reports a material or comment operation attempted
// without membership in the owning group.
type AccessDeniedError struct {
	UserID  string
	GroupID string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("user %s is not a member of group %s", e.UserID, e.GroupID)
}

// TimeoutError reports a bounded remote operation that exceeded its
// deadline.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string { return e.Op + ": timed out" }

package uploads

import (
	"errors"
	"fmt"
)

// Kind classifies upload pipeline failures. Every failure is terminal for the
// invocation; nothing in this package retries.
type Kind string

const (
	// KindLocalFileMissing means the source file was not on disk; no network
	// call was made.
	KindLocalFileMissing Kind = "local_file_missing"
	// KindUploadFailed means the object store rejected or aborted the upload.
	KindUploadFailed Kind = "upload_failed"
	// KindURLResolutionFailed means the bytes are stored but no download URL
	// could be resolved. The error carries the storage path so the object is
	// not silently lost.
	KindURLResolutionFailed Kind = "url_resolution_failed"
	// KindPersistenceFailed means the metadata document write failed.
	KindPersistenceFailed Kind = "persistence_failed"
	// KindBackendUnavailable means the backing service is not configured or
	// reachable at all.
	KindBackendUnavailable Kind = "backend_unavailable"
)

// Error is a classified upload failure.
type Error struct {
	Kind        Kind
	Message     string
	StoragePath string // set when the object is already durably stored
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or "" if err is not an upload Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StoragePathOf returns the storage path attached to err, if any.
func StoragePathOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.StoragePath
	}
	return ""
}

// wrapKind classifies err under kind unless it already carries a Kind (e.g.
// BackendUnavailable from an injected store variant), which passes through.
func wrapKind(err error, kind Kind, message string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

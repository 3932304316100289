package uploads

import (
	"context"

	"github.com/aura-voicenotes/backend/pkg/storage"
)

// Unavailable is an ObjectStore and DocumentStore variant wired in by the
// entrypoints when the backing service is not configured. Every operation
// fails with BackendUnavailable.
type Unavailable struct {
	Reason string
}

func (u Unavailable) message() string {
	if u.Reason != "" {
		return "backend unavailable: " + u.Reason
	}
	return "backend unavailable"
}

// Put always fails with BackendUnavailable.
func (u Unavailable) Put(ctx context.Context, localPath, destPath, contentType string) (storage.PutResult, error) {
	return storage.PutResult{}, &Error{Kind: KindBackendUnavailable, Message: u.message()}
}

// ResolveURL always fails with BackendUnavailable.
func (u Unavailable) ResolveURL(ctx context.Context, objectPath string) (string, error) {
	return "", &Error{Kind: KindBackendUnavailable, Message: u.message()}
}

// Write always fails with BackendUnavailable.
func (u Unavailable) Write(ctx context.Context, docPath string, fields map[string]any) error {
	return &Error{Kind: KindBackendUnavailable, Message: u.message()}
}

// Package uploads sequences the recording upload pipeline: check the local
// file, upload the bytes to the object store, resolve a download URL, persist
// the metadata document. One linear chain per call, no retries, no shared
// state between invocations.
package uploads

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-voicenotes/backend/internal/models"
	"github.com/aura-voicenotes/backend/pkg/storage"
)

// ObjectStore uploads local files and resolves download URLs for stored
// objects. Implemented by pkg/storage.S3 in production.
type ObjectStore interface {
	Put(ctx context.Context, localPath, destPath, contentType string) (storage.PutResult, error)
	ResolveURL(ctx context.Context, objectPath string) (string, error)
}

// DocumentStore writes a document at a hierarchical path key, overwriting any
// existing document there. Implemented by pkg/docstore.Postgres in production.
type DocumentStore interface {
	Write(ctx context.Context, docPath string, fields map[string]any) error
}

// Coordinator runs the upload-and-persist pipeline against injected stores.
type Coordinator struct {
	objects ObjectStore
	docs    DocumentStore
	logger  *zap.Logger
}

// NewCoordinator creates an upload coordinator.
func NewCoordinator(objects ObjectStore, docs DocumentStore, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{objects: objects, docs: docs, logger: logger}
}

// UploadToStorage uploads the file at localPath under
// recordings/{userID}/{name} and resolves its download URL. When name is
// empty, a generated identifier with the default audio extension is used;
// when contentType is empty, it is derived from the name.
//
// URL resolution tries the path reported by the upload response first, then
// falls back to the derived path. If both attempts fail the returned error
// has kind URLResolutionFailed and carries the derived storage path: the
// bytes are already stored, only the reference is missing.
func (c *Coordinator) UploadToStorage(ctx context.Context, localPath, userID, name, contentType string) (downloadURL, storagePath string, err error) {
	if _, statErr := os.Stat(localPath); statErr != nil {
		return "", "", &Error{
			Kind:    KindLocalFileMissing,
			Message: fmt.Sprintf("local file %s does not exist", localPath),
			Err:     statErr,
		}
	}

	if name == "" {
		name = uuid.New().String() + storage.DefaultAudioExtension
	}
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(name)
	}
	storagePath = storage.RecordingKey(userID, name)

	result, putErr := c.objects.Put(ctx, localPath, storagePath, contentType)
	if putErr != nil {
		return "", "", wrapKind(putErr, KindUploadFailed, fmt.Sprintf("upload %s", storagePath))
	}
	c.logger.Debug("recording uploaded",
		zap.String("storage_path", storagePath),
		zap.Int64("size", result.Size),
		zap.String("user_id", userID),
	)

	downloadURL, resolveErr := c.resolveDownloadURL(ctx, result.Path, storagePath)
	if resolveErr != nil {
		e := wrapKind(resolveErr, KindURLResolutionFailed, fmt.Sprintf("resolve download URL for %s", storagePath))
		e.StoragePath = storagePath
		c.logger.Warn("download URL resolution failed, object remains stored",
			zap.String("storage_path", storagePath), zap.Error(resolveErr))
		return "", storagePath, e
	}
	return downloadURL, storagePath, nil
}

// resolveDownloadURL attempts resolution from the upload-reported path, then
// from the request path. Returns the last error if both fail.
func (c *Coordinator) resolveDownloadURL(ctx context.Context, reportedPath, requestPath string) (string, error) {
	if reportedPath != "" {
		url, err := c.objects.ResolveURL(ctx, reportedPath)
		if err == nil && url != "" {
			return url, nil
		}
		if err != nil {
			c.logger.Debug("resolution from reported path failed, retrying with request path",
				zap.String("reported_path", reportedPath), zap.Error(err))
		}
	}
	url, err := c.objects.ResolveURL(ctx, requestPath)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", fmt.Errorf("object store returned empty URL for %s", requestPath)
	}
	return url, nil
}

// SaveMetadata writes the record to the document store at
// users/{userId}/recordings/{id}, overwriting any existing document at that
// key, and returns the record id.
func (c *Coordinator) SaveMetadata(ctx context.Context, meta *models.RecordingMeta) (string, error) {
	if err := c.docs.Write(ctx, meta.DocumentPath(), meta.Fields()); err != nil {
		return "", wrapKind(err, KindPersistenceFailed, fmt.Sprintf("save metadata at %s", meta.DocumentPath()))
	}
	c.logger.Debug("recording metadata saved", zap.String("doc_path", meta.DocumentPath()))
	return meta.ID, nil
}

// UploadAndSave uploads the file and persists its metadata record, returning
// the generated recording id. Not atomic: a metadata write failure after a
// successful upload leaves the object stored with no referencing document.
func (c *Coordinator) UploadAndSave(ctx context.Context, localPath, title string, duration float64, userID string) (string, error) {
	id := uuid.New().String()
	name := id + storage.DefaultAudioExtension

	downloadURL, storagePath, err := c.UploadToStorage(ctx, localPath, userID, name, "")
	if err != nil {
		return "", err
	}

	meta := &models.RecordingMeta{
		ID:          id,
		Title:       title,
		Duration:    duration,
		CreatedAt:   time.Now().UTC(),
		StoragePath: storagePath,
		DownloadURL: downloadURL,
		UserID:      userID,
	}
	return c.SaveMetadata(ctx, meta)
}

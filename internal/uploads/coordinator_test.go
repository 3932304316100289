package uploads

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-voicenotes/backend/internal/models"
	"github.com/aura-voicenotes/backend/pkg/storage"
)

// fakeObjectStore records calls and serves scripted results.
type fakeObjectStore struct {
	putCalls     int
	resolveCalls []string

	putResult storage.PutResult
	putErr    error
	// resolveURLs maps object path -> URL; missing paths fail unless
	// resolveAny is set
	resolveURLs map[string]string
	resolveAny  bool
}

func (f *fakeObjectStore) Put(ctx context.Context, localPath, destPath, contentType string) (storage.PutResult, error) {
	f.putCalls++
	if f.putErr != nil {
		return storage.PutResult{}, f.putErr
	}
	if f.putResult.Path == "" && f.putResult.Size == 0 {
		return storage.PutResult{Size: 1, Path: destPath}, nil
	}
	return f.putResult, nil
}

func (f *fakeObjectStore) ResolveURL(ctx context.Context, objectPath string) (string, error) {
	f.resolveCalls = append(f.resolveCalls, objectPath)
	if f.resolveAny {
		return "https://cdn.example.com/" + objectPath, nil
	}
	if url, ok := f.resolveURLs[objectPath]; ok {
		return url, nil
	}
	return "", errors.New("object not found")
}

// fakeDocStore keeps documents in a map so overwrites are observable.
type fakeDocStore struct {
	writeCalls int
	writeErr   error
	docs       map[string]map[string]any
}

func (f *fakeDocStore) Write(ctx context.Context, docPath string, fields map[string]any) error {
	f.writeCalls++
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.docs == nil {
		f.docs = make(map[string]map[string]any)
	}
	f.docs[docPath] = fields
	return nil
}

func tempAudioFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "note.m4a")
	require.NoError(t, os.WriteFile(p, []byte("audio-bytes"), 0o644))
	return p
}

func TestUploadToStorage_Success(t *testing.T) {
	local := tempAudioFile(t)
	objects := &fakeObjectStore{
		resolveURLs: map[string]string{
			"recordings/u1/note.m4a": "https://cdn.example.com/recordings/u1/note.m4a",
		},
	}
	c := NewCoordinator(objects, &fakeDocStore{}, nil)

	url, storagePath, err := c.UploadToStorage(context.Background(), local, "u1", "note.m4a", "audio/m4a")
	require.NoError(t, err)
	assert.Equal(t, "recordings/u1/note.m4a", storagePath)
	assert.NotEmpty(t, url)
}

func TestUploadToStorage_GeneratedName(t *testing.T) {
	local := tempAudioFile(t)
	objects := &fakeObjectStore{resolveURLs: map[string]string{}}
	c := NewCoordinator(objects, &fakeDocStore{}, nil)

	// Resolution fails for every path here; we only care about key shape.
	_, storagePath, err := c.UploadToStorage(context.Background(), local, "u1", "", "")
	require.Error(t, err)
	assert.Regexp(t, `^recordings/u1/[0-9a-f-]+\.m4a$`, storagePath)
}

func TestUploadToStorage_MissingFile(t *testing.T) {
	objects := &fakeObjectStore{}
	c := NewCoordinator(objects, &fakeDocStore{}, nil)

	_, _, err := c.UploadToStorage(context.Background(), "/no/such/file.m4a", "u1", "note.m4a", "")
	require.Error(t, err)
	assert.Equal(t, KindLocalFileMissing, KindOf(err))
	// no network activity before the file check
	assert.Zero(t, objects.putCalls)
	assert.Empty(t, objects.resolveCalls)
}

func TestUploadToStorage_UploadFailed(t *testing.T) {
	local := tempAudioFile(t)
	objects := &fakeObjectStore{putErr: errors.New("connection reset")}
	c := NewCoordinator(objects, &fakeDocStore{}, nil)

	_, _, err := c.UploadToStorage(context.Background(), local, "u1", "note.m4a", "")
	require.Error(t, err)
	assert.Equal(t, KindUploadFailed, KindOf(err))
	assert.Empty(t, objects.resolveCalls)
}

func TestUploadToStorage_FallbackResolution(t *testing.T) {
	local := tempAudioFile(t)
	// Store reports a different path than requested; that path does not
	// resolve, but the original request path does.
	objects := &fakeObjectStore{
		putResult: storage.PutResult{Size: 11, Path: "recordings/u1/renamed.m4a"},
		resolveURLs: map[string]string{
			"recordings/u1/note.m4a": "https://cdn.example.com/recordings/u1/note.m4a",
		},
	}
	c := NewCoordinator(objects, &fakeDocStore{}, nil)

	url, storagePath, err := c.UploadToStorage(context.Background(), local, "u1", "note.m4a", "")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/recordings/u1/note.m4a", url)
	assert.Equal(t, "recordings/u1/note.m4a", storagePath)
	assert.Equal(t, []string{"recordings/u1/renamed.m4a", "recordings/u1/note.m4a"}, objects.resolveCalls)
}

func TestUploadToStorage_EmptyReportedPathFallsBack(t *testing.T) {
	local := tempAudioFile(t)
	objects := &fakeObjectStore{
		putResult: storage.PutResult{Size: 11, Path: ""},
		resolveURLs: map[string]string{
			"recordings/u1/note.m4a": "https://cdn.example.com/recordings/u1/note.m4a",
		},
	}
	c := NewCoordinator(objects, &fakeDocStore{}, nil)

	url, _, err := c.UploadToStorage(context.Background(), local, "u1", "note.m4a", "")
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	// only one resolve attempt: the reported path was absent
	assert.Equal(t, []string{"recordings/u1/note.m4a"}, objects.resolveCalls)
}

func TestUploadToStorage_BothResolutionsFail(t *testing.T) {
	local := tempAudioFile(t)
	objects := &fakeObjectStore{
		putResult:   storage.PutResult{Size: 11, Path: "recordings/u1/renamed.m4a"},
		resolveURLs: map[string]string{},
	}
	c := NewCoordinator(objects, &fakeDocStore{}, nil)

	url, storagePath, err := c.UploadToStorage(context.Background(), local, "u1", "note.m4a", "")
	require.Error(t, err)
	assert.Equal(t, KindURLResolutionFailed, KindOf(err))
	assert.Empty(t, url)
	// the derived path is reported back so the stored object is recoverable
	assert.Equal(t, "recordings/u1/note.m4a", storagePath)
	assert.Equal(t, "recordings/u1/note.m4a", StoragePathOf(err))
}

func TestSaveMetadata_Idempotent(t *testing.T) {
	docs := &fakeDocStore{}
	c := NewCoordinator(&fakeObjectStore{}, docs, nil)

	meta := &models.RecordingMeta{
		ID:          "r1",
		Title:       "first",
		UserID:      "u1",
		StoragePath: "recordings/u1/r1.m4a",
	}
	id, err := c.SaveMetadata(context.Background(), meta)
	require.NoError(t, err)
	assert.Equal(t, "r1", id)

	meta.Title = "second"
	id, err = c.SaveMetadata(context.Background(), meta)
	require.NoError(t, err)
	assert.Equal(t, "r1", id)

	// same key overwritten, not duplicated
	require.Len(t, docs.docs, 1)
	assert.Equal(t, "second", docs.docs["users/u1/recordings/r1"]["title"])
}

func TestSaveMetadata_PersistenceFailed(t *testing.T) {
	docs := &fakeDocStore{writeErr: errors.New("write conflict")}
	c := NewCoordinator(&fakeObjectStore{}, docs, nil)

	_, err := c.SaveMetadata(context.Background(), &models.RecordingMeta{ID: "r1", UserID: "u1"})
	require.Error(t, err)
	assert.Equal(t, KindPersistenceFailed, KindOf(err))
}

func TestUploadAndSave(t *testing.T) {
	local := tempAudioFile(t)
	objects := &fakeObjectStore{resolveAny: true}
	docs := &fakeDocStore{}
	c := NewCoordinator(objects, docs, nil)

	id, err := c.UploadAndSave(context.Background(), local, "Test", 12.5, "u1")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	docPath := "users/u1/recordings/" + id
	fields, ok := docs.docs[docPath]
	require.True(t, ok, "document should exist at %s", docPath)
	assert.Equal(t, id, fields["id"])
	assert.Equal(t, "Test", fields["title"])
	assert.Equal(t, 12.5, fields["duration"])
	assert.Equal(t, "u1", fields["userId"])
	assert.Equal(t, "recordings/u1/"+id+".m4a", fields["storagePath"])
	assert.NotEmpty(t, fields["downloadURL"])
	assert.NotNil(t, fields["createdAt"])
}

func TestUploadAndSave_MetadataFailureAfterUpload(t *testing.T) {
	local := tempAudioFile(t)
	objects := &fakeObjectStore{resolveAny: true}
	docs := &fakeDocStore{writeErr: errors.New("db down")}
	c := NewCoordinator(objects, docs, nil)

	_, err := c.UploadAndSave(context.Background(), local, "Test", 1, "u1")
	require.Error(t, err)
	assert.Equal(t, KindPersistenceFailed, KindOf(err))
	// upload happened; the object is orphaned by design
	assert.Equal(t, 1, objects.putCalls)
}

func TestBackendUnavailable(t *testing.T) {
	local := tempAudioFile(t)
	c := NewCoordinator(Unavailable{Reason: "not configured"}, Unavailable{Reason: "not configured"}, nil)

	_, _, err := c.UploadToStorage(context.Background(), local, "u1", "note.m4a", "")
	require.Error(t, err)
	assert.Equal(t, KindBackendUnavailable, KindOf(err))

	_, err = c.SaveMetadata(context.Background(), &models.RecordingMeta{ID: "r1", UserID: "u1"})
	require.Error(t, err)
	assert.Equal(t, KindBackendUnavailable, KindOf(err))
}

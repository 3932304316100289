package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-voicenotes/backend/config"
	"github.com/aura-voicenotes/backend/internal/middleware"
	"github.com/aura-voicenotes/backend/pkg/docstore"
	"github.com/aura-voicenotes/backend/pkg/response"
)

type fakeReader struct {
	docs map[string]*docstore.Document
}

func (f *fakeReader) Get(ctx context.Context, docPath string) (*docstore.Document, error) {
	if d, ok := f.docs[docPath]; ok {
		return d, nil
	}
	return nil, docstore.ErrNotFound
}

func (f *fakeReader) ListByPrefix(ctx context.Context, prefix string) ([]docstore.Document, error) {
	var out []docstore.Document
	for p, d := range f.docs {
		if len(p) >= len(prefix) && p[:len(prefix)] == prefix {
			out = append(out, *d)
		}
	}
	return out, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "https://signed.example.com/" + key, nil
}

func (fakePresigner) PresignExpire() time.Duration { return 15 * time.Minute }

func newTestRouter(h *Handler, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	setUser := func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Next()
	}
	r.POST("/recordings", setUser, h.Upload)
	r.GET("/recordings", setUser, h.List)
	r.GET("/recordings/:id/download-url", setUser, h.DownloadURL)
	return r
}

func multipartUpload(t *testing.T, title, duration string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", "note.m4a")
	require.NoError(t, err)
	_, err = fw.Write([]byte("audio-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("title", title))
	require.NoError(t, w.WriteField("duration", duration))
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHandlerUpload(t *testing.T) {
	userID := uuid.New()
	objects := &fakeObjectStore{resolveAny: true}
	docs := &fakeDocStore{}
	coordinator := NewCoordinator(objects, docs, nil)
	h := NewHandler(coordinator, &fakeReader{}, nil, nil, config.UploadConfig{TempDir: t.TempDir()}, nil)
	router := newTestRouter(h, userID)

	body, contentType := multipartUpload(t, "Test", "12.5")
	req := httptest.NewRequest(http.MethodPost, "/recordings", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp response.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	id, _ := data["id"].(string)
	require.NotEmpty(t, id)

	fields, ok := docs.docs["users/"+userID.String()+"/recordings/"+id]
	require.True(t, ok)
	assert.Equal(t, "Test", fields["title"])
	assert.Equal(t, 12.5, fields["duration"])
}

func TestHandlerUploadBackendUnavailable(t *testing.T) {
	userID := uuid.New()
	coordinator := NewCoordinator(Unavailable{}, Unavailable{}, nil)
	h := NewHandler(coordinator, &fakeReader{}, nil, nil, config.UploadConfig{TempDir: t.TempDir()}, nil)
	router := newTestRouter(h, userID)

	body, contentType := multipartUpload(t, "Test", "1")
	req := httptest.NewRequest(http.MethodPost, "/recordings", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerUploadMissingFile(t *testing.T) {
	userID := uuid.New()
	coordinator := NewCoordinator(&fakeObjectStore{}, &fakeDocStore{}, nil)
	h := NewHandler(coordinator, &fakeReader{}, nil, nil, config.UploadConfig{}, nil)
	router := newTestRouter(h, userID)

	req := httptest.NewRequest(http.MethodPost, "/recordings", bytes.NewBufferString(""))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerList(t *testing.T) {
	userID := uuid.New()
	prefix := "users/" + userID.String() + "/recordings/"
	reader := &fakeReader{docs: map[string]*docstore.Document{
		prefix + "r1": {Path: prefix + "r1", Fields: map[string]any{"id": "r1", "title": "one"}},
		"users/other/recordings/r2": {Path: "users/other/recordings/r2", Fields: map[string]any{"id": "r2"}},
	}}
	coordinator := NewCoordinator(&fakeObjectStore{}, &fakeDocStore{}, nil)
	h := NewHandler(coordinator, reader, nil, nil, config.UploadConfig{}, nil)
	router := newTestRouter(h, userID)

	req := httptest.NewRequest(http.MethodGet, "/recordings", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp response.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	list := resp.Data.([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "r1", list[0].(map[string]any)["id"])
}

func TestHandlerDownloadURL(t *testing.T) {
	userID := uuid.New()
	docPath := "users/" + userID.String() + "/recordings/r1"
	reader := &fakeReader{docs: map[string]*docstore.Document{
		docPath: {Path: docPath, Fields: map[string]any{"id": "r1", "storagePath": "recordings/" + userID.String() + "/r1.m4a"}},
	}}
	coordinator := NewCoordinator(&fakeObjectStore{}, &fakeDocStore{}, nil)
	h := NewHandler(coordinator, reader, fakePresigner{}, nil, config.UploadConfig{}, nil)
	router := newTestRouter(h, userID)

	req := httptest.NewRequest(http.MethodGet, "/recordings/r1/download-url", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp response.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Contains(t, data["download_url"], "https://signed.example.com/recordings/")

	// unknown id
	req = httptest.NewRequest(http.MethodGet, "/recordings/nope/download-url", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

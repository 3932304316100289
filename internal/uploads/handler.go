package uploads

import (
	"context"
	"errors"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-voicenotes/backend/config"
	"github.com/aura-voicenotes/backend/internal/middleware"
	"github.com/aura-voicenotes/backend/pkg/docstore"
	"github.com/aura-voicenotes/backend/pkg/queue"
	"github.com/aura-voicenotes/backend/pkg/response"
	"github.com/aura-voicenotes/backend/pkg/storage"
)

// DocumentReader reads back persisted recording documents for the API
// surface. The coordinator itself never reads.
type DocumentReader interface {
	Get(ctx context.Context, docPath string) (*docstore.Document, error)
	ListByPrefix(ctx context.Context, prefix string) ([]docstore.Document, error)
}

// URLPresigner issues time-limited download URLs. Optional; nil disables the
// download-url endpoint. Implemented by pkg/storage.S3.
type URLPresigner interface {
	PresignDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error)
	PresignExpire() time.Duration
}

// Handler handles recording upload HTTP endpoints.
type Handler struct {
	coordinator *Coordinator
	docs        DocumentReader
	presigner   URLPresigner
	jobs        *queue.Queue // optional: nil disables async uploads
	cfg         config.UploadConfig
	logger      *zap.Logger
}

// NewHandler creates an uploads handler.
func NewHandler(coordinator *Coordinator, docs DocumentReader, presigner URLPresigner, jobs *queue.Queue, cfg config.UploadConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{coordinator: coordinator, docs: docs, presigner: presigner, jobs: jobs, cfg: cfg, logger: logger}
}

// Upload handles POST /recordings (multipart: file, title, duration).
// With ?async=1 the staged file is queued for the background worker instead
// of being uploaded in-request.
func (h *Handler) Upload(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID).String()

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	if h.cfg.MaxFileSize > 0 && file.Size > h.cfg.MaxFileSize {
		response.BadRequest(c, "file size exceeds limit")
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = strings.TrimSuffix(path.Base(file.Filename), path.Ext(file.Filename))
	}
	// duration is stored as supplied; no range check
	duration, _ := strconv.ParseFloat(c.PostForm("duration"), 64)

	staged, err := h.stageFile(c, file)
	if err != nil {
		h.logger.Error("stage uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to stage file")
		return
	}

	if c.Query("async") == "1" {
		if h.jobs == nil {
			_ = os.Remove(staged)
			response.ServiceUnavailable(c, "background uploads not configured")
			return
		}
		jobID, err := h.jobs.EnqueueUpload(c.Request.Context(), queue.UploadPayload{
			LocalPath:   staged,
			UserID:      userID,
			Title:       title,
			Duration:    duration,
			ContentType: storage.ContentTypeForFilename(file.Filename),
		})
		if err != nil {
			_ = os.Remove(staged)
			h.logger.Error("enqueue upload failed", zap.Error(err))
			response.Internal(c, "failed to queue upload")
			return
		}
		response.Accepted(c, gin.H{"job_id": jobID})
		return
	}

	id, err := h.coordinator.UploadAndSave(c.Request.Context(), staged, title, duration, userID)
	_ = os.Remove(staged)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, gin.H{"id": id})
}

// stageFile saves the multipart file to the upload temp dir and returns its path.
func (h *Handler) stageFile(c *gin.Context, file *multipart.FileHeader) (string, error) {
	dir := h.cfg.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	ext := path.Ext(file.Filename)
	if ext == "" {
		ext = storage.DefaultAudioExtension
	}
	dst := filepath.Join(dir, uuid.New().String()+ext)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// List handles GET /recordings: the caller's recording documents, newest first.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID).String()
	prefix := path.Join("users", userID, "recordings") + "/"
	docs, err := h.docs.ListByPrefix(c.Request.Context(), prefix)
	if err != nil {
		h.logger.Error("list recordings failed", zap.Error(err), zap.String("user_id", userID))
		response.Internal(c, "failed to list recordings")
		return
	}
	list := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		list = append(list, d.Fields)
	}
	response.OK(c, list)
}

// DownloadURL handles GET /recordings/:id/download-url: a presigned GET URL
// for the stored object (for private-bucket deployments; the persisted
// downloadURL field stays valid for public buckets).
func (h *Handler) DownloadURL(c *gin.Context) {
	if h.presigner == nil {
		response.ServiceUnavailable(c, "object storage not configured")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID).String()
	recordingID := c.Param("id")

	docPath := path.Join("users", userID, "recordings", recordingID)
	doc, err := h.docs.Get(c.Request.Context(), docPath)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			response.NotFound(c, "recording not found")
			return
		}
		h.logger.Error("get recording failed", zap.Error(err), zap.String("doc_path", docPath))
		response.Internal(c, "failed to load recording")
		return
	}
	storagePath, _ := doc.Fields["storagePath"].(string)
	if storagePath == "" {
		response.Internal(c, "recording has no storage path")
		return
	}

	url, err := h.presigner.PresignDownloadURL(c.Request.Context(), storagePath, h.presigner.PresignExpire())
	if err != nil {
		h.logger.Error("presign download failed", zap.Error(err), zap.String("storage_path", storagePath))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in_sec": int(h.presigner.PresignExpire().Seconds())})
}

// writeError maps coordinator error kinds to HTTP responses.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch KindOf(err) {
	case KindLocalFileMissing:
		response.NotFound(c, err.Error())
	case KindBackendUnavailable:
		response.ServiceUnavailable(c, err.Error())
	case KindURLResolutionFailed:
		h.logger.Error("upload stored but URL unresolved",
			zap.String("storage_path", StoragePathOf(err)), zap.Error(err))
		response.Internal(c, err.Error())
	default:
		h.logger.Error("upload failed", zap.Error(err))
		response.Internal(c, err.Error())
	}
}

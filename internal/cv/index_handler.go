package cv

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resume-workflow/internal/extract"
	"resume-workflow/internal/knowledge"
	"resume-workflow/internal/queue"
	"resume-workflow/internal/shared/server/middleware"
	"resume-workflow/internal/shared/server/respond"
	"resume-workflow/internal/shared/telemetry"
)

const maxUploadBytes = 20 << 20

// Index is the knowledge store surface used over HTTP.
type Index interface {
	AddFiles(ctx context.Context, files []knowledge.File) (knowledge.AddResult, error)
	Upload(ctx context.Context, fileName string, r io.Reader) (knowledge.Document, error)
	ListFiles(ctx context.Context) ([]knowledge.Document, error)
	GetFile(ctx context.Context, id string) (knowledge.Document, error)
	DeleteFile(ctx context.Context, id string) error
	DeleteCollection(ctx context.Context) error
}

// IndexHandler serves the candidate document index. With a queue configured
// uploads are indexed asynchronously by the worker.
type IndexHandler struct {
	Index Index
	Queue queue.Client
}

// NewIndexHandler constructs an IndexHandler. q may be nil.
func NewIndexHandler(index Index, q queue.Client) *IndexHandler {
	return &IndexHandler{Index: index, Queue: q}
}

// RegisterRoutes attaches index routes to the router group.
func (h *IndexHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/files", h.addFiles)
	rg.GET("/files", h.listFiles)
	rg.GET("/files/:id", h.getFile)
	rg.DELETE("/files/:id", h.deleteFile)
	rg.DELETE("/collection", h.deleteCollection)
}

func (h *IndexHandler) addFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form with files is required", nil)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "at least one file is required", nil)
		return
	}
	for _, fh := range headers {
		if fh.Size > maxUploadBytes {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds upload limit", gin.H{"fileName": fh.Filename})
			return
		}
	}

	if h.Queue != nil {
		h.enqueueFiles(c, headers)
		return
	}

	files, closeAll, err := openAll(headers)
	defer closeAll()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "failed to read upload", nil)
		return
	}
	result, err := h.Index.AddFiles(c.Request.Context(), files)
	if err != nil {
		writeIndexError(c, err)
		return
	}
	respond.Created(c, result)
}

func (h *IndexHandler) enqueueFiles(c *gin.Context, headers []*multipart.FileHeader) {
	ctx := c.Request.Context()
	resp := queuedResponse{Queued: []queuedFile{}, Skipped: []string{}}
	for _, fh := range headers {
		doc, err := h.uploadOne(ctx, fh)
		if errors.Is(err, knowledge.ErrDuplicate) {
			resp.Skipped = append(resp.Skipped, fh.Filename)
			continue
		}
		if err != nil {
			writeIndexError(c, err)
			return
		}

		msg := queue.Message{
			DocumentID: doc.ID,
			FileName:   doc.FileName,
			RequestID:  middleware.RequestIDFromContext(c),
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    queue.MessageVersion,
		}
		if err := h.Queue.Send(ctx, msg); err != nil {
			telemetry.Error("index.enqueue_failed", map[string]any{"document_id": doc.ID, "error": err.Error()})
			_ = h.Index.DeleteFile(context.WithoutCancel(ctx), doc.ID)
			respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "failed to queue indexing job", nil)
			return
		}
		resp.Queued = append(resp.Queued, queuedFile{Document: doc, Queued: true})
	}
	respond.Accepted(c, resp)
}

func (h *IndexHandler) uploadOne(ctx context.Context, fh *multipart.FileHeader) (knowledge.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return knowledge.Document{}, err
	}
	defer f.Close()
	return h.Index.Upload(ctx, fh.Filename, f)
}

func (h *IndexHandler) listFiles(c *gin.Context) {
	docs, err := h.Index.ListFiles(c.Request.Context())
	if err != nil {
		writeIndexError(c, err)
		return
	}
	respond.OK(c, filesResponse{Files: docs})
}

func (h *IndexHandler) getFile(c *gin.Context) {
	doc, err := h.Index.GetFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeIndexError(c, err)
		return
	}
	respond.OK(c, doc)
}

func (h *IndexHandler) deleteFile(c *gin.Context) {
	if err := h.Index.DeleteFile(c.Request.Context(), c.Param("id")); err != nil {
		writeIndexError(c, err)
		return
	}
	respond.NoContent(c)
}

func (h *IndexHandler) deleteCollection(c *gin.Context) {
	if err := h.Index.DeleteCollection(c.Request.Context()); err != nil {
		writeIndexError(c, err)
		return
	}
	respond.NoContent(c)
}

func openAll(headers []*multipart.FileHeader) ([]knowledge.File, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}
	files := make([]knowledge.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, f)
		files = append(files, knowledge.File{Name: fh.Filename, Body: f})
	}
	return files, closeAll, nil
}

func writeIndexError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, knowledge.ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid input", nil)
	case errors.Is(err, knowledge.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, knowledge.ErrDuplicate):
		respond.Error(c, http.StatusConflict, "duplicate_document", "document already indexed", nil)
	case errors.Is(err, extract.ErrUnsupported):
		respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "file type is not supported", nil)
	case errors.Is(err, knowledge.ErrNoContent):
		respond.Error(c, http.StatusUnprocessableEntity, "no_content", "document has no extractable text", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "knowledge index operation failed", nil)
	}
}

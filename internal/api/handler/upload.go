package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/danikhandev/serve-u/internal/media"
	"github.com/danikhandev/serve-u/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Limits advertises the upload and recording caps so clients mirror
// server-side validation before any network call and configure the
// voice recorder's auto-stop from the same source of truth.
func (h *Handler) Limits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"maxImageMb":              h.Cfg.MaxImageMB,
		"maxDocumentMb":           h.Cfg.MaxDocumentMB,
		"maxUploadMb":             h.Cfg.MaxUploadMB,
		"voiceMaxDurationSeconds": int(h.Cfg.VoiceMaxDuration.Seconds()),
	})
}

// Upload accepts one multipart file, validates it against the type and
// size limits, stores it and returns the attachment record ready to be
// referenced by a message.
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	limits := media.Limits{
		MaxImageMB:    h.Cfg.MaxImageMB,
		MaxDocumentMB: h.Cfg.MaxDocumentMB,
		MaxUploadMB:   h.Cfg.MaxUploadMB,
	}
	if err := limits.Validate(fileHeader.Filename, contentType, fileHeader.Size); err != nil {
		var invalid *media.ErrInvalidFile
		if errors.As(err, &invalid) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": invalid.Reason})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}

	fileURL, thumbURL, err := h.Media.Upload(c.Request.Context(), fileHeader.Filename, contentType, data)
	if err != nil {
		h.Log.Error("upload: store failed", zap.String("file", fileHeader.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	att := models.Attachment{
		FileName:     fileHeader.Filename,
		FileType:     contentType,
		FileSize:     fileHeader.Size,
		FileURL:      fileURL,
		ThumbnailURL: thumbURL,
	}
	c.JSON(http.StatusCreated, att)
}

// DownloadURL resolves a stored file's public or presigned URL so the
// client can fetch the original bytes.
func (h *Handler) DownloadURL(c *gin.Context) {
	fileURL := c.Query("url")
	if fileURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url parameter required"})
		return
	}
	signed, err := h.Media.DownloadURL(c.Request.Context(), fileURL)
	if err != nil {
		h.Log.Error("upload: presign failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve download"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": signed})
}

package file

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abduss/filestore/internal/auth"
	"github.com/abduss/filestore/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// UploadIDHeader carries the progress correlation id on POST /upload.
	UploadIDHeader = "X-Upload-ID"

	maxUploadIDLen = 128
	// multipartOverhead covers the boundaries, part headers and the comment.
	multipartOverhead = 64 * 1024
	codeFileTooLarge  = "file_too_large"
)

// RegisterRoutes mounts file operations on a router group already behind the auth gate.
func RegisterRoutes(group gin.IRouter, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/upload", handler.uploadFile)
	group.GET("/files", handler.listFiles)
	group.GET("/download/:storedName", handler.downloadFile)
	group.DELETE("/files/:storedName", handler.deleteFile)
}

type httpHandler struct {
	service *Service
}

type listItem struct {
	StoredName   string `json:"storedName"`
	OriginalName string `json:"originalName"`
	Comment      string `json:"comment"`
}

func (h *httpHandler) uploadFile(c *gin.Context) {
	principal, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	uploadID := strings.TrimSpace(c.GetHeader(UploadIDHeader))
	if len(uploadID) > maxUploadIDLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "upload id too long"})
		return
	}

	mediaType, params, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart/form-data body is required"})
		return
	}

	limit := h.service.MaxFileSize() + multipartOverhead
	if c.Request.ContentLength > limit {
		writeUploadError(c, ErrFileTooLarge)
		return
	}

	// a server-wide ReadTimeout covers the body too; slow uploads must not trip it
	if err := http.NewResponseController(c.Writer).SetReadDeadline(time.Time{}); err != nil {
		logger.FromContext(c).Debug("clear read deadline", zap.Error(err))
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	defer body.Close()

	result, err := h.service.Upload(c.Request.Context(), UploadInput{
		OwnerID:       principal.UserID,
		CorrelationID: uploadID,
		DeclaredSize:  c.Request.ContentLength,
		Body:          body,
		Boundary:      params["boundary"],
	})
	if err != nil {
		if errors.Is(err, ErrStorage) {
			logger.FromContext(c).Error("upload failed", zap.Error(err))
		} else {
			logger.FromContext(c).Info("upload rejected", zap.Error(err))
		}
		writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) listFiles(c *gin.Context) {
	principal, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	files, err := h.service.List(c.Request.Context(), principal.UserID)
	if err != nil {
		logger.FromContext(c).Error("list files", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}

	items := make([]listItem, 0, len(files))
	for _, f := range files {
		items = append(items, listItem{StoredName: f.StoredName, OriginalName: f.OriginalName, Comment: f.Comment})
	}
	c.JSON(http.StatusOK, items)
}

func (h *httpHandler) downloadFile(c *gin.Context) {
	principal, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	meta, reader, info, err := h.service.Download(c.Request.Context(), principal.UserID, c.Param("storedName"))
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		logger.FromContext(c).Error("download file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to download file"})
		return
	}
	defer reader.Close()

	contentType := meta.ContentType
	if contentType == "" {
		contentType = info.ContentType
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", contentDisposition(meta.OriginalName))
	if info.Size >= 0 {
		c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, reader); err != nil {
		// headers are gone already; all we can do is stop
		logger.FromContext(c).Warn("download interrupted", zap.Error(err))
	}
}

func (h *httpHandler) deleteFile(c *gin.Context) {
	principal, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), principal.UserID, c.Param("storedName")); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		logger.FromContext(c).Error("delete file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func writeUploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrFileTooLarge.Error(), "code": codeFileTooLarge})
	case errors.Is(err, ErrMissingComment):
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrMissingComment.Error()})
	case errors.Is(err, ErrMissingFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrMissingFile.Error()})
	case errors.Is(err, ErrInvalidUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed upload"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload file"})
	}
}

// contentDisposition suggests the original name; non-ASCII names are sent
// as RFC 2231 filename*.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

package handler

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ctp-api/internal/service"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/response"
	"github.com/noah-isme/ctp-api/pkg/storage"
)

// signedFileSource serves objects of the local backend behind signed tokens.
type signedFileSource interface {
	Resolve(token string) (string, error)
	Open(key string) (*os.File, error)
}

// ImageHandler exposes image upload, signing and deletion.
type ImageHandler struct {
	service *service.ImageService
	files   signedFileSource
}

// NewImageHandler constructs an image handler. files may be nil when images live in S3.
func NewImageHandler(svc *service.ImageService, files signedFileSource) *ImageHandler {
	return &ImageHandler{service: svc, files: files}
}

// Upload godoc
// @Summary Upload image
// @Description Accepts jpg, jpeg, png or webp up to the configured size and returns a signed URL
// @Tags Images
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /images/upload [post]
func (h *ImageHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to open file"))
		return
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(fileHeader.Filename))
	}
	upload, err := h.service.Upload(c.Request.Context(), fileHeader.Filename, contentType, fileHeader.Size, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, upload)
}

// SignedURL godoc
// @Summary Signed image URL
// @Description Returns a time limited URL for the stored image
// @Tags Images
// @Produce json
// @Security BearerAuth
// @Param key path string true "Image key, e.g. images/<uuid>.png"
// @Success 200 {object} response.Envelope
// @Router /images/{key} [get]
func (h *ImageHandler) SignedURL(c *gin.Context) {
	signed, err := h.service.SignedURL(c.Request.Context(), imageKey(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, signed)
}

// Delete godoc
// @Summary Delete image
// @Tags Images
// @Security BearerAuth
// @Param key path string true "Image key"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /images/{key} [delete]
func (h *ImageHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), imageKey(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ServeFile streams a locally stored image addressed by a signed token.
func (h *ImageHandler) ServeFile(c *gin.Context) {
	if h.files == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "local image storage is disabled"))
		return
	}
	key, err := h.files.Resolve(c.Param("token"))
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "image link expired"))
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid image link"))
		return
	}
	file, err := h.files.Open(key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			response.Error(c, appErrors.NotFound("Image", key))
			return
		}
		response.Error(c, appErrors.Internal(err, "failed to open image"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to stat image"))
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}

func imageKey(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("key"), "/")
}

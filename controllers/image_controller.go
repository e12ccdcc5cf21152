package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ejfeldman7/lakebase-image-serving/services"
	"github.com/ejfeldman7/lakebase-image-serving/storage"
)

// ImageLoader is the slice of the image service the handlers need.
type ImageLoader interface {
	Load(ctx context.Context, path string) (*services.Image, error)
	Thumbnail(ctx context.Context, path string) ([]byte, error)
}

type ImageController struct {
	images ImageLoader
}

func NewImageController(images ImageLoader) *ImageController {
	return &ImageController{images: images}
}

// Serve streams the full image bytes for a table path.
// GET /api/image?path=/Volumes/...
func (ic *ImageController) Serve(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	img, err := ic.images.Load(c.Request.Context(), path)
	if err != nil {
		c.JSON(imageErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, img.ContentType, img.Bytes)
}

// Thumbnail streams a scaled-down JPEG for a table path.
// GET /api/image/thumbnail?path=/Volumes/...
func (ic *ImageController) Thumbnail(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	data, err := ic.images.Thumbnail(c.Request.Context(), path)
	if err != nil {
		c.JSON(imageErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func imageErrorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrPermissionDenied):
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}

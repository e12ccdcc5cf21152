package services

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/ejfeldman7/lakebase-image-serving/config"
	"github.com/ejfeldman7/lakebase-image-serving/storage"
)

const volumePrefix = "/Volumes/"

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}

// Image is a fetched, decode-validated image ready to serve.
type Image struct {
	Bytes       []byte
	ContentType string
	Format      string
	Width       int
	Height      int
}

// ImageService fetches image bytes from the object store and prepares them
// for display.
type ImageService struct {
	store    storage.FileStore
	basePath string
}

func NewImageService(store storage.FileStore, cfg *config.Config) *ImageService {
	return &ImageService{store: store, basePath: strings.TrimRight(cfg.VolumeBasePath, "/")}
}

// NormalizeVolumePath maps the path values the sync process writes into the
// /Volumes/... form the store expects. The table is fed by an external
// pipeline, so this is defensive about the junk that shows up there: dbfs:
// URIs, bare filenames, numeric ids.
func (s *ImageService) NormalizeVolumePath(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	if p == "" {
		return "", errors.New("empty file path")
	}

	switch {
	case strings.HasPrefix(p, "dbfs:"+volumePrefix):
		return strings.TrimPrefix(p, "dbfs:"), nil
	case strings.HasPrefix(p, volumePrefix):
		return p, nil
	}

	if isDigits(p) {
		return "", errors.Errorf("path is a numeric id, not a file path: %s", p)
	}

	if !strings.Contains(p, "/") {
		// Bare filename: recover by joining the configured base path, but
		// only when it actually looks like an image file.
		if hasImageExtension(p) {
			return s.basePath + "/" + p, nil
		}
		return "", errors.Errorf("bare filename without an image extension: %s", p)
	}

	if strings.HasPrefix(p, "/") {
		// Filesystem-style path; salvageable only if a volume path is
		// embedded in it.
		if idx := strings.Index(p, volumePrefix); idx >= 0 {
			return p[idx:], nil
		}
		return "", errors.Errorf("path is not under %s: %s", volumePrefix, p)
	}

	return "", errors.Errorf("invalid volume path format: %s", p)
}

// Load fetches and decode-validates the image at the given table path.
func (s *ImageService) Load(ctx context.Context, path string) (*Image, error) {
	normalized, err := s.NormalizeVolumePath(path)
	if err != nil {
		return nil, err
	}

	rc, err := s.store.Download(ctx, normalized)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "read image %s", path)
	}

	dims, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "decode image %s", path)
	}

	return &Image{
		Bytes:       data,
		ContentType: "image/" + format,
		Format:      format,
		Width:       dims.Width,
		Height:      dims.Height,
	}, nil
}

// Thumbnail returns the image scaled to fit the configured edge, encoded
// as JPEG.
func (s *ImageService) Thumbnail(ctx context.Context, path string) ([]byte, error) {
	img, err := s.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.Bytes))
	if err != nil {
		return nil, errors.Wrapf(err, "decode image %s", path)
	}

	thumb := resize.Thumbnail(config.ThumbnailEdge, config.ThumbnailEdge, decoded, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, nil); err != nil {
		return nil, errors.Wrapf(err, "encode thumbnail for %s", path)
	}
	return buf.Bytes(), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hasImageExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

package storage

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/ejfeldman7/lakebase-image-serving/config"
)

// TokenProvider supplies the bearer token for Files API calls.
type TokenProvider interface {
	OAuthToken(ctx context.Context) (string, error)
}

const filesAPIPath = "/api/2.0/fs/files"

var _ FileStore = (*VolumeStore)(nil)

// VolumeStore reads files from a Unity Catalog volume through the
// workspace Files API. Paths are the /Volumes/... form the sync process
// writes into the predictions table.
type VolumeStore struct {
	host   string
	tokens TokenProvider
	client *http.Client
}

func NewVolumeStore(host string, tokens TokenProvider) *VolumeStore {
	return &VolumeStore{
		host:   strings.TrimRight(host, "/"),
		tokens: tokens,
		client: &http.Client{Timeout: config.RequestTimeout},
	}
}

func (v *VolumeStore) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	token, err := v.tokens.OAuthToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.host+filesAPIPath+path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "build volume request for %s", path)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "download %s from volume", path)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, errors.Wrapf(ErrNotFound, "volume path %s", path)
	case http.StatusUnauthorized, http.StatusForbidden:
		resp.Body.Close()
		return nil, errors.Wrapf(ErrPermissionDenied, "volume path %s", path)
	default:
		resp.Body.Close()
		return nil, errors.Errorf("download %s from volume: unexpected status %d", path, resp.StatusCode)
	}
}

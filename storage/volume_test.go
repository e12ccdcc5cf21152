package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) OAuthToken(ctx context.Context) (string, error) {
	return s.token, s.err
}

func TestVolumeStoreDownload(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	store := NewVolumeStore(srv.URL+"/", staticTokens{token: "tok-123"})
	rc, err := store.Download(context.Background(), "/Volumes/demos/image_app/images/cat.jpg")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
	assert.Equal(t, "/api/2.0/fs/files/Volumes/demos/image_app/images/cat.jpg", gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestVolumeStoreStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"missing file", http.StatusNotFound, ErrNotFound},
		{"forbidden", http.StatusForbidden, ErrPermissionDenied},
		{"unauthorized", http.StatusUnauthorized, ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			store := NewVolumeStore(srv.URL, staticTokens{token: "tok"})
			_, err := store.Download(context.Background(), "/Volumes/x/y/z.png")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "want %v in chain, got %v", tt.sentinel, err)
		})
	}
}

func TestVolumeStoreUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewVolumeStore(srv.URL, staticTokens{token: "tok"})
	_, err := store.Download(context.Background(), "/Volumes/x/y/z.png")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrPermissionDenied))
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestVolumeStoreTokenFailure(t *testing.T) {
	store := NewVolumeStore("https://workspace.example.com", staticTokens{err: errors.New("no token")})
	_, err := store.Download(context.Background(), "/Volumes/x/y/z.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token")
}

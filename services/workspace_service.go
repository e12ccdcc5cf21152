package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ejfeldman7/lakebase-image-serving/config"
)

// WorkspaceService mints OAuth machine-to-machine tokens for the
// Databricks workspace. Lakebase uses these tokens as the Postgres
// password, and the volume store sends them as a bearer credential.
type WorkspaceService struct {
	host  string
	oauth *clientcredentials.Config
}

func NewWorkspaceService(cfg *config.Config) *WorkspaceService {
	return &WorkspaceService{
		host: strings.TrimRight(cfg.DatabricksHost, "/"),
		oauth: &clientcredentials.Config{
			ClientID:     cfg.DatabricksClientID,
			ClientSecret: cfg.DatabricksClientSecret,
			TokenURL:     cfg.TokenURL(),
			Scopes:       []string{"all-apis"},
		},
	}
}

// Host returns the workspace base URL without a trailing slash.
func (s *WorkspaceService) Host() string {
	return s.host
}

// OAuthToken returns a current access token for the workspace.
func (s *WorkspaceService) OAuthToken(ctx context.Context) (string, error) {
	tok, err := s.oauth.Token(ctx)
	if err != nil {
		return "", errors.Wrap(err, "fetch workspace OAuth token")
	}
	return tok.AccessToken, nil
}

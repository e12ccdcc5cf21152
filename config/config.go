package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Constants that do not vary per deployment.
const (
	// PathColumn is the column of the predictions table that holds the
	// volume path of each image.
	PathColumn = "path"

	// RequestTimeout bounds every call to the workspace Files API.
	RequestTimeout = 10 * time.Second

	// ThumbnailEdge is the longest edge of a generated thumbnail, in pixels.
	ThumbnailEdge = 200

	// DefaultItemsPerPage is the page size for the paginated images API.
	DefaultItemsPerPage = 24
)

// Config holds everything read from the environment. Lakebase hands out
// OAuth tokens as Postgres passwords, so there is no PGPASSWORD here.
type Config struct {
	DatabricksHost         string `envconfig:"DATABRICKS_HOST" required:"true"`
	DatabricksClientID     string `envconfig:"DATABRICKS_CLIENT_ID" required:"true"`
	DatabricksClientSecret string `envconfig:"DATABRICKS_CLIENT_SECRET" required:"true"`

	PGDatabase string `envconfig:"PGDATABASE" required:"true"`
	PGUser     string `envconfig:"PGUSER" required:"true"`
	PGHost     string `envconfig:"PGHOST" required:"true"`
	PGPort     string `envconfig:"PGPORT" required:"true"`
	PGSSLMode  string `envconfig:"PGSSLMODE" default:"require"`
	PGAppName  string `envconfig:"PGAPPNAME" default:"lakebase-image-serving"`

	Schema         string `envconfig:"LAKEBASE_SCHEMA" default:"example"`
	Table          string `envconfig:"LAKEBASE_TABLE" default:"image_predictions"`
	VolumeBasePath string `envconfig:"VOLUME_BASE_PATH" default:"/Volumes/demos/image_app/images"`

	PoolMinConns         int           `envconfig:"POOL_MIN_CONNS" default:"2"`
	PoolMaxConns         int           `envconfig:"POOL_MAX_CONNS" default:"10"`
	TokenRefreshInterval time.Duration `envconfig:"TOKEN_REFRESH_INTERVAL" default:"15m"`

	// StorageBackend selects where image bytes live: "volume" for a Unity
	// Catalog volume via the Files API, "s3" for an S3 bucket.
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"volume"`
	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3Region       string `envconfig:"S3_REGION"`
	S3Prefix       string `envconfig:"S3_PREFIX"`

	Port string `envconfig:"PORT" default:"8080"`
}

// Load reads .env (if present) and then the process environment. The
// returned Config is non-nil even on error so callers can still print
// setup instructions with whatever defaults survived.
func Load() (*Config, error) {
	// Same as the local-dev flow elsewhere: a missing .env just means the
	// environment is already populated.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return cfg, errors.Wrap(err, "load configuration")
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case "volume":
	case "s3":
		if c.S3Bucket == "" || c.S3Region == "" {
			return errors.New("STORAGE_BACKEND=s3 requires S3_BUCKET and S3_REGION")
		}
	default:
		return errors.Errorf("unknown STORAGE_BACKEND %q (want volume or s3)", c.StorageBackend)
	}
	if c.PoolMinConns < 0 || c.PoolMaxConns < 1 || c.PoolMinConns > c.PoolMaxConns {
		return errors.Errorf("invalid pool sizing: min=%d max=%d", c.PoolMinConns, c.PoolMaxConns)
	}
	if c.TokenRefreshInterval <= 0 {
		return errors.New("TOKEN_REFRESH_INTERVAL must be positive")
	}
	return nil
}

// TokenURL is the workspace OAuth token endpoint.
func (c *Config) TokenURL() string {
	return strings.TrimRight(c.DatabricksHost, "/") + "/oidc/v1/token"
}

// SetupInstructions explains how to get a working deployment. Printed when
// configuration or first database contact fails.
func (c *Config) SetupInstructions() string {
	schema, table, volume := c.Schema, c.Table, c.VolumeBasePath
	if schema == "" {
		schema = "example"
	}
	if table == "" {
		table = "image_predictions"
	}
	return fmt.Sprintf(`Setup requirements:
  1. Ensure your Lakebase connection is properly configured.
  2. Verify the %s.%s table exists in your PostgreSQL sync.
  3. Check that DATABRICKS_HOST points at your workspace URL.
  4. Ensure you have access to the Unity Catalog volume: %s

Required environment variables:
  DATABRICKS_HOST           workspace URL
  DATABRICKS_CLIENT_ID      OAuth service principal client id
  DATABRICKS_CLIENT_SECRET  OAuth service principal secret
  PGDATABASE / PGUSER / PGHOST / PGPORT

Troubleshooting:
  - Verify the schema name matches your Lakebase database structure.
  - Ensure the Lakebase database is added as a resource for this app.
  - Check that the %s table is syncing from Unity Catalog.`,
		schema, table, volume, table)
}

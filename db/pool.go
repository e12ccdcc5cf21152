package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ejfeldman7/lakebase-image-serving/config"
)

// TokenProvider mints the OAuth tokens Lakebase accepts as Postgres
// passwords.
type TokenProvider interface {
	OAuthToken(ctx context.Context) (string, error)
}

// Pool hands out a live GORM handle while keeping the Lakebase credential
// fresh. The tokens expire, so once the current one ages past the refresh
// interval the pool fetches a replacement, reopens the handle with the new
// password, and closes the old one. The swap happens under the mutex: the
// first checkout past the deadline performs the refresh, concurrent
// checkouts block on the lock and then observe the updated timestamp.
type Pool struct {
	cfg    *config.Config
	tokens TokenProvider

	mu          sync.Mutex
	handle      *gorm.DB
	lastRefresh time.Time

	// seams for tests; NewPool wires the real implementations
	now   func() time.Time
	open  func(dsn string) (*gorm.DB, error)
	close func(handle *gorm.DB)
}

// NewPool fetches an initial token and opens the pool. A token or
// connection failure here is fatal to startup.
func NewPool(cfg *config.Config, tokens TokenProvider) (*Pool, error) {
	p := &Pool{cfg: cfg, tokens: tokens, now: time.Now}
	p.open = p.openGorm
	p.close = closeGorm

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.refreshLocked(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

// DB returns the current handle, refreshing the credential first when it is
// at least TokenRefreshInterval old. Callers must not retain the handle
// across requests.
func (p *Pool) DB(ctx context.Context) (*gorm.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.now().Sub(p.lastRefresh) >= p.cfg.TokenRefreshInterval {
		if err := p.refreshLocked(ctx); err != nil {
			return nil, err
		}
	}
	return p.handle, nil
}

// Close releases the underlying connections.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle != nil {
		p.close(p.handle)
		p.handle = nil
	}
}

// refreshLocked swaps in a freshly minted credential. The caller holds
// p.mu. On failure the old handle and timestamp stay in place, so the next
// checkout retries.
func (p *Pool) refreshLocked(ctx context.Context) error {
	log.Info("refreshing Lakebase OAuth token")

	token, err := p.tokens.OAuthToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refresh OAuth token")
	}

	handle, err := p.open(p.dsn(token))
	if err != nil {
		return errors.Wrap(err, "open database")
	}

	if p.handle != nil {
		p.close(p.handle)
	}
	p.handle = handle
	p.lastRefresh = p.now()
	return nil
}

func (p *Pool) dsn(password string) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s application_name=%s",
		p.cfg.PGHost,
		p.cfg.PGUser,
		password,
		p.cfg.PGDatabase,
		p.cfg.PGPort,
		p.cfg.PGSSLMode,
		p.cfg.PGAppName,
	)
}

func (p *Pool) openGorm(dsn string) (*gorm.DB, error) {
	handle, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := handle.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(p.cfg.PoolMinConns)
	sqlDB.SetMaxOpenConns(p.cfg.PoolMaxConns)
	return handle, nil
}

func closeGorm(handle *gorm.DB) {
	sqlDB, err := handle.DB()
	if err != nil {
		log.Warnf("close pool: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warnf("close pool: %v", err)
	}
}

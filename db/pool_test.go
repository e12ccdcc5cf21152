package db

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ejfeldman7/lakebase-image-serving/config"
)

type fakeTokens struct {
	mu     sync.Mutex
	tokens []string
	calls  int
	err    error
}

func (f *fakeTokens) OAuthToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	tok := f.tokens[f.calls%len(f.tokens)]
	f.calls++
	return tok, nil
}

func (f *fakeTokens) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() *config.Config {
	return &config.Config{
		PGHost:               "db.example.com",
		PGUser:               "svc",
		PGDatabase:           "gallery",
		PGPort:               "5432",
		PGSSLMode:            "require",
		PGAppName:            "lakebase-image-serving",
		PoolMinConns:         2,
		PoolMaxConns:         10,
		TokenRefreshInterval: 15 * time.Minute,
	}
}

// newTestPool builds a pool with fake clock/opener without dialing anything.
func newTestPool(t *testing.T, tokens *fakeTokens, clock *fakeClock) (*Pool, *[]string, *int) {
	t.Helper()

	var dsns []string
	closed := 0
	p := &Pool{cfg: testConfig(), tokens: tokens, now: clock.now}
	p.open = func(dsn string) (*gorm.DB, error) {
		dsns = append(dsns, dsn)
		return &gorm.DB{}, nil
	}
	p.close = func(handle *gorm.DB) { closed++ }

	require.NoError(t, p.refreshLocked(context.Background()))
	return p, &dsns, &closed
}

func TestPoolRefreshesOnlyAfterInterval(t *testing.T) {
	tokens := &fakeTokens{tokens: []string{"tok-a", "tok-b"}}
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	p, dsns, closed := newTestPool(t, tokens, clock)

	require.Equal(t, 1, tokens.callCount())

	// Just under the interval: no refresh, same handle.
	clock.advance(15*time.Minute - time.Second)
	first, err := p.DB(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, tokens.callCount())
	assert.Equal(t, 0, *closed)

	// Exactly at the interval: refresh, new handle, old one closed.
	clock.advance(time.Second)
	second, err := p.DB(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, tokens.callCount())
	assert.Equal(t, 1, *closed)
	assert.NotSame(t, first, second)
	assert.Len(t, *dsns, 2)
}

func TestPoolDSNCarriesTokenAsPassword(t *testing.T) {
	tokens := &fakeTokens{tokens: []string{"tok-secret"}}
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	_, dsns, _ := newTestPool(t, tokens, clock)

	require.Len(t, *dsns, 1)
	dsn := (*dsns)[0]
	assert.Contains(t, dsn, "password=tok-secret")
	assert.Contains(t, dsn, "host=db.example.com")
	assert.Contains(t, dsn, "dbname=gallery")
	assert.Contains(t, dsn, "sslmode=require")
	assert.Contains(t, dsn, "application_name=lakebase-image-serving")
}

func TestPoolKeepsOldHandleWhenRefreshFails(t *testing.T) {
	tokens := &fakeTokens{tokens: []string{"tok-a"}}
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	p, _, closed := newTestPool(t, tokens, clock)

	before, err := p.DB(context.Background())
	require.NoError(t, err)

	tokens.mu.Lock()
	tokens.err = errors.New("token endpoint down")
	tokens.mu.Unlock()

	clock.advance(16 * time.Minute)
	_, err = p.DB(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "refresh OAuth token"))
	assert.Equal(t, 0, *closed)

	// Recovery: next checkout after the endpoint is back refreshes.
	tokens.mu.Lock()
	tokens.err = nil
	tokens.mu.Unlock()

	after, err := p.DB(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Equal(t, 1, *closed)
}

func TestPoolConcurrentCheckoutsRefreshOnce(t *testing.T) {
	tokens := &fakeTokens{tokens: []string{"tok-a", "tok-b"}}
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	p, _, _ := newTestPool(t, tokens, clock)

	clock.advance(20 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.DB(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Initial fetch plus exactly one refresh for the whole burst.
	assert.Equal(t, 2, tokens.callCount())
}

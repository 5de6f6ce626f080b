// Package downloadcache provides a content-addressed local cache for
// File/Directory inputs fetched from remote URIs (http(s)://, s3://,
// gs://, ...), so a URI that many task calls in a run (or across runs)
// reference as an input is only ever downloaded once.
package downloadcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wdlrun/wdlrun/internal/cache"
)

// ErrMiss is returned by Get when a URI has no cached entry.
var ErrMiss = errors.New("downloadcache: miss")

// Entry is the sidecar metadata written alongside every cached file,
// named "<digest>.meta.json" next to "<digest>.data" in Config.Dir.
type Entry struct {
	URI         string    `json:"uri"`
	Digest      string    `json:"digest"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentType string    `json:"content_type,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Cache is a content-addressed disk cache for downloaded files, guarded
// by a Locker so concurrent workers fetching the same URI only do the
// work once. Entry metadata is additionally held in an in-process hot
// cache, so a URI a run consults repeatedly (e.g. a reference file many
// scatter iterations stage) skips the two os.Stat calls Get would
// otherwise make on every lookup.
type Cache struct {
	config Config
	locker Locker
	hot    cache.Cache
}

// New constructs a Cache rooted at cfg.Dir. When cfg.RedisAddr is set, a
// Redis-backed advisory lock coordinates concurrent fetches of the same
// URI across worker processes, and the hot metadata layer is likewise
// Redis-backed so every worker shares one view of which digests are
// known good; otherwise both fall back to in-process implementations
// that only help within a single worker.
func New(cfg Config) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("downloadcache: creating cache dir: %w", err)
	}
	hotTTL := time.Duration(cfg.LockTTL) * time.Second
	if hotTTL <= 0 {
		hotTTL = 5 * time.Minute
	}

	var locker Locker
	var hot cache.Cache
	if cfg.RedisAddr != "" {
		l, err := newRedisLocker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("downloadcache: redis locker: %w", err)
		}
		l.ttl = hotTTL
		locker = l
		rc, err := cache.NewRedisCache(cache.Config{
			URL:        "redis://" + cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			DefaultTTL: hotTTL,
			Prefix:     "wdlrun:downloadcache:hot:",
		})
		if err != nil {
			return nil, fmt.Errorf("downloadcache: redis hot cache: %w", err)
		}
		hot = rc
	} else {
		locker = newLocalLocker()
		hot = cache.NewMemoryCache(cache.Config{DefaultTTL: hotTTL, MaxMemory: 16 * 1024 * 1024})
	}
	return &Cache{config: cfg, locker: locker, hot: hot}, nil
}

// key normalizes a URI into the cache digest it's addressed by: the
// query string is dropped first when IgnoreQueryParams is set, since a
// signed-URL query (e.g. an S3 presigned token) changes on every request
// without the underlying object changing.
func (c *Cache) key(uri string) string {
	addr := uri
	if c.config.IgnoreQueryParams {
		if u, err := url.Parse(uri); err == nil {
			u.RawQuery = ""
			addr = u.String()
		}
	}
	sum := sha256.Sum256([]byte(addr))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) paths(digest string) (data, meta string) {
	return filepath.Join(c.config.Dir, digest+".data"), filepath.Join(c.config.Dir, digest+".meta.json")
}

// Enabled reports whether uri matches an enable pattern (if any are
// configured) and no disable pattern, so a caller can decide whether to
// bypass the cache entirely for a given scheme.
func (c *Cache) Enabled(uri string) bool {
	if !c.config.Enabled {
		return false
	}
	for _, pat := range c.config.DisablePatterns {
		if matched, _ := filepath.Match(pat, uri); matched {
			return false
		}
	}
	if len(c.config.EnablePatterns) == 0 {
		return true
	}
	for _, pat := range c.config.EnablePatterns {
		if matched, _ := filepath.Match(pat, uri); matched {
			return true
		}
	}
	return false
}

// Get returns the local path of a previously cached download, or
// ErrMiss. Cached entries are treated as immutable: a hit is returned
// without re-validating against the remote resource.
func (c *Cache) Get(ctx context.Context, uri string) (string, error) {
	digest := c.key(uri)
	data, meta := c.paths(digest)

	if hit, err := c.hot.Exists(ctx, digest); err == nil && hit {
		return data, nil
	}

	if _, err := os.Stat(meta); err != nil {
		if os.IsNotExist(err) {
			return "", ErrMiss
		}
		return "", fmt.Errorf("downloadcache: stat metadata: %w", err)
	}
	if _, err := os.Stat(data); err != nil {
		if os.IsNotExist(err) {
			return "", ErrMiss
		}
		return "", fmt.Errorf("downloadcache: stat data: %w", err)
	}
	c.markHot(ctx, digest)
	return data, nil
}

// markHot records digest as present so subsequent Get calls within its
// TTL skip the filesystem round trip; failures are not fatal, since the
// hot cache is an optimization, not the source of truth.
func (c *Cache) markHot(ctx context.Context, digest string) {
	_ = c.hot.Set(ctx, digest, []byte{1}, 0)
}

// FetchFunc downloads uri and streams its bytes to w, returning the
// content type it observed (if any).
type FetchFunc func(ctx context.Context, uri string, w io.Writer) (contentType string, err error)

// GetOrFetch returns the cached path for uri, downloading it via fetch
// under an advisory lock if it isn't already cached. Concurrent callers
// for the same uri (in this process or, with a Redis locker, across
// processes) block on the lock rather than downloading redundantly.
func (c *Cache) GetOrFetch(ctx context.Context, uri string, fetch FetchFunc) (string, error) {
	if path, err := c.Get(ctx, uri); err == nil {
		return path, nil
	} else if !errors.Is(err, ErrMiss) {
		return "", err
	}

	unlock, err := c.locker.Lock(ctx, c.key(uri))
	if err != nil {
		return "", fmt.Errorf("downloadcache: acquiring lock for %q: %w", uri, err)
	}
	defer unlock()

	// Another worker may have populated the cache while we waited for the lock.
	if path, err := c.Get(ctx, uri); err == nil {
		return path, nil
	}

	digest := c.key(uri)
	data, meta := c.paths(digest)
	tmp := data + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("downloadcache: creating temp file: %w", err)
	}
	defer os.Remove(tmp)

	contentType, err := fetch(ctx, uri, f)
	if err != nil {
		f.Close()
		return "", fmt.Errorf("downloadcache: fetching %q: %w", uri, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("downloadcache: closing temp file: %w", err)
	}

	info, err := os.Stat(tmp)
	if err != nil {
		return "", fmt.Errorf("downloadcache: stat temp file: %w", err)
	}
	if err := os.Rename(tmp, data); err != nil {
		return "", fmt.Errorf("downloadcache: installing cached file: %w", err)
	}

	entry := Entry{
		URI:         uri,
		Digest:      digest,
		SizeBytes:   info.Size(),
		ContentType: contentType,
		FetchedAt:   time.Now(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("downloadcache: encoding metadata: %w", err)
	}
	if err := os.WriteFile(meta, raw, 0o644); err != nil {
		return "", fmt.Errorf("downloadcache: writing metadata: %w", err)
	}
	c.markHot(ctx, digest)
	return data, nil
}

// Close releases the hot cache's backend connection (a no-op for the
// in-process memory backend, a client close for the Redis one).
func (c *Cache) Close() error {
	return c.hot.Close()
}

// Scheme returns a URI's scheme (e.g. "s3", "gs", "http"), or "" for a
// bare local path. internal/plugin keys file_download hooks by this.
func Scheme(uri string) string {
	if i := strings.Index(uri, "://"); i >= 0 {
		return uri[:i]
	}
	return ""
}

package downloadcache

import "fmt"

// Config controls the download cache's storage location, scope, and the
// optional Redis backing for cross-worker advisory locks.
type Config struct {
	// Enabled turns the cache on; when false, GetOrFetch callers should
	// download straight through instead of calling this package at all.
	Enabled bool

	// Dir is the local directory cached "<digest>.data"/"<digest>.meta.json"
	// pairs are written under.
	Dir string

	// IgnoreQueryParams drops a URI's query string before hashing it into
	// a cache key, so a signed URL's rotating token doesn't defeat reuse
	// of an otherwise-identical object.
	IgnoreQueryParams bool

	// EnablePatterns, if non-empty, restricts caching to URIs matching at
	// least one filepath.Match pattern (e.g. "s3://refs/*").
	EnablePatterns []string

	// DisablePatterns exempts matching URIs from caching even if they
	// would otherwise match EnablePatterns; checked first.
	DisablePatterns []string

	// RedisAddr, if set, backs the advisory lock with Redis SETNX so
	// concurrent downloads of the same URI across worker processes block
	// on one another instead of racing; empty uses an in-process lock.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// LockTTL bounds how long a lock is held before it's considered
	// abandoned (e.g. the holder crashed mid-download).
	LockTTL int64 // seconds
}

// DefaultConfig returns a Config enabled for local use without Redis.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		Dir:               "/var/lib/wdlrun/downloads",
		IgnoreQueryParams: true,
		LockTTL:           300,
	}
}

// Validate checks that a Config which claims to be Enabled has a cache
// directory to write into.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Dir == "" {
		return fmt.Errorf("downloadcache: Dir cannot be empty when Enabled")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("downloadcache: LockTTL must be positive")
	}
	return nil
}

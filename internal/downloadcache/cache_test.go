package downloadcache

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DisabledSkipsDirCheck(t *testing.T) {
	cfg := Config{Enabled: false}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_EnabledRequiresDir(t *testing.T) {
	cfg := Config{Enabled: true}
	assert.Error(t, cfg.Validate())
}

func TestNew_CreatesCacheDir(t *testing.T) {
	dir := t.TempDir() + "/nested"
	c, err := New(Config{Enabled: true, Dir: dir, LockTTL: 60})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestEnabled_RespectsPatterns(t *testing.T) {
	c, err := New(Config{
		Enabled:         true,
		Dir:             t.TempDir(),
		LockTTL:         60,
		EnablePatterns:  []string{"s3://*"},
		DisablePatterns: []string{"s3://private/*"},
	})
	require.NoError(t, err)

	assert.True(t, c.Enabled("s3://bucket/key"))
	assert.False(t, c.Enabled("s3://private/key"))
	assert.False(t, c.Enabled("http://example.com/file"))
}

func TestEnabled_FalseWhenConfigDisabled(t *testing.T) {
	c, err := New(Config{Enabled: false, Dir: t.TempDir(), LockTTL: 60})
	require.NoError(t, err)
	assert.False(t, c.Enabled("http://example.com/file"))
}

func TestGet_Miss(t *testing.T) {
	c, err := New(Config{Enabled: true, Dir: t.TempDir(), LockTTL: 60})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "http://example.com/missing")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestGetOrFetch_CachesAfterFirstFetch(t *testing.T) {
	c, err := New(Config{Enabled: true, Dir: t.TempDir(), LockTTL: 60})
	require.NoError(t, err)

	var calls int32
	fetch := func(ctx context.Context, uri string, w io.Writer) (string, error) {
		atomic.AddInt32(&calls, 1)
		_, err := w.Write([]byte("payload"))
		return "text/plain", err
	}

	path1, err := c.GetOrFetch(context.Background(), "http://example.com/file", fetch)
	require.NoError(t, err)

	path2, err := c.GetOrFetch(context.Background(), "http://example.com/file", fetch)
	require.NoError(t, err)

	assert.Equal(t, path1, path2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetOrFetch_PropagatesFetchError(t *testing.T) {
	c, err := New(Config{Enabled: true, Dir: t.TempDir(), LockTTL: 60})
	require.NoError(t, err)

	boom := errors.New("network down")
	fetch := func(ctx context.Context, uri string, w io.Writer) (string, error) {
		return "", boom
	}

	_, err = c.GetOrFetch(context.Background(), "http://example.com/file", fetch)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestGetOrFetch_ConcurrentCallersFetchOnce(t *testing.T) {
	c, err := New(Config{Enabled: true, Dir: t.TempDir(), LockTTL: 60})
	require.NoError(t, err)

	var calls int32
	fetch := func(ctx context.Context, uri string, w io.Writer) (string, error) {
		atomic.AddInt32(&calls, 1)
		_, err := w.Write([]byte("payload"))
		return "", err
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrFetch(context.Background(), "http://example.com/shared", fetch)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestScheme(t *testing.T) {
	assert.Equal(t, "s3", Scheme("s3://bucket/key"))
	assert.Equal(t, "https", Scheme("https://example.com/file"))
	assert.Equal(t, "", Scheme("/local/path/file"))
}

func TestGet_HitsAfterFetchWithoutRestatting(t *testing.T) {
	c, err := New(Config{Enabled: true, Dir: t.TempDir(), LockTTL: 60})
	require.NoError(t, err)

	fetch := func(ctx context.Context, uri string, w io.Writer) (string, error) {
		_, err := w.Write([]byte("payload"))
		return "", err
	}
	_, err = c.GetOrFetch(context.Background(), "http://example.com/hot", fetch)
	require.NoError(t, err)

	path, err := c.Get(context.Background(), "http://example.com/hot")
	require.NoError(t, err)
	assert.NotEmpty(t, path)
}

func TestKey_IgnoresQueryParamsWhenConfigured(t *testing.T) {
	c, err := New(Config{Enabled: true, Dir: t.TempDir(), LockTTL: 60, IgnoreQueryParams: true})
	require.NoError(t, err)

	assert.Equal(t, c.key("http://example.com/file?token=abc"), c.key("http://example.com/file?token=xyz"))
}

package cache

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func staticLoader(material []byte) Loader {
	return func(ctx context.Context) ([]byte, error) {
		out := make([]byte, len(material))
		copy(out, material)
		return out, nil
	}
}

func TestKeyCache_GetOrLoad(t *testing.T) {
	c := New(time.Minute, time.Minute)
	defer c.Close()

	ctx := context.Background()
	material := []byte("0123456789abcdef0123456789abcdef")

	var calls atomic.Int32
	load := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		return staticLoader(material)(ctx)
	}

	got, err := c.GetOrLoad(ctx, "payments:key:1", load)
	require.NoError(t, err)
	assert.Equal(t, material, got)
	assert.Equal(t, int32(1), calls.Load())

	// Second lookup is a hit.
	got, err = c.GetOrLoad(ctx, "payments:key:1", load)
	require.NoError(t, err)
	assert.Equal(t, material, got)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestKeyCache_GetOrLoad_LoaderError(t *testing.T) {
	c := New(time.Minute, time.Minute)
	defer c.Close()

	wantErr := errors.New("unwrap failed")
	_, err := c.GetOrLoad(context.Background(), "payments:key:1", func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 0, c.Len())
}

func TestKeyCache_ReturnsCopies(t *testing.T) {
	c := New(time.Minute, time.Minute)
	defer c.Close()

	ctx := context.Background()
	material := []byte("sensitive-key-material-32-bytes!")

	first, err := c.GetOrLoad(ctx, "k", staticLoader(material))
	require.NoError(t, err)

	// Mutating the returned buffer must not affect later reads.
	for i := range first {
		first[i] = 0
	}

	second, err := c.GetOrLoad(ctx, "k", staticLoader(material))
	require.NoError(t, err)
	assert.Equal(t, material, second)
}

func TestKeyCache_SingleflightPopulation(t *testing.T) {
	c := New(time.Minute, time.Minute)
	defer c.Close()

	ctx := context.Background()
	material := []byte("0123456789abcdef0123456789abcdef")

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return staticLoader(material)(ctx)
	}

	const goroutines = 16
	var wg sync.WaitGroup
	results := make([][]byte, goroutines)
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrLoad(ctx, "k", load)
		}(i)
	}

	// Give the goroutines time to pile up on the same key.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, material, results[i])
	}
	assert.Equal(t, int32(1), calls.Load(), "concurrent misses must share one load")
}

func TestKeyCache_TTLExpiry(t *testing.T) {
	c := New(30*time.Millisecond, time.Minute)
	defer c.Close()

	ctx := context.Background()
	material := []byte("0123456789abcdef0123456789abcdef")

	var calls atomic.Int32
	load := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		return staticLoader(material)(ctx)
	}

	_, err := c.GetOrLoad(ctx, "k", load)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = c.GetOrLoad(ctx, "k", load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "expired entry must be reloaded")
}

func TestKeyCache_PurgeZeroesMaterial(t *testing.T) {
	c := New(time.Minute, time.Minute)
	defer c.Close()

	ctx := context.Background()

	// Keep a reference to the loader-returned buffer; the cache owns it.
	owned := []byte("sensitive-key-material-32-bytes!")
	_, err := c.GetOrLoad(ctx, "k", func(ctx context.Context) ([]byte, error) {
		return owned, nil
	})
	require.NoError(t, err)

	c.Purge("k")

	assert.Equal(t, 0, c.Len())
	assert.True(t, bytes.Equal(owned, make([]byte, len(owned))), "purged material must be zeroed")
}

func TestKeyCache_CloseZeroesEverything(t *testing.T) {
	c := New(time.Minute, 10*time.Millisecond)

	ctx := context.Background()
	owned := []byte("sensitive-key-material-32-bytes!")
	_, err := c.GetOrLoad(ctx, "k", func(ctx context.Context) ([]byte, error) {
		return owned, nil
	})
	require.NoError(t, err)

	c.Close()
	c.Close() // idempotent

	assert.Equal(t, 0, c.Len())
	assert.True(t, bytes.Equal(owned, make([]byte, len(owned))), "material must be zeroed on close")
}

func TestKeyCache_JanitorSweeps(t *testing.T) {
	c := New(10*time.Millisecond, 20*time.Millisecond)
	defer c.Close()

	ctx := context.Background()
	_, err := c.GetOrLoad(ctx, "k", staticLoader([]byte("material")))
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	assert.Eventually(t, func() bool {
		return c.Len() == 0
	}, time.Second, 10*time.Millisecond, "janitor must evict expired entries")
}

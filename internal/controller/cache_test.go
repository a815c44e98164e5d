package controller

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchforge/fusion_engine/fuse"
	"github.com/searchforge/fusion_engine/internal/contract"
	"github.com/searchforge/fusion_engine/testutil"
)

func TestCacheExpiresEntries(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(time.Second)
	c.now = func() time.Time { return now }

	c.Set("k", CacheEntry{FusionMS: 7})
	entry, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, int64(7), entry.FusionMS)

	now = now.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCacheDisabled(t *testing.T) {
	c := NewCache(0)
	c.Set("k", CacheEntry{})
	_, ok := c.Get("k")
	assert.False(t, ok)

	var nilCache *Cache
	nilCache.Set("k", CacheEntry{})
	_, ok = nilCache.Get("k")
	assert.False(t, ok)
}

func TestBuildCacheKey(t *testing.T) {
	req := contract.FuseRequest{Sources: testutil.ThreeSourceScenario()}
	base, err := BuildCacheKey(req, fuse.DefaultFilterConfig(), "v1")
	require.NoError(t, err)
	assert.Len(t, base, 64)

	same, err := BuildCacheKey(contract.FuseRequest{Sources: testutil.ThreeSourceScenario(), TraceID: "ignored"}, fuse.DefaultFilterConfig(), "v1")
	require.NoError(t, err)
	assert.Equal(t, base, same)

	otherVersion, err := BuildCacheKey(req, fuse.DefaultFilterConfig(), "v2")
	require.NoError(t, err)
	assert.NotEqual(t, base, otherVersion)

	otherFilter, err := BuildCacheKey(req, fuse.FilterConfig{MinConfidence: 0.9}, "v1")
	require.NoError(t, err)
	assert.NotEqual(t, base, otherFilter)

	req.Sources[0].PrimaryScore = math.NaN()
	_, err = BuildCacheKey(req, fuse.DefaultFilterConfig(), "v1")
	assert.Error(t, err)
}

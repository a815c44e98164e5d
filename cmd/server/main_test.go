package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/searchforge/fusion_engine/fuse"
)

func TestLoadConfigAcceptsZeroFloors(t *testing.T) {
	t.Setenv("MIN_PRIMARY_SCORE", "0")
	t.Setenv("MIN_SECONDARY_SCORE", "0")
	t.Setenv("MIN_CONFIDENCE", "0")

	assert.Equal(t, fuse.FilterConfig{}, loadConfig().filter())
}

func TestLoadConfigFloorFallbacks(t *testing.T) {
	t.Setenv("MIN_PRIMARY_SCORE", "-1")
	t.Setenv("MIN_SECONDARY_SCORE", "abc")
	t.Setenv("MIN_CONFIDENCE", "0.75")

	cfg := loadConfig().filter()
	assert.Equal(t, 0.5, cfg.MinPrimaryScore)
	assert.Equal(t, 0.5, cfg.MinSecondaryScore)
	assert.Equal(t, 0.75, cfg.MinConfidence)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TRACE_SAMPLE_RATIO", "0")

	cfg := loadConfig()
	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, defaultSampleRatio, cfg.TraceSampleRatio)
	assert.Equal(t, fuse.DefaultFilterConfig(), cfg.filter())
}

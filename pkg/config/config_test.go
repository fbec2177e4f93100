package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libranexus/platform/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.PaginationDefaultLimit)
	assert.Equal(t, 100, cfg.PaginationMaxLimit)
}

func TestLoadRejectsDefaultExceedingMax(t *testing.T) {
	t.Setenv("PAGINATION_DEFAULT_LIMIT", "500")
	t.Setenv("PAGINATION_MAX_LIMIT", "100")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoadRejectsNonIntegerPagination(t *testing.T) {
	t.Setenv("PAGINATION_DEFAULT_LIMIT", "not-a-number")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestClamp(t *testing.T) {
	cfg := config.Config{PaginationDefaultLimit: 20, PaginationMaxLimit: 100}
	assert.Equal(t, 20, cfg.Clamp(0))
	assert.Equal(t, 20, cfg.Clamp(-5))
	assert.Equal(t, 50, cfg.Clamp(50))
	assert.Equal(t, 100, cfg.Clamp(500))
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("CATALOG_TEST_VALUE", "set")
	assert.Equal(t, "set", getEnv("CATALOG_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", getEnv("CATALOG_TEST_MISSING", "fallback"))
}

func TestGetDuration(t *testing.T) {
	t.Setenv("CATALOG_TEST_TTL", "90s")
	assert.Equal(t, 90*time.Second, getDuration("CATALOG_TEST_TTL", time.Minute))

	t.Setenv("CATALOG_TEST_TTL", "soon")
	assert.Equal(t, time.Minute, getDuration("CATALOG_TEST_TTL", time.Minute))

	assert.Equal(t, time.Minute, getDuration("CATALOG_TEST_MISSING", time.Minute))
}

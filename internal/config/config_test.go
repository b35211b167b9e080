package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"ADDR", "API_BASE", "GEOCODE_TIMEOUT", "REDIS_ENABLED", "PG_DB", "PG_PASSWORD"} {
		t.Setenv(k, "")
	}
	c := Load()
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "/api", c.APIBase)
	assert.Equal(t, 5*time.Second, c.GeocodeTimeout)
	assert.False(t, c.RedisEnabled)
	assert.Equal(t, "postgres://postgres@localhost:5432/geodata?sslmode=disable", c.PostgresDSN())
	require.NoError(t, c.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("API_BASE", "/v1/")
	t.Setenv("GEOCODE_TIMEOUT", "750ms")
	t.Setenv("GEOCODE_MAX_INFLIGHT", "8")
	t.Setenv("GEOCODE_CACHE_TTL_S", "60")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_DB", "notanumber")
	t.Setenv("PG_PASSWORD", "s3cret")

	c := Load()
	assert.Equal(t, "/v1", c.APIBase)
	assert.Equal(t, 750*time.Millisecond, c.GeocodeTimeout)
	assert.Equal(t, 8, c.GeocodeMaxInFlight)
	assert.Equal(t, time.Minute, c.GeocodeCacheTTL)
	assert.True(t, c.RedisEnabled)
	assert.Equal(t, "cache:6379", c.RedisAddr())
	assert.Equal(t, 0, c.RedisDB)
	assert.Contains(t, c.PostgresDSN(), "postgres:s3cret@")
}

func TestLoad_PlainSecondsTimeout(t *testing.T) {
	t.Setenv("GEOCODE_TIMEOUT", "12")
	assert.Equal(t, 12*time.Second, Load().GeocodeTimeout)
}

func TestValidate(t *testing.T) {
	c := Load()
	c.APIBase = "api"
	c.NominatimURL = "ftp://x"
	c.GeocodeTimeout = 0
	c.GeocodeMaxInFlight = -1
	c.RateLimitEnabled = true
	c.RateLimitQPS = 0
	err := c.Validate()
	require.Error(t, err)
	for _, s := range []string{"API_BASE", "NOMINATIM_URL", "GEOCODE_TIMEOUT", "GEOCODE_MAX_INFLIGHT", "RATE_LIMIT_QPS"} {
		assert.Contains(t, err.Error(), s)
	}
}

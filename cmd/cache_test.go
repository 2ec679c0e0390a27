package main

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chemtrace/sds-cli/internal/config"
)

func TestCacheCommandsTalkToServer(t *testing.T) {
	ts := httptest.NewServer(newServeHandler(newTestEnv(t)))
	defer ts.Close()

	t.Run("stats reads the live cache counters", func(t *testing.T) {
		var payload struct {
			Cache struct {
				Hits   int64 `json:"hits"`
				Misses int64 `json:"misses"`
			} `json:"cache"`
		}
		require.NoError(t, serverGet(ts.URL+"/metrics", &payload))
		assert.Equal(t, int64(0), payload.Cache.Hits)
		assert.Equal(t, int64(0), payload.Cache.Misses)
	})

	t.Run("clear invalidates on the server", func(t *testing.T) {
		var payload struct {
			Invalidated int `json:"invalidated"`
		}
		require.NoError(t, serverPost(ts.URL+"/cache/invalidate", &payload))
		assert.Equal(t, 0, payload.Invalidated)
	})
}

func TestServerGetUnreachable(t *testing.T) {
	err := serverGet("http://127.0.0.1:1/metrics", &struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is the server running?")
}

func TestServerAddr(t *testing.T) {
	oldCfg, oldAddr := cfg, cacheAddr
	defer func() { cfg, cacheAddr = oldCfg, oldAddr }()

	cfg = &config.Config{Server: config.ServerConfig{Port: 9090}}
	cacheAddr = ""
	assert.Equal(t, "http://localhost:9090", serverAddr())

	cacheAddr = "http://example.com:8081"
	assert.Equal(t, "http://example.com:8081", serverAddr())
}

package xadmit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
key_prefix: gate
store_timeout: 250ms
default: standard
policies:
  - name: standard
    capacity: 100
    refill_amount: 100
    refill_period: 60s
  - name: strict
    capacity: 5
    refill_amount: 5
    refill_period: 1m
    key_strategy: ip
    exceeded_status: 429
  - name: tenant
    capacity: 50
    refill_amount: 50
    refill_period: 30s
    key_strategy: custom
    key_expr: "${user}:${header.X-Tenant-Id}"
routes:
  - pattern: /api/v1/upload/**
    policy: strict
  - pattern: /api/**
    policy: standard
groups:
  - path: /internal/
    policy: standard
handlers:
  - path: /api/v1/export
    policy: strict
`

func TestParseConfig_YAML(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleYAML), "yaml")
	require.NoError(t, err)

	require.Equal(t, "gate", cfg.KeyPrefix)
	require.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
	require.Equal(t, "standard", cfg.Default)
	require.Len(t, cfg.Policies, 3)

	strict := cfg.Policies[1]
	require.Equal(t, int64(5), strict.Capacity)
	require.Equal(t, time.Minute, strict.RefillPeriod)
	require.Equal(t, StrategyIP, strict.KeyStrategy)

	tenant := cfg.Policies[2]
	require.Equal(t, StrategyCustom, tenant.KeyStrategy)
	require.Equal(t, "${user}:${header.X-Tenant-Id}", tenant.KeyExpr)

	require.Len(t, cfg.Routes, 2)
	require.Equal(t, "/api/v1/upload/**", cfg.Routes[0].Pattern)
	require.Len(t, cfg.Groups, 1)
	require.Len(t, cfg.Handlers, 1)
}

func TestParseConfig_JSON(t *testing.T) {
	data := []byte(`{
		"policies": [
			{"name": "api", "capacity": 10, "refill_amount": 10, "refill_period": "60s"}
		],
		"default": "api"
	}`)

	cfg, err := ParseConfig(data, "json")
	require.NoError(t, err)
	require.Equal(t, time.Minute, cfg.Policies[0].RefillPeriod)
	// 未设置的字段保留默认值
	require.Equal(t, DefaultKeyPrefix, cfg.KeyPrefix)
	require.Equal(t, DefaultStoreTimeout, cfg.StoreTimeout)
}

func TestParseConfig_Errors(t *testing.T) {
	t.Run("unsupported format", func(t *testing.T) {
		_, err := ParseConfig([]byte("x"), "toml")
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := ParseConfig([]byte(":\n  - ["), "yaml")
		require.Error(t, err)
	})

	t.Run("validation failure surfaces", func(t *testing.T) {
		data := []byte(`
policies:
  - name: bad
    capacity: 0
    refill_amount: 1
    refill_period: 60s
`)
		_, err := ParseConfig(data, "yaml")
		require.ErrorIs(t, err, ErrInvalidPolicy)
	})

	t.Run("dangling route reference", func(t *testing.T) {
		data := []byte(`
policies:
  - name: api
    capacity: 10
    refill_amount: 10
    refill_period: 60s
routes:
  - pattern: /x/**
    policy: nope
`)
		_, err := ParseConfig(data, "yaml")
		require.ErrorIs(t, err, ErrUnknownPolicy)
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "admit.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

		cfg, err := LoadConfigFile(path)
		require.NoError(t, err)
		require.Equal(t, "gate", cfg.KeyPrefix)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.ErrorIs(t, err, ErrConfigNotFound)
	})
}

func TestWithConfigFile_DeferredError(t *testing.T) {
	_, err := New(NewLocalStore(), WithConfigFile("/nonexistent/admit.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected deferred config error from New, got %v", err)
	}
}

func TestConfig_Validate_Bindings(t *testing.T) {
	base := Config{Policies: []Policy{StandardPolicy()}}

	t.Run("empty handler path", func(t *testing.T) {
		cfg := base
		cfg.Handlers = []Binding{{Path: "", Policy: "standard"}}
		require.ErrorIs(t, cfg.Validate(), ErrInvalidRoute)
	})

	t.Run("dangling group policy", func(t *testing.T) {
		cfg := base
		cfg.Groups = []Binding{{Path: "/x/", Policy: "nope"}}
		require.ErrorIs(t, cfg.Validate(), ErrUnknownPolicy)
	})

	t.Run("valid", func(t *testing.T) {
		cfg := base
		cfg.Default = "standard"
		cfg.Routes = []RouteRule{{Pattern: "/api/**", Policy: "standard"}}
		require.NoError(t, cfg.Validate())
	})
}

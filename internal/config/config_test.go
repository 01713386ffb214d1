package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "pgx", cfg.Store.Driver)
	assert.True(t, cfg.Store.AutoMigrate)
	assert.Equal(t, 60*time.Second, cfg.Realtime.IdleTimeout)
	assert.Equal(t, int64(4096), cfg.Realtime.MaxMessageBytes)
	assert.Empty(t, cfg.Realtime.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOOKSTORE_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("BOOKSTORE_STORE_DRIVER", "Memory")
	t.Setenv("BOOKSTORE_REALTIME_IDLE_TIMEOUT", "90s")
	t.Setenv("BOOKSTORE_REALTIME_ALLOWED_ORIGINS", "http://a.local, http://b.local")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 90*time.Second, cfg.Realtime.IdleTimeout)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.Realtime.AllowedOrigins)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":7000"
store:
  driver: postgres
  dsn: postgres://u:p@db:5432/books?sslmode=disable
  auto_migrate: false
log:
  level: debug
  format: console
`), 0o600))

	v := viper.New()
	v.Set("config", path)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://u:p@db:5432/books?sslmode=disable", cfg.Store.DSN)
	assert.False(t, cfg.Store.AutoMigrate)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]func(v *viper.Viper){
		"unknown driver": func(v *viper.Viper) { v.Set("store.driver", "sqlite") },
		"missing dsn":    func(v *viper.Viper) { v.Set("store.dsn", "") },
		"zero idle":      func(v *viper.Viper) { v.Set("realtime.idle_timeout", 0) },
		"missing file":   func(v *viper.Viper) { v.Set("config", filepath.Join(t.TempDir(), "nope.yaml")) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			mutate(v)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("SHOP_DATABASE_URL", "postgres://shop@db/shop")
	t.Setenv("SHOP_VALIDATE_LIMIT_MAX", "5")
	t.Setenv("PORT", "")

	cfg, err := loadConfig(aconfig.Config{SkipFlags: true, SkipFiles: true})
	require.NoError(t, err)

	assert.Equal(t, "postgres://shop@db/shop", cfg.DatabaseURL)
	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, 5, cfg.ValidateLimit.Max)
	assert.Equal(t, time.Minute, cfg.ValidateLimit.Window)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("SHOP_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9000")

	cfg, err := loadConfig(aconfig.Config{SkipFlags: true, SkipFiles: true})
	require.NoError(t, err)

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("SHOP_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_url: postgres://file/db\nmax_conns: 3\n"), 0o600))

	cfg, err := loadConfig(aconfig.Config{SkipFlags: true, Files: []string{path}})
	require.NoError(t, err)
	assert.Equal(t, "postgres://file/db", cfg.DatabaseURL)
	assert.Equal(t, 3, cfg.MaxConns)
}

func TestLoadConfig_RequiresDatabase(t *testing.T) {
	t.Setenv("SHOP_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")

	_, err := loadConfig(aconfig.Config{SkipFlags: true, SkipFiles: true})
	require.ErrorContains(t, err, "database URL is required")
}

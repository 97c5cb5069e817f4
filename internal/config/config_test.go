package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "DB_DRIVER", "DB_PORT", "DB_LOCK_TIMEOUT_MS", "DB_AUTO_MIGRATE",
		"PUTAWAY_ACQUIRE_ATTEMPTS", "PUTAWAY_CACHE_TTL", "REDIS_ENABLED", "MQTT_ENABLED", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 5000, cfg.Database.LockTimeoutMS)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, 3, cfg.Putaway.AcquireAttempts)
	assert.Equal(t, 300*time.Second, cfg.Putaway.CacheTTL)
	assert.False(t, cfg.RedisEnabled)
	assert.False(t, cfg.MQTTEnabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/var/lib/wsh/putaway.db")
	t.Setenv("PUTAWAY_ACQUIRE_ATTEMPTS", "5")
	t.Setenv("PUTAWAY_CACHE_TTL", "60")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/var/lib/wsh/putaway.db", cfg.Database.SQLitePath)
	assert.Equal(t, 5, cfg.Putaway.AcquireAttempts)
	assert.Equal(t, time.Minute, cfg.Putaway.CacheTTL)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, 5432, cfg.Database.Port)
}

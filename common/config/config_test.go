package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfig_GetDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "wsh", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=wsh sslmode=disable", c.GetDSN())
}

func TestDatabaseConfig_GetSQLiteDSN(t *testing.T) {
	c := DatabaseConfig{SQLitePath: "/tmp/wsh.db"}
	dsn := c.GetSQLiteDSN()
	assert.True(t, strings.HasPrefix(dsn, "file:/tmp/wsh.db?"))
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "_busy_timeout=5000")

	c.LockTimeoutMS = 250
	assert.Contains(t, c.GetSQLiteDSN(), "_busy_timeout=250")
}

func TestDatabaseConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("WSHDB_DRIVER", "sqlite")
	t.Setenv("WSHDB_PORT", "6543")
	t.Setenv("WSHDB_SQLITE_PATH", "x.db")
	t.Setenv("WSHDB_LOCK_TIMEOUT_MS", "1200")

	c := DatabaseConfig{Driver: "postgres", Port: 5432}
	c.LoadFromEnv("WSHDB")
	assert.Equal(t, "sqlite", c.Driver)
	assert.Equal(t, 6543, c.Port)
	assert.Equal(t, "x.db", c.SQLitePath)
	assert.Equal(t, 1200, c.LockTimeoutMS)
}

func TestRedisConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("CACHE_ADDR", "redis:6380")
	t.Setenv("CACHE_DB", "3")

	c := RedisConfig{Addr: "localhost:6379"}
	c.LoadFromEnv("CACHE")
	assert.Equal(t, "redis:6380", c.Addr)
	assert.Equal(t, 3, c.DB)
}

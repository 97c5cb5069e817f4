package config

import (
	"os"
	"strconv"
	"time"

	commoncfg "github.com/RicardoMLopes/wsh/common/config"
)

// Config wsh-putaway settings
type Config struct {
	HTTP struct {
		Addr string
	}
	Database    commoncfg.DatabaseConfig
	AutoMigrate bool

	Putaway struct {
		// AcquireAttempts bounds the lock-select/insert loop for a brand-new key
		AcquireAttempts int
		EventStream     string
		CachePrefix     string
		CacheTTL        time.Duration
	}

	RedisEnabled bool
	Redis        commoncfg.RedisConfig

	MQTTEnabled     bool
	MQTT            commoncfg.MQTTConfig
	MQTTTopicPrefix string

	Log struct {
		Level  string
		Format string
	}
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Driver = getEnv("DB_DRIVER", commoncfg.DriverPostgres)
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "wsh")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)
	cfg.Database.LockTimeoutMS = parseInt(getEnv("DB_LOCK_TIMEOUT_MS", "5000"), 5000)
	cfg.Database.SQLitePath = getEnv("SQLITE_PATH", "wsh.db")
	cfg.AutoMigrate = getEnv("DB_AUTO_MIGRATE", "true") == "true"

	cfg.Putaway.AcquireAttempts = parseInt(getEnv("PUTAWAY_ACQUIRE_ATTEMPTS", "3"), 3)
	cfg.Putaway.EventStream = getEnv("PUTAWAY_EVENT_STREAM", "putaway:events")
	cfg.Putaway.CachePrefix = getEnv("PUTAWAY_CACHE_PREFIX", "putaway:aggregate:")
	cfg.Putaway.CacheTTL = time.Duration(parseInt(getEnv("PUTAWAY_CACHE_TTL", "300"), 300)) * time.Second

	cfg.RedisEnabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.MQTTEnabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wsh-putaway")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1
	cfg.MQTTTopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "wsh/putaway")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

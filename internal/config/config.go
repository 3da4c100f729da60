package config

import "time"

type Config struct {
	Service     *ServiceConfig
	Redis       *RedisConfig
	Postgres    *PostgresConfig
	Hub         *HubConfig
	Dedup       *DedupConfig
	Clipboard   *ClipboardConfig
	Bus         *BusConfig
	Logger      *LoggerConfig
	Tracer      *TracerConfig
	SecretToken string
	TokenTTL    time.Duration
}

type ServiceConfig struct {
	Name string
	Env  string
	Add  string
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// HubConfig tunes the per-device connection lifecycle.
type HubConfig struct {
	HeartbeatInterval time.Duration
	PongTimeout       time.Duration
	// StaleTimeout is how long a registry entry may go without a heartbeat
	// before it is no longer delivered to and gets swept.
	StaleTimeout   time.Duration
	WriteWait      time.Duration
	SendTimeout    time.Duration
	SendQueueSize  int
	MaxMessageSize int64
	InboundRate    float64
	InboundBurst   int
	PresenceTTL    time.Duration
}

type DedupConfig struct {
	Horizon time.Duration
	Backend string // memory | redis
}

type ClipboardConfig struct {
	MaxContentSize  int
	MaxItemsPerUser int
	ExcludeOrigin   bool
}

type BusConfig struct {
	Backend string // local | redis
	Channel string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Enabled bool
	Address string
}

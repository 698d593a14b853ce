package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Pathfinding PathfindingConfig `mapstructure:"pathfinding"`
	Game        GameConfig        `mapstructure:"game"`
	Security    SecurityConfig    `mapstructure:"security"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | sqlite_memory | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

// PathfindingConfig tunes the time-sliced search driver of every room.
type PathfindingConfig struct {
	SliceBudget time.Duration `mapstructure:"slice_budget"`
	TickMs      int           `mapstructure:"tick_ms"`
	Heuristic   string        `mapstructure:"heuristic"` // manhattan | cross | jitter
	Weight      float64       `mapstructure:"weight"`
	CrossBias   float64       `mapstructure:"cross_bias"`
	Jitter      float64       `mapstructure:"jitter"`
	Seed        uint64        `mapstructure:"seed"`
	StatusTTL   time.Duration `mapstructure:"status_ttl"`
}

type GameConfig struct {
	TickHz         float64 `mapstructure:"tick_hz"`
	DefaultMapSize int     `mapstructure:"default_map_size"`
	MapSeed        uint64  `mapstructure:"map_seed"`
	MaxMapSize     int     `mapstructure:"max_map_size"`
	// RoomIdleTTL is how long a room with no work and no agents survives
	// before the reaper stops it. Zero disables reaping.
	RoomIdleTTL time.Duration `mapstructure:"room_idle_ttl"`
}

type SecurityConfig struct {
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the WebSocket origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AdminIPs       []string `mapstructure:"admin_ips"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/gridpath.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("pathfinding.slice_budget", "16ms")
	v.SetDefault("pathfinding.tick_ms", 16)
	v.SetDefault("pathfinding.heuristic", "manhattan")
	v.SetDefault("pathfinding.weight", 1.0)
	v.SetDefault("pathfinding.cross_bias", 0.001)
	v.SetDefault("pathfinding.jitter", 0.01)
	v.SetDefault("pathfinding.status_ttl", "10m")
	v.SetDefault("game.tick_hz", 3.0)
	v.SetDefault("game.default_map_size", 128)
	v.SetDefault("game.max_map_size", 1024)
	v.SetDefault("game.room_idle_ttl", "10m")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// TickInterval is the host loop period that drives each room's pather.
func (c PathfindingConfig) TickInterval() time.Duration {
	if c.TickMs <= 0 {
		return 16 * time.Millisecond
	}
	return time.Duration(c.TickMs) * time.Millisecond
}

// TickInterval is the period of the agent simulation tick.
func (c GameConfig) TickInterval() time.Duration {
	if c.TickHz <= 0 {
		return time.Second / 3
	}
	return time.Duration(float64(time.Second) / c.TickHz)
}

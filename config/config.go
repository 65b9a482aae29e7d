package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the server and CLI
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Search    SearchConfig    `mapstructure:"search"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig contains HTTP server and access settings
type ServerConfig struct {
	Address        string `mapstructure:"address"`
	APIKey         string `mapstructure:"api_key"`
	WhitelistPaths string `mapstructure:"whitelist_paths"`
}

// AuthConfig contains login accounts and token settings
type AuthConfig struct {
	Accounts         string        `mapstructure:"accounts"` // user:pass,user2:{bcrypt}hash
	TokenSecret      string        `mapstructure:"token_secret"`
	TokenExpire      time.Duration `mapstructure:"token_expire"`
	GuestTokenExpire time.Duration `mapstructure:"guest_token_expire"`
}

func (a AuthConfig) Validate() error {
	if strings.TrimSpace(a.Accounts) != "" && strings.TrimSpace(a.TokenSecret) == "" {
		return fmt.Errorf("auth.token_secret required when auth.accounts is set")
	}
	if a.TokenExpire <= 0 {
		return fmt.Errorf("auth.token_expire must be > 0")
	}
	if a.GuestTokenExpire <= 0 {
		return fmt.Errorf("auth.guest_token_expire must be > 0")
	}
	return nil
}

// StorageConfig contains local storage and cache connection settings
type StorageConfig struct {
	WorkingDir string      `mapstructure:"working_dir"`
	Workspace  string      `mapstructure:"workspace"`
	Redis      RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Host        string      `mapstructure:"host"`
	User        string      `mapstructure:"user"`
	Password    string      `mapstructure:"password"`
	VerifyCerts bool        `mapstructure:"verify_certs"`
	Index       string      `mapstructure:"index"`
	BleveDir    string      `mapstructure:"bleve_dir"` // embedded engine, used when host is empty
	ReindexCron string      `mapstructure:"reindex_cron"`
	Cache       CacheConfig `mapstructure:"cache"`
}

// CacheConfig controls the redis hit cache in front of the engine
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// Normalize applies defaults for unset search values.
func (s SearchConfig) Normalize() SearchConfig {
	s.Host = strings.TrimSpace(s.Host)
	s.Index = strings.TrimSpace(s.Index)
	if s.Index == "" {
		s.Index = "lightrag_chunks"
	}
	if s.Cache.TTL <= 0 {
		s.Cache.TTL = 5 * time.Minute
	}
	return s
}

func (s SearchConfig) Validate() error {
	if s.Index == "" {
		return fmt.Errorf("search.index required")
	}
	return nil
}

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file and RAGSERVE_* environment variables.
// A missing config file is not an error: defaults and env still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("RAGSERVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match (RAGSERVE_*)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Search = cfg.Search.Normalize()

	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Search.Validate(); err != nil {
		return nil, err
	}
	if cfg.Search.Cache.Enabled {
		if err := cfg.Storage.Redis.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":9621")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.whitelist_paths", "/health,/api/*")
	v.SetDefault("auth.accounts", "")
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.token_expire", 48*time.Hour)
	v.SetDefault("auth.guest_token_expire", 24*time.Hour)
	v.SetDefault("storage.working_dir", "./rag_storage")
	v.SetDefault("storage.workspace", "")
	v.SetDefault("storage.redis.host", "")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", 3*time.Second)
	v.SetDefault("search.host", "")
	v.SetDefault("search.user", "")
	v.SetDefault("search.password", "")
	v.SetDefault("search.verify_certs", true)
	v.SetDefault("search.index", "lightrag_chunks")
	v.SetDefault("search.bleve_dir", "")
	v.SetDefault("search.reindex_cron", "")
	v.SetDefault("search.cache.enabled", false)
	v.SetDefault("search.cache.ttl", 5*time.Minute)
	v.SetDefault("telemetry.enabled", true)
}

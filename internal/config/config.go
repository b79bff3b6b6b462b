package config

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type DBConfig struct {
	Username       string
	Password       string
	Host           string
	Port           string
	DBName         string
	SSLMode        string
	MaxConns       int32
	MinConns       int32
	ConnectTimeout time.Duration
}

func (c DBConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

type ServerConfig struct {
	Port           string
	Handler        http.Handler
	MaxHeaderBytes int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// AppConfig holds the settings read from app.yaml.
type AppConfig struct {
	Port           string
	Storage        string
	StoreTimeout   time.Duration
	ClientOrigin   string
	UserServiceAPI string
	CacheTTL       time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.storage", StoragePostgres)
	v.SetDefault("app.store-timeout", 5*time.Second)
	v.SetDefault("client.origin", "http://localhost:3000")
	v.SetDefault("cache.ttl", time.Minute)
	v.SetDefault("ratelimit.rps", 5.0)
	v.SetDefault("ratelimit.burst", 10)
}

func Load(v *viper.Viper) (AppConfig, error) {
	SetDefaults(v)

	cfg := AppConfig{
		Port:           v.GetString("app.port"),
		Storage:        v.GetString("app.storage"),
		StoreTimeout:   v.GetDuration("app.store-timeout"),
		ClientOrigin:   v.GetString("client.origin"),
		UserServiceAPI: v.GetString("user-service.api"),
		CacheTTL:       v.GetDuration("cache.ttl"),
		RateLimitRPS:   v.GetFloat64("ratelimit.rps"),
		RateLimitBurst: v.GetInt("ratelimit.burst"),
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c AppConfig) Validate() error {
	if c.Storage != StoragePostgres && c.Storage != StorageMemory {
		return fmt.Errorf("app.storage must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("app.store-timeout must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("ratelimit.rps and ratelimit.burst must be positive")
	}
	return nil
}

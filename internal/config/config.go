// Package config holds the service configuration for the maintenance
// dashboard backend.
package config

import (
	"fmt"
	"time"

	"github.com/itsmkit/glpi-dashboard/internal/configload"
)

// Worker pool clamp for name resolution fan-out.
const (
	minNameWorkers = 1
	maxNameWorkers = 16
)

// Config holds all configuration for the dashboard backend.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	GLPI    GLPIConfig    `yaml:"glpi"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
	CORS    CORSConfig    `yaml:"cors"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `yaml:"port" env:"DASHBOARD_PORT"`
	Debug   bool   `yaml:"debug" env:"DASHBOARD_DEBUG"`
}

// GLPIConfig holds everything needed to talk to the upstream GLPI REST API.
type GLPIConfig struct {
	BaseURL   string `yaml:"base_url" env:"GLPI_BASE_URL"`
	AppToken  string `yaml:"app_token" env:"GLPI_APP_TOKEN"`
	UserToken string `yaml:"user_token" env:"GLPI_USER_TOKEN"`

	SessionTTL time.Duration `yaml:"session_ttl" env:"GLPI_SESSION_TTL"`
	// SkipEntitySwitch disables the changeActiveEntities step after
	// session init. The switch runs by default.
	SkipEntitySwitch bool `yaml:"skip_entity_switch" env:"GLPI_SKIP_ENTITY_SWITCH"`
	EntityID         int  `yaml:"entity_id" env:"GLPI_ENTITY_ID"`

	// Standard timeouts cover session and lookup calls; ranking searches
	// move much larger payloads and get a more generous pair.
	ConnectTimeout        time.Duration `yaml:"connect_timeout" env:"GLPI_TIMEOUT_CONN"`
	ReadTimeout           time.Duration `yaml:"read_timeout" env:"GLPI_TIMEOUT_READ"`
	RankingConnectTimeout time.Duration `yaml:"ranking_connect_timeout" env:"GLPI_TIMEOUT_RANKING_CONN"`
	RankingReadTimeout    time.Duration `yaml:"ranking_read_timeout" env:"GLPI_TIMEOUT_RANKING_READ"`

	PageSize      int `yaml:"page_size" env:"GLPI_PAGE_SIZE"`
	NameWorkers   int `yaml:"name_workers" env:"GLPI_NAME_WORKERS"`
	StatusWorkers int `yaml:"status_workers" env:"GLPI_STATUS_WORKERS"`
	TechTopLimit  int `yaml:"tech_top_limit" env:"TECH_RANK_TOP_LIMIT"`
	// CountUnassignedNew counts unassigned tickets in status "new" toward
	// the technician ranking's unassigned bucket. Off by default: new
	// tickets nobody picked up yet say nothing about technician load.
	CountUnassignedNew bool `yaml:"count_unassigned_new" env:"TECH_RANK_COUNT_UNASSIGNED_NEW"`
}

// CacheConfig holds response/name cache configuration. When RedisAddress is
// set the caches are backed by Redis so replicas share entries; otherwise an
// in-process store is used.
type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl" env:"CACHE_TTL"`
	RedisAddress  string        `yaml:"redis_address" env:"REDIS_ADDRESS"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins" env:"CORS_ORIGINS"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// Load loads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	cfg, err := configload.LoadWithDefaults[Config](path, setDefaults)
	if err != nil {
		return nil, err
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "maintenance-dashboard"
	}
	if cfg.Service.Version == "" {
		cfg.Service.Version = "1.0.0"
	}
	if cfg.Service.Port == 0 {
		cfg.Service.Port = 8095
	}

	if cfg.GLPI.SessionTTL == 0 {
		cfg.GLPI.SessionTTL = 5 * time.Minute
	}
	if cfg.GLPI.EntityID == 0 {
		cfg.GLPI.EntityID = 1
	}
	if cfg.GLPI.ConnectTimeout == 0 {
		cfg.GLPI.ConnectTimeout = 1 * time.Second
	}
	if cfg.GLPI.ReadTimeout == 0 {
		cfg.GLPI.ReadTimeout = 2500 * time.Millisecond
	}
	if cfg.GLPI.RankingConnectTimeout == 0 {
		cfg.GLPI.RankingConnectTimeout = 3 * time.Second
	}
	if cfg.GLPI.RankingReadTimeout == 0 {
		cfg.GLPI.RankingReadTimeout = 15 * time.Second
	}
	if cfg.GLPI.PageSize == 0 {
		cfg.GLPI.PageSize = 1000
	}
	if cfg.GLPI.NameWorkers == 0 {
		cfg.GLPI.NameWorkers = 8
	}
	if cfg.GLPI.NameWorkers < minNameWorkers {
		cfg.GLPI.NameWorkers = minNameWorkers
	}
	if cfg.GLPI.NameWorkers > maxNameWorkers {
		cfg.GLPI.NameWorkers = maxNameWorkers
	}
	if cfg.GLPI.StatusWorkers == 0 {
		cfg.GLPI.StatusWorkers = 4
	}
	if cfg.GLPI.TechTopLimit == 0 {
		cfg.GLPI.TechTopLimit = 20
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 5 * time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.CORS.AllowedMethods) == 0 {
		cfg.CORS.AllowedMethods = []string{"GET", "OPTIONS"}
	}
	if len(cfg.CORS.AllowedHeaders) == 0 {
		cfg.CORS.AllowedHeaders = []string{"Content-Type", "Authorization"}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return &configload.ValidationError{Field: "service.port", Message: fmt.Sprintf("invalid port: %d", c.Service.Port)}
	}
	if c.GLPI.BaseURL == "" {
		return &configload.ValidationError{Field: "glpi.base_url", Message: "is required"}
	}
	if c.GLPI.AppToken == "" {
		return &configload.ValidationError{Field: "glpi.app_token", Message: "is required"}
	}
	if c.GLPI.UserToken == "" {
		return &configload.ValidationError{Field: "glpi.user_token", Message: "is required"}
	}
	if c.GLPI.PageSize < 1 {
		return &configload.ValidationError{Field: "glpi.page_size", Message: "must be greater than 0"}
	}
	if c.GLPI.TechTopLimit < 1 {
		return &configload.ValidationError{Field: "glpi.tech_top_limit", Message: "must be greater than 0"}
	}
	if err := configload.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

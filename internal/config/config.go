package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable pointing at an optional YAML file.
const FileEnv = "TASKBOARD_CONFIG"

// Config holds all application configuration. Values come from built-in
// defaults, then the YAML file named by TASKBOARD_CONFIG, then TASKBOARD_*
// environment variables.
type Config struct {
	Database   DatabaseConfig `yaml:"database"`
	Redis      RedisConfig    `yaml:"redis"`
	JWT        JWTConfig      `yaml:"jwt"`
	Server     ServerConfig   `yaml:"server"`
	WS         WSConfig       `yaml:"ws"`
	Log        LogConfig      `yaml:"log"`
	Notify     NotifyConfig   `yaml:"notify"`
	SelfHosted bool           `yaml:"self_hosted"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"` //nolint:gosec // G117: DB connection config
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

// RedisConfig holds the identity cache settings. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"` //nolint:gosec // G117: Redis connection config
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret       string        `yaml:"secret"` //nolint:gosec // G117: JWT signing secret config
	AccessTTL    time.Duration `yaml:"access_ttl"`
	CookieSecure bool          `yaml:"cookie_secure"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	StaticDir      string        `yaml:"static_dir"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
}

// WSConfig tunes push-channel connections.
type WSConfig struct {
	SendBuffer   int           `yaml:"send_buffer"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json", or "console"/"text" for ConsoleWriter
}

type NotifyConfig struct {
	Retention int `yaml:"retention"`
}

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "taskboard",
			DBName:   "taskboard_dev",
			SSLMode:  "disable",
			MaxConns: 25,
		},
		Redis: RedisConfig{
			CacheTTL: 5 * time.Minute,
		},
		JWT: JWTConfig{
			AccessTTL: 24 * time.Hour,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			CORSOrigins:    []string{"http://localhost:5173"},
			RateLimitRPS:   50,
			RateLimitBurst: 100,
		},
		WS: WSConfig{
			SendBuffer:   64,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Notify: NotifyConfig{
			Retention: 100,
		},
	}
}

// Load builds the configuration. Defaults are safe for local development
// only; the JWT secret must always be set explicitly.
func Load() (*Config, error) {
	cfg, err := build()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// LoadNotify reads only the notification settings, for clients such as the
// watch command that run without server credentials.
func LoadNotify() (NotifyConfig, error) {
	cfg, err := build()
	if err != nil {
		return NotifyConfig{}, fmt.Errorf("config.LoadNotify: %w", err)
	}
	if cfg.Notify.Retention < 0 {
		return NotifyConfig{}, fmt.Errorf("config.LoadNotify: TASKBOARD_NOTIFY_RETENTION must be >= 0, got %d", cfg.Notify.Retention)
	}
	return cfg.Notify, nil
}

// build layers defaults, the optional YAML file and the environment.
func build() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv(FileEnv); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	log.Debug().Str("path", path).Msg("loading config file")

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return nil
}

// applyEnv overrides cfg with any TASKBOARD_* variables that are set.
func applyEnv(cfg *Config) error {
	var err error

	db := &cfg.Database
	db.Host = getEnv("TASKBOARD_DB_HOST", db.Host)
	if db.Port, err = getEnvInt("TASKBOARD_DB_PORT", db.Port); err != nil {
		return err
	}
	db.User = getEnv("TASKBOARD_DB_USER", db.User)
	db.Password = getEnv("TASKBOARD_DB_PASSWORD", db.Password)
	db.DBName = getEnv("TASKBOARD_DB_NAME", db.DBName)
	db.SSLMode = getEnv("TASKBOARD_DB_SSLMODE", db.SSLMode)
	if db.MaxConns, err = getEnvInt("TASKBOARD_DB_MAX_CONNS", db.MaxConns); err != nil {
		return err
	}

	rd := &cfg.Redis
	rd.Addr = getEnv("TASKBOARD_REDIS_ADDR", rd.Addr)
	rd.Password = getEnv("TASKBOARD_REDIS_PASSWORD", rd.Password)
	if rd.DB, err = getEnvInt("TASKBOARD_REDIS_DB", rd.DB); err != nil {
		return err
	}
	if rd.CacheTTL, err = getEnvDuration("TASKBOARD_REDIS_CACHE_TTL", rd.CacheTTL); err != nil {
		return err
	}

	jwt := &cfg.JWT
	jwt.Secret = getEnv("TASKBOARD_JWT_SECRET", jwt.Secret)
	if jwt.AccessTTL, err = getEnvDuration("TASKBOARD_JWT_ACCESS_TTL", jwt.AccessTTL); err != nil {
		return err
	}
	if jwt.CookieSecure, err = getEnvBool("TASKBOARD_JWT_COOKIE_SECURE", jwt.CookieSecure); err != nil {
		return err
	}

	srv := &cfg.Server
	srv.Addr = getEnv("TASKBOARD_SERVER_ADDR", srv.Addr)
	if srv.ReadTimeout, err = getEnvDuration("TASKBOARD_SERVER_READ_TIMEOUT", srv.ReadTimeout); err != nil {
		return err
	}
	if srv.WriteTimeout, err = getEnvDuration("TASKBOARD_SERVER_WRITE_TIMEOUT", srv.WriteTimeout); err != nil {
		return err
	}
	srv.CORSOrigins = getEnvList("TASKBOARD_CORS_ORIGINS", srv.CORSOrigins)
	srv.StaticDir = getEnv("TASKBOARD_STATIC_DIR", srv.StaticDir)
	if srv.RateLimitRPS, err = getEnvFloat("TASKBOARD_RATE_LIMIT_RPS", srv.RateLimitRPS); err != nil {
		return err
	}
	if srv.RateLimitBurst, err = getEnvInt("TASKBOARD_RATE_LIMIT_BURST", srv.RateLimitBurst); err != nil {
		return err
	}

	ws := &cfg.WS
	if ws.SendBuffer, err = getEnvInt("TASKBOARD_WS_SEND_BUFFER", ws.SendBuffer); err != nil {
		return err
	}
	if ws.WriteTimeout, err = getEnvDuration("TASKBOARD_WS_WRITE_TIMEOUT", ws.WriteTimeout); err != nil {
		return err
	}
	if ws.PingInterval, err = getEnvDuration("TASKBOARD_WS_PING_INTERVAL", ws.PingInterval); err != nil {
		return err
	}

	cfg.Log.Level = getEnv("TASKBOARD_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("TASKBOARD_LOG_FORMAT", cfg.Log.Format)

	if cfg.Notify.Retention, err = getEnvInt("TASKBOARD_NOTIFY_RETENTION", cfg.Notify.Retention); err != nil {
		return err
	}

	if cfg.SelfHosted, err = getEnvBool("TASKBOARD_SELF_HOSTED", cfg.SelfHosted); err != nil {
		return err
	}

	return nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("TASKBOARD_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("TASKBOARD_JWT_SECRET must be at least 32 characters")
	}

	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("TASKBOARD_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("TASKBOARD_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("TASKBOARD_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("TASKBOARD_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.Redis.Addr != "" && c.Redis.CacheTTL <= 0 {
		return fmt.Errorf("TASKBOARD_REDIS_CACHE_TTL must be positive, got %s", c.Redis.CacheTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("TASKBOARD_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("TASKBOARD_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("TASKBOARD_RATE_LIMIT_RPS and TASKBOARD_RATE_LIMIT_BURST must be positive, got %g/%d",
			c.Server.RateLimitRPS, c.Server.RateLimitBurst)
	}
	if c.WS.SendBuffer < 1 {
		return fmt.Errorf("TASKBOARD_WS_SEND_BUFFER must be >= 1, got %d", c.WS.SendBuffer)
	}
	if c.Notify.Retention < 0 {
		return fmt.Errorf("TASKBOARD_NOTIFY_RETENTION must be >= 0, got %d", c.Notify.Retention)
	}
	switch c.Log.Format {
	case "json", "console", "text":
	default:
		return fmt.Errorf("TASKBOARD_LOG_FORMAT must be json, console or text, got %q", c.Log.Format)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

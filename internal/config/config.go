// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Generation backends.
const (
	BackendHTTP   = "http"
	BackendGemini = "gemini"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	GRPCAddr    string // empty disables the gRPC health listener
	NATSURL     string // empty disables event publishing

	Generation      GenerationConfig
	Session         SessionConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// GenerationConfig selects and configures the generation connector.
type GenerationConfig struct {
	Backend      string
	URL          string
	Timeout      time.Duration
	GeminiAPIKey string
	TextModel    string
	ImageModel   string
	ServeBackend bool // mount the generation backend endpoints on this server
}

// SessionConfig controls session instance lifetime.
type SessionConfig struct {
	IdleTTL time.Duration
	UserTTL time.Duration
}

// RateLimitConfig controls the per-user request limiter on generation routes.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:   "8080",
		DBPath: "./data/growthdesk.db",
		Generation: GenerationConfig{
			Backend:    BackendHTTP,
			URL:        "http://localhost:5000",
			Timeout:    120 * time.Second,
			TextModel:  "gemini-2.5-flash",
			ImageModel: "imagen-3.0-generate-002",
		},
		Session: SessionConfig{
			IdleTTL: 60 * time.Minute,
			UserTTL: 30 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Requests: 10,
			Window:   time.Minute,
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       true,
			Dir:           "./data/logs/conversations",
			GlobalEnabled: false,
			GlobalPath:    "./data/logs/conversations/all.ndjson",
			QueueSize:     1000,
		},
	}
}

// Load reads configuration from an optional YAML file named by CONFIG_FILE,
// then applies environment variable overrides.
func Load() (*Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.FrontendURL = getEnv("FRONTEND_URL", c.FrontendURL)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.GRPCAddr = getEnv("GRPC_ADDR", c.GRPCAddr)
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)

	c.Generation.Backend = strings.ToLower(getEnv("GENERATION_BACKEND", c.Generation.Backend))
	c.Generation.URL = getEnv("GENERATION_URL", c.Generation.URL)
	c.Generation.Timeout = getEnvDuration("GENERATION_TIMEOUT", c.Generation.Timeout)
	c.Generation.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.Generation.GeminiAPIKey)
	c.Generation.TextModel = getEnv("GEMINI_TEXT_MODEL", c.Generation.TextModel)
	c.Generation.ImageModel = getEnv("GEMINI_IMAGE_MODEL", c.Generation.ImageModel)
	c.Generation.ServeBackend = getEnvBool("SERVE_BACKEND", c.Generation.ServeBackend)

	c.Session.IdleTTL = getEnvDuration("SESSION_IDLE_TTL", c.Session.IdleTTL)
	c.Session.UserTTL = getEnvDuration("USER_TTL", c.Session.UserTTL)

	c.RateLimit.Requests = getEnvInt("RATE_LIMIT_REQUESTS", c.RateLimit.Requests)
	c.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", c.RateLimit.Window)

	c.ConversationLog.Enabled = getEnvBool("CONVERSATION_LOG_ENABLED", c.ConversationLog.Enabled)
	c.ConversationLog.Dir = getEnv("CONVERSATION_LOG_DIR", c.ConversationLog.Dir)
	c.ConversationLog.GlobalEnabled = getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", c.ConversationLog.GlobalEnabled)
	c.ConversationLog.GlobalPath = getEnv("CONVERSATION_LOG_GLOBAL_PATH", c.ConversationLog.GlobalPath)
	if queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", c.ConversationLog.QueueSize); queueSize > 0 {
		c.ConversationLog.QueueSize = queueSize
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.Generation.Backend {
	case BackendHTTP:
		if c.Generation.URL == "" {
			return fmt.Errorf("GENERATION_URL cannot be empty for the http backend")
		}
		if c.Generation.ServeBackend {
			return fmt.Errorf("SERVE_BACKEND requires GENERATION_BACKEND=gemini")
		}
	case BackendGemini:
		if c.Generation.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY cannot be empty for the gemini backend")
		}
	default:
		return fmt.Errorf("GENERATION_BACKEND must be %q or %q, got %q", BackendHTTP, BackendGemini, c.Generation.Backend)
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be > 0")
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be > 0")
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// fileConfig mirrors Config for the YAML overlay. Unset fields keep defaults.
type fileConfig struct {
	Port        *string `yaml:"port"`
	FrontendURL *string `yaml:"frontend_url"`
	DBPath      *string `yaml:"db_path"`
	GRPCAddr    *string `yaml:"grpc_addr"`
	NATSURL     *string `yaml:"nats_url"`

	Generation struct {
		Backend      *string   `yaml:"backend"`
		URL          *string   `yaml:"url"`
		Timeout      *Duration `yaml:"timeout"`
		TextModel    *string   `yaml:"text_model"`
		ImageModel   *string   `yaml:"image_model"`
		ServeBackend *bool     `yaml:"serve_backend"`
	} `yaml:"generation"`

	Session struct {
		IdleTTL *Duration `yaml:"idle_ttl"`
		UserTTL *Duration `yaml:"user_ttl"`
	} `yaml:"session"`

	RateLimit struct {
		Requests *int      `yaml:"requests"`
		Window   *Duration `yaml:"window"`
	} `yaml:"rate_limit"`

	ConversationLog struct {
		Enabled       *bool   `yaml:"enabled"`
		Dir           *string `yaml:"dir"`
		GlobalEnabled *bool   `yaml:"global_enabled"`
		GlobalPath    *string `yaml:"global_path"`
		QueueSize     *int    `yaml:"queue_size"`
	} `yaml:"conversation_log"`
}

// Duration wraps time.Duration for YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	setString(&c.Port, fc.Port)
	setString(&c.FrontendURL, fc.FrontendURL)
	setString(&c.DBPath, fc.DBPath)
	setString(&c.GRPCAddr, fc.GRPCAddr)
	setString(&c.NATSURL, fc.NATSURL)

	setString(&c.Generation.Backend, fc.Generation.Backend)
	setString(&c.Generation.URL, fc.Generation.URL)
	setDuration(&c.Generation.Timeout, fc.Generation.Timeout)
	setString(&c.Generation.TextModel, fc.Generation.TextModel)
	setString(&c.Generation.ImageModel, fc.Generation.ImageModel)
	setBool(&c.Generation.ServeBackend, fc.Generation.ServeBackend)

	setDuration(&c.Session.IdleTTL, fc.Session.IdleTTL)
	setDuration(&c.Session.UserTTL, fc.Session.UserTTL)

	setInt(&c.RateLimit.Requests, fc.RateLimit.Requests)
	setDuration(&c.RateLimit.Window, fc.RateLimit.Window)

	setBool(&c.ConversationLog.Enabled, fc.ConversationLog.Enabled)
	setString(&c.ConversationLog.Dir, fc.ConversationLog.Dir)
	setBool(&c.ConversationLog.GlobalEnabled, fc.ConversationLog.GlobalEnabled)
	setString(&c.ConversationLog.GlobalPath, fc.ConversationLog.GlobalPath)
	setInt(&c.ConversationLog.QueueSize, fc.ConversationLog.QueueSize)

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	ERPNext   ERPNextConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Session   SessionConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
	Metrics   MetricsConfig
	Swagger   SwaggerConfig
	Fiscal    FiscalConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// ERPNextConfig holds the upstream ERPNext connection settings
type ERPNextConfig struct {
	BaseURL            string
	Timeout            time.Duration
	MaxRetries         int
	RetryDelay         time.Duration
	MaxRetryDelay      time.Duration
	RateLimitQPS       float64
	RateLimitBurst     int
	InsecureSkipVerify bool
	MaxResponseSize    int64
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                string
	AccessTokenExpiration time.Duration
	Issuer                string
}

// SessionConfig holds server-side session settings
type SessionConfig struct {
	TTL       time.Duration
	KeyPrefix string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// StorageConfig holds S3-compatible object storage settings for the PDF archive
type StorageConfig struct {
	Enabled           bool
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
}

// MetricsConfig holds Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool
}

// SwaggerConfig holds API documentation endpoint settings
type SwaggerConfig struct {
	Enabled     bool     // Whether to serve /swagger
	RequireAuth bool     // Require a session to read the docs
	AllowedIPs  []string // IP or CIDR allowlist (empty = allow all)
}

// FiscalConfig holds AFIP-related settings
type FiscalConfig struct {
	ElectronicPrefix string
	ManualPrefix     string
	FCEPrefix        string
	ProfileCacheTTL  time.Duration
	LockTTL          time.Duration
	Withholding      WithholdingConfig
}

// WithholdingConfig holds the income tax withholding rule applied to supplier payments
type WithholdingConfig struct {
	Rate      string // percentage as decimal string, e.g. "2"
	Threshold string
	Minimum   string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BFF_ prefix (e.g., BFF_ERPNEXT_BASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./bff")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("BFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		ERPNext: ERPNextConfig{
			BaseURL:            v.GetString("erpnext.base_url"),
			Timeout:            v.GetDuration("erpnext.timeout"),
			MaxRetries:         v.GetInt("erpnext.max_retries"),
			RetryDelay:         v.GetDuration("erpnext.retry_delay"),
			MaxRetryDelay:      v.GetDuration("erpnext.max_retry_delay"),
			RateLimitQPS:       v.GetFloat64("erpnext.rate_limit_qps"),
			RateLimitBurst:     v.GetInt("erpnext.rate_limit_burst"),
			InsecureSkipVerify: v.GetBool("erpnext.insecure_skip_verify"),
			MaxResponseSize:    v.GetInt64("erpnext.max_response_size"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
		},
		Session: SessionConfig{
			TTL:       v.GetDuration("session.ttl"),
			KeyPrefix: v.GetString("session.key_prefix"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Storage: StorageConfig{
			Enabled:           v.GetBool("storage.enabled"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
		},
		Swagger: SwaggerConfig{
			Enabled:     v.GetBool("swagger.enabled"),
			RequireAuth: v.GetBool("swagger.require_auth"),
			AllowedIPs:  v.GetStringSlice("swagger.allowed_ips"),
		},
		Fiscal: FiscalConfig{
			ElectronicPrefix: v.GetString("fiscal.electronic_prefix"),
			ManualPrefix:     v.GetString("fiscal.manual_prefix"),
			FCEPrefix:        v.GetString("fiscal.fce_prefix"),
			ProfileCacheTTL:  v.GetDuration("fiscal.profile_cache_ttl"),
			LockTTL:          v.GetDuration("fiscal.lock_ttl"),
			Withholding: WithholdingConfig{
				Rate:      v.GetString("fiscal.withholding.rate"),
				Threshold: v.GetString("fiscal.withholding.threshold"),
				Minimum:   v.GetString("fiscal.withholding.minimum"),
			},
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "erpnext-bff"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.ERPNext.BaseURL == "" {
		cfg.ERPNext.BaseURL = "http://localhost:8000"
	}
	if cfg.ERPNext.Timeout == 0 {
		cfg.ERPNext.Timeout = 30 * time.Second
	}
	if cfg.ERPNext.MaxRetries == 0 {
		cfg.ERPNext.MaxRetries = 3
	}
	if cfg.ERPNext.RetryDelay == 0 {
		cfg.ERPNext.RetryDelay = 200 * time.Millisecond
	}
	if cfg.ERPNext.MaxRetryDelay == 0 {
		cfg.ERPNext.MaxRetryDelay = 2 * time.Second
	}
	if cfg.ERPNext.RateLimitQPS == 0 {
		cfg.ERPNext.RateLimitQPS = 50
	}
	if cfg.ERPNext.RateLimitBurst == 0 {
		cfg.ERPNext.RateLimitBurst = 20
	}
	if cfg.ERPNext.MaxResponseSize == 0 {
		cfg.ERPNext.MaxResponseSize = 20 << 20 // 20MB, print PDFs included
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 12 * time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "erpnext-bff"
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 12 * time.Hour
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "bff:session:"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 300
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// No CORS origin default: cross-origin calls stay blocked until configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "invoices"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "erpnext-bff"
	}
	if cfg.Fiscal.ElectronicPrefix == "" {
		cfg.Fiscal.ElectronicPrefix = "FE"
	}
	if cfg.Fiscal.ManualPrefix == "" {
		cfg.Fiscal.ManualPrefix = "FM"
	}
	if cfg.Fiscal.FCEPrefix == "" {
		cfg.Fiscal.FCEPrefix = "FCE"
	}
	if cfg.Fiscal.ProfileCacheTTL == 0 {
		cfg.Fiscal.ProfileCacheTTL = 10 * time.Minute
	}
	if cfg.Fiscal.LockTTL == 0 {
		cfg.Fiscal.LockTTL = 30 * time.Second
	}
	if cfg.Fiscal.Withholding.Rate == "" {
		cfg.Fiscal.Withholding.Rate = "2"
	}
	if cfg.Fiscal.Withholding.Threshold == "" {
		cfg.Fiscal.Withholding.Threshold = "67170"
	}
	if cfg.Fiscal.Withholding.Minimum == "" {
		cfg.Fiscal.Withholding.Minimum = "240"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	u, err := url.Parse(c.ERPNext.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("erpnext.base_url must be an absolute URL, got %q", c.ERPNext.BaseURL)
	}
	if c.ERPNext.MaxRetries < 0 {
		return fmt.Errorf("erpnext.max_retries cannot be negative")
	}
	if c.Session.TTL < time.Minute {
		return fmt.Errorf("session.ttl must be at least one minute")
	}
	prefixes := map[string]bool{}
	for _, p := range []string{c.Fiscal.ElectronicPrefix, c.Fiscal.ManualPrefix, c.Fiscal.FCEPrefix} {
		if prefixes[p] {
			return fmt.Errorf("fiscal naming prefixes must differ, %q is repeated", p)
		}
		prefixes[p] = true
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if u.Scheme != "https" {
			return fmt.Errorf("erpnext.base_url must use https in production")
		}
		if c.ERPNext.InsecureSkipVerify {
			return fmt.Errorf("erpnext.insecure_skip_verify must be false in production")
		}
		if c.Swagger.Enabled && !c.Swagger.RequireAuth && len(c.Swagger.AllowedIPs) == 0 {
			return fmt.Errorf("swagger endpoint must be disabled, require authentication, or have IP restriction in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// IsProduction reports whether the app runs with production settings
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix scopes environment overrides, e.g. PHARMACY_DATABASE_HOST.
const EnvPrefix = "PHARMACY"

type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Policy    PolicyConfig    `mapstructure:"policy" ignored:"true"`
	Messaging MessagingConfig `mapstructure:"messaging"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" split_words:"true"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" split_words:"true"`
	// RateLimit is requests per second per client ip; 0 disables limiting.
	RateLimit    float64  `mapstructure:"rate_limit" split_words:"true"`
	RateBurst    int      `mapstructure:"rate_burst" split_words:"true"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes" split_words:"true"`
	CORSOrigins  []string `mapstructure:"cors_origins" envconfig:"CORS_ORIGINS"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode" envconfig:"SSLMODE"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" split_words:"true"`
}

// DSN builds a lib/pq connection URL.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}

type AuthConfig struct {
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
	ClientID string `mapstructure:"client_id" split_words:"true"`
	// SigningKey enables HS256 tokens. Leave empty when JWKSURL is set.
	SigningKey   string        `mapstructure:"signing_key" split_words:"true"`
	JWKSURL      string        `mapstructure:"jwks_url" envconfig:"JWKS_URL"`
	JWKSCacheTTL time.Duration `mapstructure:"jwks_cache_ttl" envconfig:"JWKS_CACHE_TTL"`
	// JWKSMinRefresh is the shortest gap between two JWKS fetches.
	JWKSMinRefresh time.Duration `mapstructure:"jwks_min_refresh" envconfig:"JWKS_MIN_REFRESH"`
	Leeway         time.Duration `mapstructure:"leeway"`
}

// PolicyRule grants subject (a role or "authenticated") action on object.
// Object is a keyMatch2 path pattern, action a method regex or "*".
type PolicyRule struct {
	Subject string `mapstructure:"subject"`
	Object  string `mapstructure:"object"`
	Action  string `mapstructure:"action"`
}

type PolicyConfig struct {
	// Rules replaces the built-in route table when non-empty.
	Rules []PolicyRule `mapstructure:"rules"`
}

type MessagingConfig struct {
	// Driver is redis, rabbitmq or memory.
	Driver        string `mapstructure:"driver"`
	URL           string `mapstructure:"url"`
	ChannelPrefix string `mapstructure:"channel_prefix" split_words:"true"`
	Exchange      string `mapstructure:"exchange"`
	QueuePrefix   string `mapstructure:"queue_prefix" split_words:"true"`
}

type OutboxConfig struct {
	BatchSize    int           `mapstructure:"batch_size" split_words:"true"`
	PollInterval time.Duration `mapstructure:"poll_interval" split_words:"true"`
	MaxRetries   int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	Lease        time.Duration `mapstructure:"lease"`
	Retention    time.Duration `mapstructure:"retention"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Enabled reports whether enough is configured to send mail.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

type AuditConfig struct {
	RetentionDays   int           `mapstructure:"retention_days" split_words:"true"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" envconfig:"MAX_SIZE_MB"`
	MaxBackups int    `mapstructure:"max_backups" split_words:"true"`
	MaxAgeDays int    `mapstructure:"max_age_days" split_words:"true"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name" split_words:"true"`
	SampleRatio float64 `mapstructure:"sample_ratio" split_words:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "pharmacy")
	v.SetDefault("database.name", "pharmacy")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("auth.client_id", "pharmacy-app")
	v.SetDefault("auth.jwks_cache_ttl", "5m")
	v.SetDefault("auth.jwks_min_refresh", "30s")
	v.SetDefault("auth.leeway", "30s")

	v.SetDefault("messaging.driver", "redis")
	v.SetDefault("messaging.url", "redis://localhost:6379/0")
	v.SetDefault("messaging.channel_prefix", "pharmacy.")
	v.SetDefault("messaging.exchange", "pharmacy.events")
	v.SetDefault("messaging.queue_prefix", "pharmacy")

	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", "2s")
	v.SetDefault("outbox.max_retries", 5)
	v.SetDefault("outbox.retry_backoff", "5s")
	v.SetDefault("outbox.lease", "1m")
	v.SetDefault("outbox.retention", "168h")

	v.SetDefault("smtp.port", 587)

	v.SetDefault("audit.retention_days", 365)
	v.SetDefault("audit.cleanup_interval", "24h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("tracing.service_name", "pharmacy-api")
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Load reads path (or config.yaml from the usual locations when empty),
// then applies .env and PHARMACY_* environment overrides.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.SigningKey == "" && c.Auth.JWKSURL == "" {
		return fmt.Errorf("config: auth.signing_key or auth.jwks_url is required")
	}
	switch strings.ToLower(c.Messaging.Driver) {
	case "redis", "rabbitmq", "memory":
	default:
		return fmt.Errorf("config: unsupported messaging.driver %q", c.Messaging.Driver)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("config: server.port must be positive")
	}
	for i, r := range c.Policy.Rules {
		if r.Subject == "" || r.Object == "" || r.Action == "" {
			return fmt.Errorf("config: policy.rules[%d] needs subject, object and action", i)
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

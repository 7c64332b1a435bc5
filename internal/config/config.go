package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	DB        DBConfig        `mapstructure:"db"`
	Auth      AuthConfig      `mapstructure:"auth"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
}

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	FrontendURL    string   `mapstructure:"frontend_url"`
}

type DBConfig struct {
	Source         string `mapstructure:"source"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

// AuthConfig holds the session and password parameters. Every value here is
// overridable so tests can run with a cheap bcrypt cost and short TTLs.
type AuthConfig struct {
	BcryptCost         int           `mapstructure:"bcrypt_cost"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	RenewThreshold     time.Duration `mapstructure:"renew_threshold"`
	SessionTokenLength int           `mapstructure:"session_token_length"`
	ResetTokenLength   int           `mapstructure:"reset_token_length"`
	ResetTTL           time.Duration `mapstructure:"reset_ttl"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	MinPasswordLength  int           `mapstructure:"min_password_length"`
}

type JWTConfig struct {
	Secret      string        `mapstructure:"secret"`
	RealtimeTTL time.Duration `mapstructure:"realtime_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RealtimeConfig struct {
	RequireIdentity bool `mapstructure:"require_identity"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("http.addr", ":8800")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("http.frontend_url", "http://localhost:5173")
	v.SetDefault("db.source", "")
	v.SetDefault("db.migrate_on_start", true)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.session_ttl", "168h")
	v.SetDefault("auth.renew_threshold", "24h")
	v.SetDefault("auth.session_token_length", 40)
	v.SetDefault("auth.reset_token_length", 40)
	v.SetDefault("auth.reset_ttl", "1h")
	v.SetDefault("auth.sweep_interval", "10m")
	v.SetDefault("auth.min_password_length", 6)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.realtime_ttl", "1m")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.max_attempts", 5)
	v.SetDefault("ratelimit.window", "15m")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "auth-events")
	v.SetDefault("realtime.require_identity", false)
}

func Load() (*Config, error) {
	v := viper.New()
	v.AddConfigPath("./configs")
	v.AddConfigPath("/configs")
	v.SetConfigName("settings")
	v.SetConfigType("yml")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("config: env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return errors.New("config: auth.bcrypt_cost must be between 4 and 31")
	}
	if c.Auth.SessionTTL <= 0 || c.Auth.ResetTTL <= 0 || c.Auth.SweepInterval <= 0 {
		return errors.New("config: auth TTLs and sweep interval must be positive")
	}
	if c.Auth.RenewThreshold < 0 || c.Auth.RenewThreshold > c.Auth.SessionTTL {
		return errors.New("config: auth.renew_threshold must be between 0 and auth.session_ttl")
	}
	if c.Auth.SessionTokenLength < 21 || c.Auth.ResetTokenLength < 21 {
		return errors.New("config: token lengths must be at least 21 characters")
	}
	if c.IsProduction() && c.JWT.Secret == "" {
		return errors.New("config: jwt.secret must be set in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// CookieOptions describes how the session cookie is written.
type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// SessionCookieOptions returns Lax cookies in development and Secure, SameSite=None
// cookies in production, where the SPA is served from a different site.
func (c *Config) SessionCookieOptions() CookieOptions {
	if c.IsProduction() {
		return CookieOptions{Secure: true, SameSite: http.SameSiteNoneMode, MaxAge: c.Auth.SessionTTL}
	}
	return CookieOptions{Secure: false, SameSite: http.SameSiteLaxMode, MaxAge: c.Auth.SessionTTL}
}

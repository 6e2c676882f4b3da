package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	BotToken    string `toml:"bot_token" mapstructure:"bot_token"`
	DatabaseURL string `toml:"database_url" mapstructure:"database_url"`
	AdminUserID int64  `toml:"admin_user_id" mapstructure:"admin_user_id"`
	SecretKey   string `toml:"secret_key" mapstructure:"secret_key"`
	AdminToken  string `toml:"admin_token" mapstructure:"admin_token"`
	Lang        string `toml:"lang" mapstructure:"lang"`
	Workers     int    `toml:"workers" mapstructure:"workers"`

	// fallback session credentials
	APIID       int    `toml:"api_id" mapstructure:"api_id"`
	APIHash     string `toml:"api_hash" mapstructure:"api_hash"`
	PhoneNumber string `toml:"phone_number" mapstructure:"phone_number"`

	RpcRetry      int    `toml:"rpc_retry" mapstructure:"rpc_retry"`
	FloodRetry    uint   `toml:"flood_retry" mapstructure:"flood_retry"`
	BotSessionDSN string `toml:"bot_session_dsn" mapstructure:"bot_session_dsn"`

	RegistryRefresh time.Duration `toml:"registry_refresh" mapstructure:"registry_refresh"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	BackupRetention time.Duration `toml:"backup_retention" mapstructure:"backup_retention"`

	Webhook webhookConfig `toml:"webhook" mapstructure:"webhook"`
	Log     logConfig     `toml:"log" mapstructure:"log"`
	Proxy   proxyConfig   `toml:"proxy" mapstructure:"proxy"`
	Redis   redisConfig   `toml:"redis" mapstructure:"redis"`
}

type webhookConfig struct {
	URL  string `toml:"url" mapstructure:"url"`
	Port int    `toml:"port" mapstructure:"port"`
}

type logConfig struct {
	Level string `toml:"level" mapstructure:"level"`
	File  string `toml:"file" mapstructure:"file"`
}

type proxyConfig struct {
	URL string `toml:"url" mapstructure:"url"`
}

type redisConfig struct {
	URL string `toml:"url" mapstructure:"url"`
}

// public desktop credentials, used only by the service client
const (
	defaultAppID   = 2040
	defaultAppHash = "b18441a1ff607e10a989891a5462e627"
)

var keys = []string{
	"bot_token", "database_url", "admin_user_id", "secret_key", "admin_token", "lang", "workers",
	"api_id", "api_hash", "phone_number",
	"rpc_retry", "flood_retry", "bot_session_dsn",
	"registry_refresh", "shutdown_timeout", "backup_retention",
	"webhook.url", "webhook.port", "log.level", "log.file", "proxy.url", "redis.url",
}

var cfg *Config

func C() *Config {
	if cfg == nil {
		panic("config not initialized")
	}
	return cfg
}

type LoadOptions struct {
	ConfigFile string
	EnvFiles   []string
	Flags      *pflag.FlagSet
}

// Init loads the configuration and installs it as the process-wide config.
func Init(opts LoadOptions) error {
	c, err := Load(opts)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// Load reads .env files, the environment, an optional config file and
// bound flags, in increasing precedence for flags.
func Load(opts LoadOptions) (*Config, error) {
	envFiles := opts.EnvFiles
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	v.SetDefault("lang", "en")
	v.SetDefault("workers", 8)
	v.SetDefault("api_id", defaultAppID)
	v.SetDefault("api_hash", defaultAppHash)
	v.SetDefault("rpc_retry", 5)
	v.SetDefault("flood_retry", 3)
	v.SetDefault("bot_session_dsn", "data/bot_session.db")
	v.SetDefault("registry_refresh", 5*time.Minute)
	v.SetDefault("shutdown_timeout", 15*time.Second)
	v.SetDefault("backup_retention", 30*24*time.Hour)
	v.SetDefault("log.level", "info")

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be greater than 0, got %d", c.Workers))
	}
	if c.Webhook.URL != "" && (c.Webhook.Port <= 0 || c.Webhook.Port > 65535) {
		errs = append(errs, fmt.Errorf("WEBHOOK_PORT must be a valid port when WEBHOOK_URL is set, got %d", c.Webhook.Port))
	}
	if c.RegistryRefresh <= 0 {
		errs = append(errs, errors.New("REGISTRY_REFRESH must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) WebhookMode() bool {
	return c.Webhook.URL != ""
}

// WebhookSecret is the path segment guarding the webhook endpoint.
func (c *Config) WebhookSecret() string {
	sum := sha256.Sum256([]byte(c.SecretKey + ":" + c.BotToken))
	return hex.EncodeToString(sum[:16])
}

// HasFallbackSession reports whether terminal login credentials are configured.
func (c *Config) HasFallbackSession() bool {
	return c.PhoneNumber != "" && c.AdminUserID != 0
}

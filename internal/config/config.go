package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	SchemeAPIKey    = "api_key"
	SchemeAuthToken = "auth_token"
)

// ---- Root ----

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Twilio    TwilioConfig    `mapstructure:"twilio"`
	Forward   ForwardConfig   `mapstructure:"forward"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Push      PushConfig      `mapstructure:"push"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address for the configured port.
func (h HTTPConfig) Addr() string {
	if strings.Contains(h.Port, ":") {
		return h.Port
	}
	return ":" + h.Port
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // json | console
}

type TwilioConfig struct {
	AccountSID   string `mapstructure:"account_sid"`
	AuthToken    string `mapstructure:"auth_token"`
	APIKeySID    string `mapstructure:"api_key_sid"`
	APIKeySecret string `mapstructure:"api_key_secret"`
}

type ForwardConfig struct {
	ToNumber       string `mapstructure:"to_number"`
	RingTimeout    int    `mapstructure:"ring_timeout"` // seconds, enforced by the provider
	Voice          string `mapstructure:"voice"`
	Greeting       string `mapstructure:"greeting"`
	FailureMessage string `mapstructure:"failure_message"`
	Record         string `mapstructure:"record"`
}

type BreakerConfig struct {
	FailThreshold int           `mapstructure:"fail_threshold"` // 0 disables the breaker
	OpenFor       time.Duration `mapstructure:"open_for"`
}

type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type PushConfig struct {
	URL         string        `mapstructure:"url"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

type StorageConfig struct {
	MessagesFile string `mapstructure:"messages_file"`
	TokensFile   string `mapstructure:"tokens_file"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"` // empty disables redis
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// envAliases maps config keys to the variable names operators already use for this service.
var envAliases = map[string]string{
	"twilio.account_sid":    "TWILIO_ACCOUNT_SID",
	"twilio.auth_token":     "TWILIO_AUTH_TOKEN",
	"twilio.api_key_sid":    "TWILIO_API_KEY_SID",
	"twilio.api_key_secret": "TWILIO_API_KEY_SECRET",
	"forward.to_number":     "FORWARD_TO_NUMBER",
	"webhook.url":           "WEBHOOK_URL",
	"http.port":             "PORT",
	"log.level":             "LOG_LEVEL",
	"push.access_token":     "EXPO_ACCESS_TOKEN",
}

// Load reads embedded defaults, merges user YAML (if present), loads .env and applies env overrides
// (FWD_* plus the aliases above).
func Load(path string) (Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	v.SetEnvPrefix("FWD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// CredentialScheme reports which provider credential set is complete; API keys win when both are.
func (c Config) CredentialScheme() (string, bool) {
	t := c.Twilio
	if t.APIKeySID != "" && t.APIKeySecret != "" && t.AccountSID != "" {
		return SchemeAPIKey, true
	}
	if t.AccountSID != "" && t.AuthToken != "" {
		return SchemeAuthToken, true
	}
	return "", false
}

// Validate checks everything the service cannot start without.
func (c Config) Validate() error {
	var problems []string

	if _, ok := c.CredentialScheme(); !ok {
		problems = append(problems,
			"missing twilio credentials: need TWILIO_API_KEY_SID + TWILIO_API_KEY_SECRET + TWILIO_ACCOUNT_SID, or TWILIO_ACCOUNT_SID + TWILIO_AUTH_TOKEN")
	}
	if strings.TrimSpace(c.Forward.ToNumber) == "" {
		problems = append(problems, "missing FORWARD_TO_NUMBER")
	}
	if strings.TrimSpace(c.Webhook.URL) == "" {
		problems = append(problems, "missing WEBHOOK_URL")
	} else if u, err := url.Parse(c.Webhook.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("webhook url %q is not an absolute http(s) url", c.Webhook.URL))
	}
	if c.Forward.RingTimeout < 5 || c.Forward.RingTimeout > 600 {
		problems = append(problems, fmt.Sprintf("forward.ring_timeout=%d out of range 5..600", c.Forward.RingTimeout))
	}
	if strings.TrimSpace(c.Storage.MessagesFile) == "" || strings.TrimSpace(c.Storage.TokensFile) == "" {
		problems = append(problems, "storage files must be set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

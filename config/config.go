package config

import (
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"

	// SigningKeySize is the decoded length in bytes required for token.signingKey.
	SigningKeySize = 32

	defaultAccessTTLSeconds  = 3600
	defaultRefreshTTLSeconds = 14 * 24 * 3600

	defaultAccessCookieName  = "accessToken"
	defaultRefreshCookieName = "refreshToken"
	defaultAccessCookiePath  = "/"
	defaultRefreshCookiePath = "/api/auth/reissue"
	defaultCookieSameSite    = "Strict"

	defaultStoreTimeout = 3 * time.Second

	defaultReissueRatePerMinute = 30
	defaultReissueBurst         = 10
)

// Refresh token store backends.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
	StoreBackendMemory   = "memory"
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	Redis *RedisConfig `json:"redis" yaml:"redis"`

	Token *TokenConfig `json:"token" yaml:"token"`

	Cookie *CookieConfig `json:"cookie" yaml:"cookie"`

	RefreshStore *RefreshStoreConfig `json:"refreshStore" yaml:"refreshStore"`

	GoogleOAuth *GoogleOAuthConfig `json:"googleOAuth" yaml:"googleOAuth"`

	GitHubOAuth *GitHubOAuthConfig `json:"githubOAuth" yaml:"githubOAuth"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`
}

// TokenConfig holds the signing key and token lifetimes.
type TokenConfig struct {
	// Base64 encoded HMAC key, must decode to SigningKeySize bytes
	SigningKey        string `json:"signingKey" yaml:"signingKey"`
	AccessTTLSeconds  int64  `json:"accessTtlSeconds" yaml:"accessTtlSeconds"`
	RefreshTTLSeconds int64  `json:"refreshTtlSeconds" yaml:"refreshTtlSeconds"`
	ClockSkewSeconds  int64  `json:"clockSkewSeconds" yaml:"clockSkewSeconds"`
}

// AccessTTL returns the access token lifetime.
func (c *TokenConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLSeconds) * time.Second
}

// RefreshTTL returns the refresh token lifetime.
func (c *TokenConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLSeconds) * time.Second
}

// ClockSkew returns the tolerated clock drift when checking expiry.
func (c *TokenConfig) ClockSkew() time.Duration {
	return time.Duration(c.ClockSkewSeconds) * time.Second
}

// DecodedSigningKey returns the raw HMAC key.
func (c *TokenConfig) DecodedSigningKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.SigningKey))
	if err != nil {
		return nil, errors.Wrap(err, "token.signingKey is not valid base64")
	}
	if len(key) != SigningKeySize {
		return nil, errors.Errorf("token.signingKey must decode to %d bytes, got %d", SigningKeySize, len(key))
	}

	return key, nil
}

// CookieConfig controls how tokens are delivered to browsers.
type CookieConfig struct {
	AccessName  string `json:"accessName" yaml:"accessName"`
	RefreshName string `json:"refreshName" yaml:"refreshName"`
	AccessPath  string `json:"accessPath" yaml:"accessPath"`
	RefreshPath string `json:"refreshPath" yaml:"refreshPath"`
	Domain      string `json:"domain" yaml:"domain"`
	SameSite    string `json:"sameSite" yaml:"sameSite"`
	Secure      *bool  `json:"secure" yaml:"secure"`
}

// Resolved returns a copy with every unset field at its default. A nil config resolves to all defaults.
func (c *CookieConfig) Resolved() *CookieConfig {
	var resolved CookieConfig
	if c != nil {
		resolved = *c
	}

	resolved.AccessName = withDefault(resolved.AccessName, defaultAccessCookieName)
	resolved.RefreshName = withDefault(resolved.RefreshName, defaultRefreshCookieName)
	resolved.AccessPath = withDefault(resolved.AccessPath, defaultAccessCookiePath)
	// The refresh cookie only travels to the reissue endpoint. Logout without an access token needs the body field.
	resolved.RefreshPath = withDefault(resolved.RefreshPath, defaultRefreshCookiePath)
	resolved.SameSite = withDefault(resolved.SameSite, defaultCookieSameSite)

	return &resolved
}

// IsSecure reports whether cookies carry the Secure attribute. Defaults to true.
func (c *CookieConfig) IsSecure() bool {
	return c.Secure == nil || *c.Secure
}

// SameSiteMode maps the configured value onto net/http.
func (c *CookieConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

// RefreshStoreConfig selects and tunes the refresh token store.
type RefreshStoreConfig struct {
	Backend      string        `json:"backend" yaml:"backend"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	ReapInterval time.Duration `json:"reapInterval" yaml:"reapInterval"`
}

// RedisConfig holds connection settings for the redis refresh store.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type GoogleOAuthConfig struct {
	// Audience expected in Google ID tokens
	ClientID string `json:"clientId" yaml:"clientId"`
}

// GitHubOAuthConfig holds the OAuth app used for the authorization code exchange.
type GitHubOAuthConfig struct {
	ClientID     string `json:"clientId" yaml:"clientId"`
	ClientSecret string `json:"clientSecret" yaml:"clientSecret"`
	// Must match the callback registered on the OAuth app
	RedirectURL string `json:"redirectUrl" yaml:"redirectUrl"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	ReissueRatePerMinute int `json:"reissueRatePerMinute" yaml:"reissueRatePerMinute"`
	ReissueBurst         int `json:"reissueBurst" yaml:"reissueBurst"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			searchPaths = append(searchPaths, filepath.Join(pwd, path))
		}
	}

	var configFile string
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate

			break
		}
	}

	if configFile == "" {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Env vars override YAML, e.g. TOKEN_SIGNINGKEY -> token.signingKey
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			return canonicalizeEnvKey(k, existingConfigMap), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	if cfg.Postgres != nil {
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills optional sections with their documented defaults.
func (cfg *Config) ApplyDefaults() {
	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	if cfg.Token == nil {
		cfg.Token = &TokenConfig{}
	}
	if cfg.Token.AccessTTLSeconds == 0 {
		cfg.Token.AccessTTLSeconds = defaultAccessTTLSeconds
	}
	if cfg.Token.RefreshTTLSeconds == 0 {
		cfg.Token.RefreshTTLSeconds = defaultRefreshTTLSeconds
	}

	cfg.Cookie = cfg.Cookie.Resolved()

	if cfg.RefreshStore == nil {
		cfg.RefreshStore = &RefreshStoreConfig{}
	}
	cfg.RefreshStore.Backend = strings.ToLower(withDefault(cfg.RefreshStore.Backend, StoreBackendPostgres))
	if cfg.RefreshStore.Timeout <= 0 {
		cfg.RefreshStore.Timeout = defaultStoreTimeout
	}

	if cfg.GoogleOAuth == nil {
		cfg.GoogleOAuth = &GoogleOAuthConfig{}
	}
	if cfg.GitHubOAuth == nil {
		cfg.GitHubOAuth = &GitHubOAuthConfig{}
	}

	if cfg.Auth == nil {
		cfg.Auth = &AuthConfig{
			ReissueRatePerMinute: defaultReissueRatePerMinute,
			ReissueBurst:         defaultReissueBurst,
		}
	}
}

// Validate checks the settings the service cannot start without.
func (cfg *Config) Validate() error {
	if cfg.Token == nil {
		return errors.New("token config is required")
	}
	if _, err := cfg.Token.DecodedSigningKey(); err != nil {
		return err
	}
	if cfg.Token.AccessTTLSeconds <= 0 || cfg.Token.RefreshTTLSeconds <= 0 {
		return errors.New("token ttl values must be positive")
	}
	if cfg.Token.ClockSkewSeconds < 0 {
		return errors.New("token.clockSkewSeconds must not be negative")
	}

	switch cfg.RefreshStore.Backend {
	case StoreBackendPostgres, StoreBackendMemory:
	case StoreBackendRedis:
		if cfg.Redis == nil || cfg.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis refresh store")
		}
	default:
		return errors.Errorf("unknown refreshStore.backend: %s", cfg.RefreshStore.Backend)
	}

	return nil
}

func withDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv reads POSTGRES_REPLICAS_{index}_{HOST,PORT,USERNAME,PASSWORD}.
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			break
		}

		replicas = append(replicas, postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		})
	}

	return replicas
}

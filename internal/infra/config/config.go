package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// MasterKeyEnv names the env var holding the passphrase for enc: secrets.
const MasterKeyEnv = "BOTGATE_MASTER_KEY"

// Config is the top-level application configuration.
type Config struct {
	Logger   LoggerConfig   `yaml:"logger"`
	Tracer   TracerConfig   `yaml:"tracer"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Resolver ResolverConfig `yaml:"resolver"`
	Store    StoreConfig    `yaml:"store"`
	Forward  ForwardConfig  `yaml:"forward"`
	Control  ControlConfig  `yaml:"control"`
	Bots     []BotConfig    `yaml:"bots"`
	Includes []string       `yaml:"includes,omitempty"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	SampleRatio float64 `yaml:"sample_ratio"` // 0 or 1 samples everything
}

// GatewayConfig tunes gateway sessions and their transport.
type GatewayConfig struct {
	DefaultURL     string          `yaml:"default_url"`
	APIBase        string          `yaml:"api_base"`
	Driver         string          `yaml:"driver"` // nhooyr or gorilla
	ReadLimit      int64           `yaml:"read_limit"`
	DialTimeout    time.Duration   `yaml:"dial_timeout"`
	LargeThreshold int             `yaml:"large_threshold"`
	Heartbeat      HeartbeatConfig `yaml:"heartbeat"`
	Retry          RetryConfig     `yaml:"retry"`
	Send           SendConfig      `yaml:"send"`
}

// HeartbeatConfig holds heartbeat liveness settings.
type HeartbeatConfig struct {
	ZombieDetection bool `yaml:"zombie_detection"`
}

// RetryConfig bounds the backoff between failed transport opens.
type RetryConfig struct {
	Initial time.Duration `yaml:"initial"`
	Max     time.Duration `yaml:"max"`
}

// SendConfig limits consumer-initiated sends per session.
type SendConfig struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
	Burst  int           `yaml:"burst"`
}

// ResolverConfig configures gateway URL resolution.
type ResolverConfig struct {
	// Static skips GET /gateway/bot and always dials gateway.default_url.
	Static  bool          `yaml:"static"`
	Timeout time.Duration `yaml:"timeout"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for the resolver.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenFor     time.Duration `yaml:"open_for"`
	Window      time.Duration `yaml:"window"`
}

// StoreConfig configures resume snapshot persistence.
type StoreConfig struct {
	Backend          string        `yaml:"backend"` // sqlite, memory or none
	Path             string        `yaml:"path"`
	SnapshotSchedule string        `yaml:"snapshot_schedule"`
	PruneSchedule    string        `yaml:"prune_schedule"`
	PruneAfter       time.Duration `yaml:"prune_after"`
}

// ForwardConfig selects where gateway events are delivered besides the
// control API.
type ForwardConfig struct {
	NATS NATSConfig `yaml:"nats"`
	// LogEvents registers an in-process consumer per bot owner that logs
	// every event name.
	LogEvents bool `yaml:"log_events"`
}

// NATSConfig holds the NATS forwarder settings. An empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ControlConfig configures the control API server.
type ControlConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Addr      string          `yaml:"addr"`
	Tokens    []TokenConfig   `yaml:"tokens"`
	Origins   []string        `yaml:"origins"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig limits control API HTTP requests per client IP.
type RateLimitConfig struct {
	RequestsPerMin int      `yaml:"requests_per_min"` // 0 disables limiting
	Burst          int      `yaml:"burst"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// TokenConfig is one control API client credential.
type TokenConfig struct {
	Name  string   `yaml:"name"`
	Token string   `yaml:"token"`
	Roles []string `yaml:"roles"`
}

// BotConfig declares a bot that is connected at startup.
type BotConfig struct {
	Name    string   `yaml:"name"`
	Token   string   `yaml:"token"`
	Intents []string `yaml:"intents"`
	Owner   string   `yaml:"owner"` // defaults to Name
	// Manual bots are addressable by name over the control API but are
	// not connected at startup.
	Manual bool `yaml:"manual"`
}

// defaultDataDir returns the persistent data directory under $HOME/.botgate.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".botgate")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Gateway: GatewayConfig{
			DefaultURL:     "wss://gateway.discord.gg",
			Driver:         "nhooyr",
			ReadLimit:      8 << 20,
			DialTimeout:    15 * time.Second,
			LargeThreshold: 50,
			Heartbeat:      HeartbeatConfig{ZombieDetection: true},
			Retry: RetryConfig{
				Initial: time.Second,
				Max:     2 * time.Minute,
			},
			Send: SendConfig{
				Limit:  120,
				Window: 60 * time.Second,
				Burst:  120,
			},
		},
		Resolver: ResolverConfig{
			Timeout: 10 * time.Second,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				OpenFor:     30 * time.Second,
				Window:      60 * time.Second,
			},
		},
		Store: StoreConfig{
			Backend:          "sqlite",
			Path:             filepath.Join(defaultDataDir(), "snapshots.db"),
			SnapshotSchedule: "30s",
			PruneSchedule:    "@hourly",
			PruneAfter:       24 * time.Hour,
		},
		Forward: ForwardConfig{
			NATS: NATSConfig{SubjectPrefix: "botgate.events"},
		},
		Control: ControlConfig{
			Enabled:   false,
			Addr:      "127.0.0.1:7420",
			RateLimit: RateLimitConfig{RequestsPerMin: 120, Burst: 30},
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			normalize(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	// First pass: unmarshal to get the includes list.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		if err := loadIncludes(cfg, absPath, data); err != nil {
			return nil, err
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv(MasterKeyEnv); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func normalize(cfg *Config) {
	for i := range cfg.Bots {
		if cfg.Bots[i].Owner == "" {
			cfg.Bots[i].Owner = cfg.Bots[i].Name
		}
	}
}

// ApplyEnvOverrides maps BOTGATE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BOTGATE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("BOTGATE_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("BOTGATE_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("BOTGATE_TRACER_ENABLED"); v != "" {
		cfg.Tracer.Enabled = v == "true"
	}
	if v := os.Getenv("BOTGATE_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("BOTGATE_GATEWAY_DEFAULT_URL"); v != "" {
		cfg.Gateway.DefaultURL = v
	}
	if v := os.Getenv("BOTGATE_GATEWAY_API_BASE"); v != "" {
		cfg.Gateway.APIBase = v
	}
	if v := os.Getenv("BOTGATE_GATEWAY_DRIVER"); v != "" {
		cfg.Gateway.Driver = v
	}
	if v := os.Getenv("BOTGATE_GATEWAY_ZOMBIE_DETECTION"); v != "" {
		cfg.Gateway.Heartbeat.ZombieDetection = v == "true"
	}
	if v := os.Getenv("BOTGATE_GATEWAY_SEND_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Gateway.Send.Limit = n
		}
	}
	if v := os.Getenv("BOTGATE_RESOLVER_STATIC"); v != "" {
		cfg.Resolver.Static = v == "true"
	}
	if v := os.Getenv("BOTGATE_RESOLVER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Resolver.Timeout = d
		}
	}
	if v := os.Getenv("BOTGATE_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("BOTGATE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("BOTGATE_NATS_URL"); v != "" {
		cfg.Forward.NATS.URL = v
	}
	if v := os.Getenv("BOTGATE_NATS_TOKEN"); v != "" {
		cfg.Forward.NATS.Token = v
	}
	if v := os.Getenv("BOTGATE_CONTROL_ENABLED"); v != "" {
		cfg.Control.Enabled = v == "true"
	}
	if v := os.Getenv("BOTGATE_CONTROL_ADDR"); v != "" {
		cfg.Control.Addr = v
	}
	if v := os.Getenv("BOTGATE_CONTROL_ORIGINS"); v != "" {
		cfg.Control.Origins = splitAndTrim(v, ",")
	}
	if v := os.Getenv("BOTGATE_CONTROL_TOKEN"); v != "" {
		found := false
		for _, t := range cfg.Control.Tokens {
			if t.Token == v {
				found = true
				break
			}
		}
		if !found {
			cfg.Control.Tokens = append(cfg.Control.Tokens, TokenConfig{
				Name:  "env",
				Token: v,
				Roles: []string{"admin"},
			})
		}
	}

	// BOTGATE_BOT_<NAME>_TOKEN fills a bot token left empty in the file.
	for i := range cfg.Bots {
		if cfg.Bots[i].Token != "" {
			continue
		}
		if v := os.Getenv(BotTokenEnv(cfg.Bots[i].Name)); v != "" {
			cfg.Bots[i].Token = v
		}
	}
}

// BotTokenEnv returns the env var consulted for the named bot's token.
func BotTokenEnv(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return "BOTGATE_BOT_" + b.String() + "_TOKEN"
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decryptSecrets finds "enc:..." values in bot, control and NATS tokens
// and decrypts them.
func decryptSecrets(cfg *Config, passphrase string) error {
	decrypt := func(field *string, what string) error {
		if !strings.HasPrefix(*field, "enc:") {
			return nil
		}
		plain, err := DecryptValue(strings.TrimPrefix(*field, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		*field = plain
		return nil
	}

	for i := range cfg.Bots {
		if err := decrypt(&cfg.Bots[i].Token, "bot "+cfg.Bots[i].Name+" token"); err != nil {
			return err
		}
	}
	for i := range cfg.Control.Tokens {
		if err := decrypt(&cfg.Control.Tokens[i].Token, "control token "+cfg.Control.Tokens[i].Name); err != nil {
			return err
		}
	}
	return decrypt(&cfg.Forward.NATS.Token, "nats token")
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file has restrictive permissions.
// Bot tokens live in it, so group or world write access is refused.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}

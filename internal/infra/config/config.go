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

	"maestro-console/internal/domain"
)

// Config is the top-level console configuration.
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Stream  StreamConfig  `yaml:"stream"`
	Session SessionConfig `yaml:"session"`
	Gateway GatewayConfig `yaml:"gateway"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
}

// AgentConfig describes how to reach the remote agent process.
type AgentConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Model          string               `yaml:"model"`
	ConnTimeout    time.Duration        `yaml:"conn_timeout"`
	HeaderTimeout  time.Duration        `yaml:"header_timeout"`
	RequestTimeout time.Duration        `yaml:"request_timeout"` // health, reports, save-logs
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

// CircuitBreakerConfig configures the breaker around command submission.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration `yaml:"timeout"`
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration `yaml:"interval"`
}

// RateLimitConfig bounds how often commands may be submitted.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"` // 0 disables limiting
	Burst     int `yaml:"burst"`
}

// StreamConfig tunes the event decoder.
type StreamConfig struct {
	ReadSize      int      `yaml:"read_size"`
	MaxLineBytes  int      `yaml:"max_line_bytes"`
	EngineMarkers []string `yaml:"engine_markers"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	QuiescenceDelay time.Duration `yaml:"quiescence_delay"`
	IdleEngineLabel string        `yaml:"idle_engine_label"`
}

// GatewayConfig holds observer WebSocket gateway settings.
type GatewayConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Addr      string          `yaml:"addr"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"` // per client IP
}

// AuthConfig holds gateway authentication settings.
type AuthConfig struct {
	Type   string        `yaml:"type"` // "static" or ""
	Tokens []TokenConfig `yaml:"tokens,omitempty"`
}

// TokenConfig holds a single gateway auth token.
type TokenConfig struct {
	Token string   `yaml:"token"`
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			BaseURL:        "http://localhost:8000",
			Model:          "auto",
			ConnTimeout:    10 * time.Second,
			HeaderTimeout:  60 * time.Second,
			RequestTimeout: 15 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures: 3,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
			RateLimit: RateLimitConfig{
				PerMinute: 30,
				Burst:     3,
			},
		},
		Stream: StreamConfig{
			ReadSize:      4096,
			MaxLineBytes:  1 << 20,
			EngineMarkers: []string{"Usando", "Conectando", "Using", "Connecting"},
		},
		Session: SessionConfig{
			QuiescenceDelay: 3 * time.Second,
			IdleEngineLabel: "Groq (llama-3.3-70b)",
		},
		Gateway: GatewayConfig{
			Enabled:   false,
			Addr:      "127.0.0.1:8091",
			RateLimit: RateLimitConfig{PerMinute: 120, Burst: 20},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file is not an error: defaults plus env overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg)
		}
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrConfigLoad, path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", domain.ErrConfigLoad, path, err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrConfigLoad, path, err)
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("MAESTRO_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, domain.WrapOp("decrypt secrets", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps MAESTRO_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAESTRO_AGENT_BASE_URL"); v != "" {
		cfg.Agent.BaseURL = v
	}
	if v := os.Getenv("MAESTRO_AGENT_MODEL"); v != "" {
		cfg.Agent.Model = v
	}
	if v := os.Getenv("MAESTRO_AGENT_HEADER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Agent.HeaderTimeout = d
		}
	}
	if v := os.Getenv("MAESTRO_AGENT_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.RateLimit.PerMinute = n
		}
	}
	if v := os.Getenv("MAESTRO_STREAM_ENGINE_MARKERS"); v != "" {
		cfg.Stream.EngineMarkers = splitAndTrim(v, ",")
	}
	if v := os.Getenv("MAESTRO_SESSION_QUIESCENCE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.QuiescenceDelay = d
		}
	}
	if v := os.Getenv("MAESTRO_SESSION_IDLE_ENGINE_LABEL"); v != "" {
		cfg.Session.IdleEngineLabel = v
	}
	if v := os.Getenv("MAESTRO_GATEWAY_ENABLED"); v == "true" {
		cfg.Gateway.Enabled = true
	}
	if v := os.Getenv("MAESTRO_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("MAESTRO_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("MAESTRO_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("MAESTRO_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("MAESTRO_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func decryptSecrets(cfg *Config, passphrase string) error {
	for i := range cfg.Gateway.Auth.Tokens {
		tok := cfg.Gateway.Auth.Tokens[i].Token
		if strings.HasPrefix(tok, "enc:") {
			decrypted, err := DecryptValue(strings.TrimPrefix(tok, "enc:"), passphrase)
			if err != nil {
				return fmt.Errorf("gateway auth token %s: %w", cfg.Gateway.Auth.Tokens[i].Name, err)
			}
			cfg.Gateway.Auth.Tokens[i].Token = decrypted
		}
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
// The result is hex(salt) + ":" + hex(nonce+ciphertext); prefix it with "enc:" in the file.
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
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue reverses EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("%w: invalid encrypted format", domain.ErrDecryption)
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
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", domain.ErrDecryption)
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrDecryption, err)
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

// validatePermissions rejects config files writable by group or others,
// since they may hold gateway tokens.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}

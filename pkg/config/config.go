// Package config loads key manager configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the ambient HTTP surface.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" env:"SERVER_HOST"`
	Port int    `json:"port" yaml:"port" env:"SERVER_PORT"`
}

// DatabaseConfig controls the Postgres-backed AliasIndex/PolicyStore/WrappedKeyStore.
type DatabaseConfig struct {
	DSN             string `json:"dsn" yaml:"dsn" env:"DATABASE_DSN"`
	Host            string `json:"host" yaml:"host" env:"DATABASE_HOST"`
	Port            int    `json:"port" yaml:"port" env:"DATABASE_PORT"`
	User            string `json:"user" yaml:"user" env:"DATABASE_USER"`
	Password        string `json:"password" yaml:"password" env:"DATABASE_PASSWORD"`
	Name            string `json:"name" yaml:"name" env:"DATABASE_NAME"`
	SSLMode         string `json:"sslmode" yaml:"sslmode" env:"DATABASE_SSLMODE"`
	MaxOpenConns    int    `json:"max_open_conns" yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `json:"conn_max_lifetime" yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// ConnectionString builds a PostgreSQL DSN from host parameters, used when DSN
// itself is left blank.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" env:"LOG_LEVEL"`
	Format     string `json:"format" yaml:"format" env:"LOG_FORMAT"`
	Output     string `json:"output" yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `json:"file_prefix" yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// AuditConfig controls the boundary audit logger (pkg/auditlog).
type AuditConfig struct {
	Output  string        `json:"output" yaml:"output" env:"AUDIT_LOG_OUTPUT"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// TracingConfig carries resource attributes stamped onto every audit event so
// log aggregation can group security events by deployment (region, cluster,
// replica) without the core ever seeing them.
type TracingConfig struct {
	ResourceAttributes map[string]string `json:"resource_attributes" yaml:"resource_attributes"`
	AttributesEnv      string            `json:"-" yaml:"-" env:"AUDIT_RESOURCE_ATTRIBUTES"`
}

func (t *TracingConfig) normalize() {
	if t == nil {
		return
	}
	t.MergeAttributes(t.AttributesEnv)
}

// MergeAttributes parses comma-separated key=value pairs and merges them into
// ResourceAttributes, trimming whitespace and skipping blank keys.
func (t *TracingConfig) MergeAttributes(raw string) {
	if t == nil {
		return
	}
	pairs := parseAttributePairs(raw)
	if len(pairs) == 0 {
		return
	}
	if t.ResourceAttributes == nil {
		t.ResourceAttributes = make(map[string]string, len(pairs))
	}
	for k, v := range pairs {
		if k == "" {
			continue
		}
		t.ResourceAttributes[k] = v
	}
}

func parseAttributePairs(raw string) map[string]string {
	result := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		result[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return result
}

// KeyManagerConfig controls parameters of the resolve/mint state machine itself.
type KeyManagerConfig struct {
	DefaultValidityDays int    `json:"default_validity_days" yaml:"default_validity_days" env:"KEYMANAGER_DEFAULT_VALIDITY_DAYS"`
	ResolveTimeoutMS    int    `json:"resolve_timeout_ms" yaml:"resolve_timeout_ms" env:"KEYMANAGER_RESOLVE_TIMEOUT_MS"`
	RSAKeyBits          int    `json:"rsa_key_bits" yaml:"rsa_key_bits" env:"KEYMANAGER_RSA_KEY_BITS"`
	CertificatePath     string `json:"certificate_path" yaml:"certificate_path" env:"KEYMANAGER_CERTIFICATE_PATH"`
	PrivateKeyPath      string `json:"private_key_path" yaml:"private_key_path" env:"KEYMANAGER_PRIVATE_KEY_PATH"`
	// HSMSimulationSecret switches keypair generation for every mint from
	// crypto/rand to the simulated HSM session (internal/app/hsm), which
	// derives its key stream from this value. Dev/test only; leave empty in
	// production.
	HSMSimulationSecret string `json:"hsm_simulation_secret" yaml:"hsm_simulation_secret" env:"KEYMANAGER_HSM_SIMULATION_SECRET"`
}

// RateLimitConfig controls the ambient HTTP surface's per-client throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int     `json:"burst" yaml:"burst" env:"RATE_LIMIT_BURST"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Database   DatabaseConfig   `json:"database" yaml:"database"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Audit      AuditConfig      `json:"audit" yaml:"audit"`
	KeyManager KeyManagerConfig `json:"key_manager" yaml:"key_manager"`
	RateLimit  RateLimitConfig  `json:"rate_limit" yaml:"rate_limit"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			MigrateOnStart:  true,
			SSLMode:         "disable",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePrefix: "keymanager",
		},
		Audit: AuditConfig{Output: "stdout"},
		KeyManager: KeyManagerConfig{
			DefaultValidityDays: 180,
			ResolveTimeoutMS:    5000,
			RSAKeyBits:          2048,
		},
		RateLimit: RateLimitConfig{RequestsPerSecond: 50, Burst: 100},
	}
}

// Load loads configuration from file (if present) and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode errors when no tagged fields are present in the environment;
		// treat that as "no overrides" so local runs work without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyDatabaseURLOverride(cfg)
	cfg.Audit.Tracing.normalize()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyDatabaseURLOverride lets DATABASE_URL override any file-based DSN, reducing
// setup friction when deploying against a managed Postgres instance.
func applyDatabaseURLOverride(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}
}

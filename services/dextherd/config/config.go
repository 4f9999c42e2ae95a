package config

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML and TOML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalText is used by the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for dextherd.
type Config struct {
	ListenAddress string          `yaml:"listen" toml:"listen"`
	Environment   string          `yaml:"env" toml:"env"`
	ChainID       uint64          `yaml:"chain_id" toml:"chain_id"`
	Vault         string          `yaml:"vault" toml:"vault"`
	Admin         string          `yaml:"admin" toml:"admin"`
	Treasury      string          `yaml:"treasury" toml:"treasury"`
	FeeBps        uint32          `yaml:"fee_bps" toml:"fee_bps"`
	PausedModules []string        `yaml:"paused_modules" toml:"paused_modules"`
	State         StateConfig     `yaml:"state" toml:"state"`
	Receipts      ReceiptsConfig  `yaml:"receipts" toml:"receipts"`
	Auth          AuthConfig      `yaml:"auth" toml:"auth"`
	RateLimit     RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Logging       LoggingConfig   `yaml:"logging" toml:"logging"`
	Telemetry     TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
	Assets        []AssetConfig   `yaml:"assets" toml:"assets"`
}

// StateConfig selects the key-value backend holding nonces, offers and
// reference asset balances.
type StateConfig struct {
	Backend string `yaml:"backend" toml:"backend"`
	Path    string `yaml:"path" toml:"path"`
}

// ReceiptsConfig selects the SQL store for settlement receipts.
type ReceiptsConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// AuthConfig controls bearer token verification. The HMAC secret is never
// read from the file; SecretEnv names the variable holding it.
type AuthConfig struct {
	SecretEnv string   `yaml:"secret_env" toml:"secret_env"`
	Issuer    string   `yaml:"issuer" toml:"issuer"`
	Audience  string   `yaml:"audience" toml:"audience"`
	ClockSkew Duration `yaml:"clock_skew" toml:"clock_skew"`

	Secret string `yaml:"-" toml:"-"`
}

type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute" toml:"requests_per_minute"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}

// TelemetryConfig wires the OTLP exporters. Both signals are off by default.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint" toml:"endpoint"`
	Insecure    bool    `yaml:"insecure" toml:"insecure"`
	Headers     string  `yaml:"headers" toml:"headers"`
	Traces      bool    `yaml:"traces" toml:"traces"`
	Metrics     bool    `yaml:"metrics" toml:"metrics"`
	SampleRatio float64 `yaml:"sample_ratio" toml:"sample_ratio"`
}

// AssetConfig declares a reference asset ledger hosted by the service.
type AssetConfig struct {
	Kind    string `yaml:"kind" toml:"kind"`
	Address string `yaml:"address" toml:"address"`
	Symbol  string `yaml:"symbol" toml:"symbol"`
}

// Load reads configuration from the supplied path. Files ending in .toml are
// decoded as TOML, everything else as YAML.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7080"
	}
	if cfg.Environment == "" {
		cfg.Environment = "dev"
	}
	if cfg.State.Backend == "" {
		cfg.State.Backend = "memory"
	}
	cfg.State.Backend = strings.ToLower(strings.TrimSpace(cfg.State.Backend))
	if cfg.Receipts.Driver == "" {
		cfg.Receipts.Driver = "sqlite"
	}
	cfg.Receipts.Driver = strings.ToLower(strings.TrimSpace(cfg.Receipts.Driver))
	if cfg.Receipts.DSN == "" && cfg.Receipts.Driver == "sqlite" {
		cfg.Receipts.DSN = "file:dextherd-receipts.sqlite"
	}
	if cfg.Auth.SecretEnv == "" {
		cfg.Auth.SecretEnv = "DEXTHER_JWT_SECRET"
	}
	if cfg.Auth.ClockSkew.Duration == 0 {
		cfg.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 50
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4318"
	}
}

func applyEnv(cfg *Config) {
	cfg.Auth.Secret = strings.TrimSpace(os.Getenv(cfg.Auth.SecretEnv))
	if dsn := strings.TrimSpace(os.Getenv("DEXTHER_RECEIPTS_DSN")); dsn != "" {
		cfg.Receipts.DSN = dsn
	}
	if headers := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")); headers != "" && cfg.Telemetry.Headers == "" {
		cfg.Telemetry.Headers = headers
	}
}

func validate(cfg Config) error {
	if cfg.ChainID == 0 {
		return fmt.Errorf("chain_id is required")
	}
	if _, err := parseAddress("vault", cfg.Vault, true); err != nil {
		return err
	}
	if _, err := parseAddress("admin", cfg.Admin, true); err != nil {
		return err
	}
	treasury, err := parseAddress("treasury", cfg.Treasury, false)
	if err != nil {
		return err
	}
	if cfg.FeeBps > 10000 {
		return fmt.Errorf("fee_bps must not exceed 10000")
	}
	if cfg.FeeBps > 0 && treasury == (common.Address{}) {
		return fmt.Errorf("treasury is required when fee_bps is set")
	}
	switch cfg.State.Backend {
	case "memory":
	case "leveldb", "bolt":
		if strings.TrimSpace(cfg.State.Path) == "" {
			return fmt.Errorf("state.path is required for the %s backend", cfg.State.Backend)
		}
	default:
		return fmt.Errorf("unsupported state backend %q", cfg.State.Backend)
	}
	switch cfg.Receipts.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported receipts driver %q", cfg.Receipts.Driver)
	}
	if strings.TrimSpace(cfg.Receipts.DSN) == "" {
		return fmt.Errorf("receipts.dsn is required")
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("%s must be set", cfg.Auth.SecretEnv)
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0,1]")
	}
	seen := make(map[common.Address]struct{}, len(cfg.Assets))
	for i, asset := range cfg.Assets {
		addr, err := parseAddress(fmt.Sprintf("assets[%d].address", i), asset.Address, true)
		if err != nil {
			return err
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("assets[%d]: duplicate address %s", i, addr.Hex())
		}
		seen[addr] = struct{}{}
		if strings.TrimSpace(asset.Kind) == "" {
			return fmt.Errorf("assets[%d].kind is required", i)
		}
	}
	return nil
}

func parseAddress(field, value string, required bool) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if required {
			return common.Address{}, fmt.Errorf("%s is required", field)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, value)
	}
	addr := common.HexToAddress(trimmed)
	if required && addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s must not be the zero address", field)
	}
	return addr, nil
}

// ChainIDBig returns the chain id as used by the typed-data domain.
func (c Config) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(c.ChainID)
}

// VaultAddress returns the verifying contract address.
func (c Config) VaultAddress() common.Address { return common.HexToAddress(c.Vault) }

func (c Config) AdminAddress() common.Address { return common.HexToAddress(c.Admin) }

func (c Config) TreasuryAddress() common.Address {
	if strings.TrimSpace(c.Treasury) == "" {
		return common.Address{}
	}
	return common.HexToAddress(c.Treasury)
}

package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk daemon configuration. Addresses are hex encoded
// 20-byte account identifiers.
type Config struct {
	RPCAddress      string  `toml:"RPCAddress"`
	DataDir         string  `toml:"DataDir"`
	Environment     string  `toml:"Environment"`
	OperatorAddress string  `toml:"OperatorAddress"`
	BossAddress     string  `toml:"BossAddress"`
	RPCToken        string  `toml:"RPCToken"`
	RPCTokenEnv     string  `toml:"RPCTokenEnv"`
	RPCRateLimit    float64 `toml:"RPCRateLimit"`
	RPCRateBurst    int     `toml:"RPCRateBurst"`
	LogLevel        string  `toml:"LogLevel"`
	LogFile         string  `toml:"LogFile"`
	LogMaxSizeMB    int     `toml:"LogMaxSizeMB"`
	LogMaxBackups   int     `toml:"LogMaxBackups"`

	// NavQuoteAsset names the quote side of the offer whose curve serves as
	// the NAV feed for burn adjustments.
	NavQuoteAsset string `toml:"NavQuoteAsset"`

	AdminAddresses           []string `toml:"AdminAddresses"`
	RedemptionAdminAddresses []string `toml:"RedemptionAdminAddresses"`

	Assets []AssetConfig `toml:"Assets"`
}

// AssetConfig registers one asset at startup. Re-registration of an existing
// asset is ignored so restarts are idempotent.
type AssetConfig struct {
	Symbol        string `toml:"Symbol"`
	Decimals      uint8  `toml:"Decimals"`
	MintAuthority bool   `toml:"MintAuthority"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./bondvault-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.RPCRateLimit <= 0 {
		cfg.RPCRateLimit = 25
	}
	if cfg.RPCRateBurst <= 0 {
		cfg.RPCRateBurst = 50
	}
	if strings.TrimSpace(cfg.NavQuoteAsset) == "" {
		cfg.NavQuoteAsset = "USD"
	}
	return cfg, nil
}

// Token resolves the bearer token guarding mutating RPC methods. A literal
// token takes precedence; otherwise the named environment variable is read.
func (c *Config) Token() string {
	if token := strings.TrimSpace(c.RPCToken); token != "" {
		return token
	}
	if env := strings.TrimSpace(c.RPCTokenEnv); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// Operator decodes the configured operator address.
func (c *Config) Operator() ([20]byte, error) {
	return decodeAddress(c.OperatorAddress, "OperatorAddress")
}

// Admins decodes the configured exchange admin addresses.
func (c *Config) Admins() ([][20]byte, error) {
	return decodeAddressList(c.AdminAddresses, "AdminAddresses")
}

// RedemptionAdmins decodes the configured redemption admin addresses.
func (c *Config) RedemptionAdmins() ([][20]byte, error) {
	return decodeAddressList(c.RedemptionAdminAddresses, "RedemptionAdminAddresses")
}

func decodeAddressList(values []string, field string) ([][20]byte, error) {
	out := make([][20]byte, 0, len(values))
	for _, value := range values {
		addr, err := decodeAddress(value, field)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// Boss decodes the configured boss address.
func (c *Config) Boss() ([20]byte, error) {
	return decodeAddress(c.BossAddress, "BossAddress")
}

func decodeAddress(value, field string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return addr, fmt.Errorf("config: %s is not set", field)
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("config: decode %s: %w", field, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("config: %s must be %d bytes, got %d", field, len(addr), len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:   ":8080",
		DataDir:      "./bondvault-data",
		Environment:  "local",
		RPCTokenEnv:  "BONDVAULT_RPC_TOKEN",
		RPCRateLimit: 25,
		RPCRateBurst: 50,
		LogLevel:     "info",
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config captures the daemon configuration loaded from TOML.
type Config struct {
	ListenAddress      string `toml:"ListenAddress"`
	DataDir            string `toml:"DataDir"`
	LogFile            string `toml:"LogFile"`
	Environment        string `toml:"Environment"`
	AdminAddress       string `toml:"AdminAddress"`
	ModuleAddress      string `toml:"ModuleAddress"`
	VaultAddress       string `toml:"VaultAddress"`
	TreasuryAddress    string `toml:"TreasuryAddress"`
	PlatformFeeBps     uint32 `toml:"PlatformFeeBps"`
	ProtocolFeeBps     uint32 `toml:"ProtocolFeeBps"`
	ReferrerFeeBps     uint32 `toml:"ReferrerFeeBps"`
	ExpiryWindowDays   uint32 `toml:"ExpiryWindowDays"`
	MinArbitratorStake string `toml:"MinArbitratorStake"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./clearhold-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.PlatformFeeBps == 0 {
		cfg.PlatformFeeBps = 250
	}
	if cfg.ProtocolFeeBps == 0 {
		cfg.ProtocolFeeBps = 200
	}
	if cfg.ReferrerFeeBps == 0 {
		cfg.ReferrerFeeBps = 50
	}
	if cfg.ExpiryWindowDays == 0 {
		cfg.ExpiryWindowDays = 30
	}
	if strings.TrimSpace(cfg.MinArbitratorStake) == "" {
		cfg.MinArbitratorStake = "1000000000000000000"
	}
}

// Validate rejects configurations with malformed addresses or fee schedules.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if cfg.PlatformFeeBps > 10_000 || cfg.ProtocolFeeBps > 10_000 || cfg.ReferrerFeeBps > 10_000 {
		return fmt.Errorf("config: fee bps out of range")
	}
	for name, addr := range map[string]string{
		"AdminAddress":    cfg.AdminAddress,
		"ModuleAddress":   cfg.ModuleAddress,
		"VaultAddress":    cfg.VaultAddress,
		"TreasuryAddress": cfg.TreasuryAddress,
	} {
		if strings.TrimSpace(addr) == "" {
			continue
		}
		if _, err := ParseAddress(addr); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if _, ok := new(big.Int).SetString(cfg.MinArbitratorStake, 10); !ok {
		return fmt.Errorf("config: MinArbitratorStake is not a decimal integer")
	}
	return nil
}

// ParseAddress decodes a 20-byte hex address with optional 0x prefix.
func ParseAddress(s string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid hex address: %w", err)
	}
	if len(raw) != 20 {
		return out, fmt.Errorf("address must be 20 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// MinStake returns the configured minimum arbitrator stake.
func (c *Config) MinStake() *big.Int {
	stake, ok := new(big.Int).SetString(c.MinArbitratorStake, 10)
	if !ok {
		return big.NewInt(0)
	}
	return stake
}

package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// GenesisAccount seeds a participant balance when the data directory is
// created for the first time.
type GenesisAccount struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

type Config struct {
	RPCAddress            string           `toml:"RPCAddress"`
	DataDir               string           `toml:"DataDir"`
	LogFile               string           `toml:"LogFile"`
	Environment           string           `toml:"Environment"`
	VaultAddress          string           `toml:"VaultAddress"`
	Validators            []string         `toml:"Validators"`
	ConfirmationThreshold uint8            `toml:"ConfirmationThreshold"`
	RewardAmount          string           `toml:"RewardAmount"`
	Genesis               []GenesisAccount `toml:"Genesis"`
}

const (
	defaultRPCAddress   = "127.0.0.1:8645"
	defaultDataDir      = "./edulend-data"
	defaultThreshold    = 3
	defaultRewardAmount = "1000000000000000000"
)

// defaultVaultAddress is the custody address pledged value is held at when
// the operator does not configure one ("loan" in the trailing bytes).
const defaultVaultAddress = "000000000000000000000000000000006c6f616e"

// Load reads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.VaultAddress) == "" {
		c.VaultAddress = defaultVaultAddress
	}
	if c.ConfirmationThreshold == 0 {
		c.ConfirmationThreshold = defaultThreshold
	}
	if strings.TrimSpace(c.RewardAmount) == "" {
		c.RewardAmount = defaultRewardAmount
	}
	if c.Validators == nil {
		c.Validators = []string{}
	}
}

// Validate checks the committee configuration and address formats.
func (c *Config) Validate() error {
	if _, err := DecodeAddress(c.VaultAddress); err != nil {
		return fmt.Errorf("config: invalid VaultAddress: %w", err)
	}
	seen := make(map[string]bool, len(c.Validators))
	for _, v := range c.Validators {
		if _, err := DecodeAddress(v); err != nil {
			return fmt.Errorf("config: invalid validator %q: %w", v, err)
		}
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(v), "0x"))
		if seen[normalized] {
			return fmt.Errorf("config: duplicate validator %q", v)
		}
		seen[normalized] = true
	}
	// An empty committee is a valid bootstrap config; the threshold bound
	// only applies once validators are configured.
	if len(c.Validators) > 0 && int(c.ConfirmationThreshold) > len(c.Validators) {
		return fmt.Errorf("config: ConfirmationThreshold %d exceeds committee size %d",
			c.ConfirmationThreshold, len(c.Validators))
	}
	for _, g := range c.Genesis {
		if _, err := DecodeAddress(g.Address); err != nil {
			return fmt.Errorf("config: invalid genesis address %q: %w", g.Address, err)
		}
	}
	return nil
}

// ValidatorAddresses decodes the configured committee.
func (c *Config) ValidatorAddresses() ([][20]byte, error) {
	out := make([][20]byte, 0, len(c.Validators))
	for _, v := range c.Validators {
		addr, err := DecodeAddress(v)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// DecodeAddress parses a 20-byte hex address with optional 0x prefix.
func DecodeAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, err
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("address must be 20 bytes, got %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

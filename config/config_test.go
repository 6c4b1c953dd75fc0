package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != defaultRPCAddress {
		t.Fatalf("expected default RPC address, got %q", cfg.RPCAddress)
	}
	if cfg.ConfirmationThreshold != defaultThreshold {
		t.Fatalf("expected default threshold, got %d", cfg.ConfirmationThreshold)
	}
	if cfg.VaultAddress != defaultVaultAddress {
		t.Fatalf("expected default vault address, got %q", cfg.VaultAddress)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}

	// The generated file must load cleanly on the next start.
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.RPCAddress != cfg.RPCAddress {
		t.Fatalf("reload mismatch: %q vs %q", reloaded.RPCAddress, cfg.RPCAddress)
	}
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
RPCAddress = "0.0.0.0:9000"
Validators = ["0x0101010101010101010101010101010101010101"]
ConfirmationThreshold = 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "0.0.0.0:9000" {
		t.Fatalf("explicit value overridden: %q", cfg.RPCAddress)
	}
	if cfg.DataDir != defaultDataDir || cfg.RewardAmount != defaultRewardAmount {
		t.Fatalf("missing fields must fall back to defaults: %+v", cfg)
	}
	validators, err := cfg.ValidatorAddresses()
	if err != nil {
		t.Fatalf("decode validators: %v", err)
	}
	if len(validators) != 1 || validators[0][0] != 0x01 {
		t.Fatalf("unexpected committee %v", validators)
	}
}

func TestValidateRejectsBadCommittee(t *testing.T) {
	base := func() *Config {
		cfg := &Config{
			Validators: []string{
				"0x0101010101010101010101010101010101010101",
				"0x0202020202020202020202020202020202020202",
			},
			ConfirmationThreshold: 2,
		}
		cfg.applyDefaults()
		return cfg
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg = base()
	cfg.Validators = append(cfg.Validators, "0x0101010101010101010101010101010101010101")
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected duplicate validator rejection")
	}

	cfg = base()
	cfg.Validators[0] = "not-an-address"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected malformed validator rejection")
	}

	cfg = base()
	cfg.ConfirmationThreshold = 3
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected threshold beyond committee size rejection")
	}

	cfg = base()
	cfg.VaultAddress = "0xdeadbeef"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected short vault address rejection")
	}

	cfg = base()
	cfg.Genesis = []GenesisAccount{{Address: "bogus", Balance: "10"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected bad genesis address rejection")
	}
}

func TestDecodeAddress(t *testing.T) {
	with, err := DecodeAddress("0x0101010101010101010101010101010101010101")
	if err != nil {
		t.Fatalf("decode with prefix: %v", err)
	}
	without, err := DecodeAddress("0101010101010101010101010101010101010101")
	if err != nil {
		t.Fatalf("decode without prefix: %v", err)
	}
	if with != without {
		t.Fatalf("prefix must not change the decoded address")
	}
	if _, err := DecodeAddress("0x01"); err == nil {
		t.Fatalf("expected short address rejection")
	}
	if _, err := DecodeAddress("zz"); err == nil {
		t.Fatalf("expected non-hex rejection")
	}
}

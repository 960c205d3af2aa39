package node

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ton-community/mintless-jetton/cell"
	"github.com/ton-community/mintless-jetton/jetton"
)

const testRoot = "9b0c42d1e5f3a7c8d2b4e6f8a0c1d3e5f7092b4d6e8f0a1c3d5e7f9a0b2c4d6e"

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/mintless"
	cfg.Minter = owner(0xe0).String()
	cfg.MerkleRoot = testRoot
	return cfg
}

func TestValidateConfigOK(t *testing.T) {
	if err := ValidateConfig(validConfig()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestDefaultConfigNeedsJettonIdentity(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err == nil {
		t.Fatalf("default config has no minter and must not validate")
	}
}

func TestValidateConfigRejects(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"empty data_dir":   func(c *Config) { c.DataDir = " " },
		"log level":        func(c *Config) { c.LogLevel = "trace" },
		"hash backend":     func(c *Config) { c.HashBackend = "wolfcrypt" },
		"workchain":        func(c *Config) { c.Workchain = 5 },
		"minter":           func(c *Config) { c.Minter = "0:abcd" },
		"merkle root":      func(c *Config) { c.MerkleRoot = testRoot[:62] },
		"wallet code":      func(c *Config) { c.WalletCode = "b5ee" },
		"salt limit":       func(c *Config) { c.SaltSearchLimit = 0 },
		"salt limit above": func(c *Config) { c.SaltSearchLimit = jetton.MaxSaltSearchLimit + 1 },
		"gas price":        func(c *Config) { c.Fees.GasPrice = 0 },
	} {
		cfg := validConfig()
		mutate(&cfg)
		if err := ValidateConfig(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestConfigWalletClass(t *testing.T) {
	code, err := cell.BeginCell().StoreUint(0xfeed, 16).EndCell()
	if err != nil {
		t.Fatal(err)
	}
	cfg := validConfig()
	cfg.WalletCode, err = cell.ToBOCHex(code)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Workchain = -1
	class, err := cfg.WalletClass()
	if err != nil {
		t.Fatalf("WalletClass: %v", err)
	}
	root := class.MerkleRoot()
	if !class.Code().Equal(code) || class.Workchain() != -1 || class.Minter() != owner(0xe0) ||
		hex.EncodeToString(root[:]) != testRoot {
		t.Fatalf("class does not reflect config")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.json")
	doc := `{"data_dir":"` + dir + `","minter":"` + owner(0xe0).String() + `","merkle_root":"` + testRoot + `","fees":{"gas_price":1000,"send_transfer_gas":1,"receive_transfer_gas":1}}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DataDir != dir || cfg.LogLevel != "info" || cfg.Fees.GasPrice != 1000 || cfg.SaltSearchLimit != jetton.DefaultSaltSearchLimit {
		t.Fatalf("config: %+v", cfg)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"peers":[]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := LoadConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger("warn", &buf)
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hidden")
	log.Warn("shown", "code", "ERR_BALANCE")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"code":"ERR_BALANCE"`) {
		t.Fatalf("log output %q", out)
	}
	if _, err := NewLogger("verbose", &buf); err == nil {
		t.Fatalf("expected error")
	}
}

func TestReadConfigFileRejectsNonFiles(t *testing.T) {
	dir := t.TempDir()
	for _, path := range []string{dir + string(filepath.Separator), filepath.Join(dir, ".."), dir} {
		if _, err := readConfigFile(path); err == nil {
			t.Fatalf("%q: expected error", path)
		}
	}
	big := filepath.Join(dir, "big.json")
	if err := os.WriteFile(big, make([]byte, maxConfigBytes+1), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readConfigFile(big); err == nil {
		t.Fatalf("expected size error")
	}
}

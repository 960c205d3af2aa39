package node

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ton-community/mintless-jetton/cell"
	"github.com/ton-community/mintless-jetton/crypto"
	"github.com/ton-community/mintless-jetton/jetton"
)

type Config struct {
	DataDir         string             `json:"data_dir"`
	LogLevel        string             `json:"log_level"`
	HashBackend     string             `json:"hash_backend"`
	Workchain       int8               `json:"workchain"`
	Minter          string             `json:"minter"`
	MerkleRoot      string             `json:"merkle_root"`
	WalletCode      string             `json:"wallet_code,omitempty"`
	SaltSearchLimit int                `json:"salt_search_limit"`
	Fees            jetton.FeeSchedule `json:"fees"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".mintless-jetton"
	}
	return filepath.Join(home, ".mintless-jetton")
}

// DefaultConfig has no minter and no merkle root; both identify the jetton
// and must be supplied by the operator.
func DefaultConfig() Config {
	return Config{
		DataDir:         DefaultDataDir(),
		LogLevel:        "info",
		HashBackend:     crypto.BackendSIMD,
		Workchain:       0,
		SaltSearchLimit: jetton.DefaultSaltSearchLimit,
		Fees:            jetton.DefaultFeeSchedule(),
	}
}

// LoadConfig overlays the JSON file at path on DefaultConfig. Unknown keys
// are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := readConfigFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if _, err := crypto.LoadProvider(cfg.HashBackend); err != nil {
		return fmt.Errorf("invalid hash_backend: %w", err)
	}
	if cfg.Workchain != 0 && cfg.Workchain != -1 {
		return fmt.Errorf("workchain must be 0 or -1, got %d", cfg.Workchain)
	}
	if _, err := cell.ParseAddress(cfg.Minter); err != nil {
		return fmt.Errorf("invalid minter: %w", err)
	}
	if _, err := parseRoot(cfg.MerkleRoot); err != nil {
		return fmt.Errorf("invalid merkle_root: %w", err)
	}
	if cfg.WalletCode != "" {
		if _, err := cell.FromBOCHex(cfg.WalletCode); err != nil {
			return fmt.Errorf("invalid wallet_code: %w", err)
		}
	}
	if cfg.SaltSearchLimit <= 0 {
		return errors.New("salt_search_limit must be > 0")
	}
	if cfg.SaltSearchLimit > jetton.MaxSaltSearchLimit {
		return fmt.Errorf("salt_search_limit must be <= %d", jetton.MaxSaltSearchLimit)
	}
	if err := cfg.Fees.Validate(); err != nil {
		return err
	}
	return nil
}

// WalletClass builds the wallet class the configuration describes.
func (cfg Config) WalletClass() (*jetton.WalletClass, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	minter, _ := cell.ParseAddress(cfg.Minter)
	root, _ := parseRoot(cfg.MerkleRoot)
	code := jetton.DefaultWalletCode()
	if cfg.WalletCode != "" {
		code, _ = cell.FromBOCHex(cfg.WalletCode)
	}
	return jetton.NewWalletClass(jetton.ClassParams{
		Code:            code,
		Minter:          minter,
		MerkleRoot:      root,
		Workchain:       cfg.Workchain,
		SaltSearchLimit: cfg.SaltSearchLimit,
		Fees:            cfg.Fees,
	})
}

func parseRoot(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

const maxConfigBytes = 1 << 20

// readConfigFile reads a plain file through an os.DirFS rooted at its
// directory so the name cannot escape it.
func readConfigFile(path string) ([]byte, error) {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if name == "" || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid config file name: %q", name)
	}
	fsys := os.DirFS(dir)
	st, err := fs.Stat(fsys, name)
	if err != nil {
		return nil, err
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", path)
	}
	if st.Size() > maxConfigBytes {
		return nil, fmt.Errorf("%s: %d bytes exceeds %d", path, st.Size(), maxConfigBytes)
	}
	return fs.ReadFile(fsys, name)
}

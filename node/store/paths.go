package store

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ton-community/mintless-jetton/cell"
)

// JettonDir returns the on-disk directory holding the wallets of one jetton:
//
//	datadir/jettons/<minter_key_hex>/
func JettonDir(datadir string, minter cell.Address) string {
	return filepath.Join(datadir, "jettons", hex.EncodeToString(accountKey(minter)))
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

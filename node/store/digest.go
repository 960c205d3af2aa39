package store

import (
	"encoding/binary"

	"github.com/ton-community/mintless-jetton/cell"
	"github.com/ton-community/mintless-jetton/crypto"
)

const stateDigestDST = "mintless-jetton/state-digest/v1/"

// StateDigest hashes every stored account in key order:
//
//	SHA3-256(DST || count u64le || (key 33 || code_hash 32 || data_hash 32)*)
//
// Two stores holding the same wallets produce the same digest regardless of
// the order the messages were applied in.
func (d *DB) StateDigest(p crypto.Provider) ([32]byte, error) {
	buf := []byte(stateDigestDST)
	var count uint64
	body := make([]byte, 0, 1024)
	err := d.View(func(tx *Tx) error {
		return tx.ForEachAccount(func(addr cell.Address, a Account) error {
			count++
			body = append(body, accountKey(addr)...)
			ch := a.Code.Hash(cell.MaxLevel)
			dh := a.Data.Hash(cell.MaxLevel)
			body = append(body, ch[:]...)
			body = append(body, dh[:]...)
			return nil
		})
	})
	if err != nil {
		return [32]byte{}, err
	}
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], count)
	buf = append(buf, n[:]...)
	buf = append(buf, body...)
	return p.SHA3_256(buf), nil
}

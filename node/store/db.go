package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ton-community/mintless-jetton/cell"
)

var (
	bucketAccounts = []byte("accounts_by_address")
	bucketTxs      = []byte("txs_by_seq")
)

// Account is a deployed contract: its code and its persistent data cell.
type Account struct {
	Code *cell.Cell
	Data *cell.Cell
}

type DB struct {
	dir      string
	db       *bolt.DB
	manifest *Manifest
}

func Open(datadir string, minter cell.Address) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("datadir required")
	}

	dir := JettonDir(datadir, minter)
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	if err := ensureDir(filepath.Join(dir, "db")); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "db", "kv.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	d := &DB{dir: dir, db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketAccounts, bucketTxs} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	m, err := readManifest(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil // fresh store; caller writes the manifest.
		}
		_ = bdb.Close()
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if m.SchemaVersion > SchemaVersionV1 {
		_ = bdb.Close()
		return nil, fmt.Errorf("manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
	}
	d.manifest = m
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Dir() string { return d.dir }

func (d *DB) Manifest() *Manifest {
	if d == nil {
		return nil
	}
	return d.manifest
}

func (d *DB) SetManifest(m *Manifest) error {
	if d == nil {
		return fmt.Errorf("db: nil")
	}
	if err := writeManifestAtomic(d.dir, m); err != nil {
		return err
	}
	d.manifest = m
	return nil
}

// Tx is one bbolt transaction over the account and transaction buckets.
type Tx struct {
	tx *bolt.Tx
}

// Update runs fn in a single read-write transaction. Nothing fn wrote is
// kept when it returns an error.
func (d *DB) Update(fn func(tx *Tx) error) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return fn(&Tx{tx: tx})
	})
}

func (d *DB) View(fn func(tx *Tx) error) error {
	return d.db.View(func(tx *bolt.Tx) error {
		return fn(&Tx{tx: tx})
	})
}

func (t *Tx) GetAccount(addr cell.Address) (Account, bool, error) {
	v := t.tx.Bucket(bucketAccounts).Get(accountKey(addr))
	if v == nil {
		return Account{}, false, nil
	}
	a, err := decodeAccount(v)
	if err != nil {
		return Account{}, false, fmt.Errorf("account %s: %w", addr, err)
	}
	return a, true, nil
}

func (t *Tx) PutAccount(addr cell.Address, a Account) error {
	val, err := encodeAccount(a)
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketAccounts).Put(accountKey(addr), val)
}

// AppendTx assigns the next sequence number to r and stores it.
func (t *Tx) AppendTx(r TxRecord) (uint64, error) {
	b := t.tx.Bucket(bucketTxs)
	seq, err := b.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("tx sequence: %w", err)
	}
	r.Seq = seq
	val, err := encodeTxRecord(r)
	if err != nil {
		return 0, err
	}
	return seq, b.Put(seqKey(seq), val)
}

func (t *Tx) ForEachAccount(fn func(addr cell.Address, a Account) error) error {
	return t.tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
		addr, err := decodeAccountKey(k)
		if err != nil {
			return err
		}
		a, err := decodeAccount(v)
		if err != nil {
			return fmt.Errorf("account %s: %w", addr, err)
		}
		return fn(addr, a)
	})
}

func (d *DB) GetAccount(addr cell.Address) (Account, bool, error) {
	var (
		out Account
		ok  bool
	)
	err := d.View(func(tx *Tx) error {
		var err error
		out, ok, err = tx.GetAccount(addr)
		return err
	})
	return out, ok, err
}

func (d *DB) GetTx(seq uint64) (*TxRecord, bool, error) {
	var out *TxRecord
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTxs).Get(seqKey(seq))
		if v == nil {
			return nil
		}
		r, err := decodeTxRecord(v)
		if err != nil {
			return err
		}
		r.Seq = seq
		out = r
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

// LastSeq returns the sequence number of the newest transaction record.
func (d *DB) LastSeq() (uint64, error) {
	var seq uint64
	err := d.db.View(func(tx *bolt.Tx) error {
		seq = tx.Bucket(bucketTxs).Sequence()
		return nil
	})
	return seq, err
}

func seqKey(seq uint64) []byte {
	// big-endian so bbolt iterates records in order
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

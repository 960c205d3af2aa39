package store

import (
	"testing"

	"github.com/ton-community/mintless-jetton/cell"
	"github.com/ton-community/mintless-jetton/crypto"
)

func testAccount(t *testing.T, v uint64) Account {
	t.Helper()
	code, err := cell.BeginCell().StoreUint(0xc0de, 16).EndCell()
	if err != nil {
		t.Fatal(err)
	}
	data, err := cell.BeginCell().StoreUint(v, 64).StoreRef(code).EndCell()
	if err != nil {
		t.Fatal(err)
	}
	return Account{Code: code, Data: data}
}

func addr(b byte) cell.Address {
	var a cell.Address
	a.Hash[0] = b
	a.Hash[31] = b
	return a
}

func openTest(t *testing.T, datadir string) *DB {
	t.Helper()
	db, err := Open(datadir, addr(0xee))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDB_PutGetAccount(t *testing.T) {
	db := openTest(t, t.TempDir())
	if db.Manifest() != nil {
		t.Fatalf("fresh store must have no manifest")
	}

	a := testAccount(t, 7)
	if err := db.Update(func(tx *Tx) error { return tx.PutAccount(addr(1), a) }); err != nil {
		t.Fatalf("PutAccount: %v", err)
	}
	got, ok, err := db.GetAccount(addr(1))
	if err != nil || !ok {
		t.Fatalf("GetAccount: ok=%v err=%v", ok, err)
	}
	if !got.Code.Equal(a.Code) || !got.Data.Equal(a.Data) {
		t.Fatalf("account round trip mismatch")
	}
	if _, ok, err := db.GetAccount(addr(2)); err != nil || ok {
		t.Fatalf("unexpected account: ok=%v err=%v", ok, err)
	}
}

func TestDB_UpdateRollsBackOnError(t *testing.T) {
	db := openTest(t, t.TempDir())
	err := db.Update(func(tx *Tx) error {
		if err := tx.PutAccount(addr(1), testAccount(t, 1)); err != nil {
			return err
		}
		if _, err := tx.AppendTx(TxRecord{Now: 1}); err != nil {
			return err
		}
		return errTest
	})
	if err != errTest {
		t.Fatalf("expected errTest, got %v", err)
	}
	if _, ok, _ := db.GetAccount(addr(1)); ok {
		t.Fatalf("account survived a failed transaction")
	}
	if seq, _ := db.LastSeq(); seq != 0 {
		t.Fatalf("tx log advanced to %d", seq)
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("abort")

func TestDB_TxLog(t *testing.T) {
	db := openTest(t, t.TempDir())
	rec := TxRecord{
		Now:      1000,
		Src:      addr(1),
		Dst:      cell.Address{Workchain: -1, Hash: addr(2).Hash},
		Op:       0x0f8a7ea5,
		HasOp:    true,
		Deployed: true,
		OutCount: 2,
		Code:     "ERR_BALANCE",
	}
	for i := 0; i < 3; i++ {
		var seq uint64
		err := db.Update(func(tx *Tx) error {
			var err error
			seq, err = tx.AppendTx(rec)
			return err
		})
		if err != nil {
			t.Fatalf("AppendTx: %v", err)
		}
		if seq != uint64(i+1) {
			t.Fatalf("seq=%d want %d", seq, i+1)
		}
	}
	got, ok, err := db.GetTx(2)
	if err != nil || !ok {
		t.Fatalf("GetTx: ok=%v err=%v", ok, err)
	}
	rec.Seq = 2
	if *got != rec {
		t.Fatalf("got %+v want %+v", *got, rec)
	}
	if _, ok, _ := db.GetTx(4); ok {
		t.Fatalf("unexpected record 4")
	}
}

func TestDecodeTxRecordRejectsTruncated(t *testing.T) {
	b, err := encodeTxRecord(TxRecord{Code: "X"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := decodeTxRecord(b[:len(b)-1]); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := decodeAccount([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected account decode error")
	}
}

func TestStateDigestIgnoresWriteOrder(t *testing.T) {
	p := crypto.StdProvider{}
	a, b := openTest(t, t.TempDir()), openTest(t, t.TempDir())
	empty, err := a.StateDigest(p)
	if err != nil {
		t.Fatal(err)
	}

	for i := byte(1); i <= 5; i++ {
		i := i
		if err := a.Update(func(tx *Tx) error { return tx.PutAccount(addr(i), testAccount(t, uint64(i))) }); err != nil {
			t.Fatal(err)
		}
	}
	for i := byte(5); i >= 1; i-- {
		i := i
		if err := b.Update(func(tx *Tx) error { return tx.PutAccount(addr(i), testAccount(t, uint64(i))) }); err != nil {
			t.Fatal(err)
		}
	}
	da, err := a.StateDigest(p)
	if err != nil {
		t.Fatal(err)
	}
	db, err := b.StateDigest(crypto.SIMDProvider{})
	if err != nil {
		t.Fatal(err)
	}
	if da != db || da == empty {
		t.Fatalf("digests: %x %x", da, db)
	}

	if err := b.Update(func(tx *Tx) error { return tx.PutAccount(addr(3), testAccount(t, 99)) }); err != nil {
		t.Fatal(err)
	}
	if d, _ := b.StateDigest(p); d == da {
		t.Fatalf("digest did not change with account data")
	}
}

func TestManifestPersists(t *testing.T) {
	dir := t.TempDir()
	db := openTest(t, dir)
	m := &Manifest{SchemaVersion: SchemaVersionV1, Minter: addr(0xee).String(), Workchain: 0, LastSeq: 4}
	if err := db.SetManifest(m); err != nil {
		t.Fatalf("SetManifest: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
	again := openTest(t, dir)
	if got := again.Manifest(); got == nil || *got != *m {
		t.Fatalf("manifest after reopen: %+v", got)
	}
	_ = again.Close()

	m.SchemaVersion = SchemaVersionV1 + 1
	if err := writeManifestAtomic(JettonDir(dir, addr(0xee)), m); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir, addr(0xee)); err == nil {
		t.Fatalf("expected schema version error")
	}
}

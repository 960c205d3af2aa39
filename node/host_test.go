package node

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"github.com/ton-community/mintless-jetton/cell"
	"github.com/ton-community/mintless-jetton/hashmap"
	"github.com/ton-community/mintless-jetton/jetton"
	"github.com/ton-community/mintless-jetton/node/store"
)

const (
	airdropStart = 1000
	airdropEnd   = 2000
)

var oneTON = uint256.NewInt(1_000_000_000)

func owner(seed byte) cell.Address {
	var a cell.Address
	for i := range a.Hash {
		a.Hash[i] = seed + byte(i)
	}
	return a
}

type hostFixture struct {
	host  *Host
	class *jetton.WalletClass
	dict  *cell.Cell
	db    *store.DB
	logs  *bytes.Buffer
}

func newHostFixture(t *testing.T, datadir string, amounts map[cell.Address]uint64, now uint64) hostFixture {
	t.Helper()
	table := make(map[[32]byte]jetton.AirdropRecord, len(amounts))
	for a, v := range amounts {
		table[a.Hash] = jetton.AirdropRecord{Amount: uint256.NewInt(v), StartFrom: airdropStart, ExpireAt: airdropEnd}
	}
	dict, err := jetton.BuildAirdrop(table)
	if err != nil {
		t.Fatalf("BuildAirdrop: %v", err)
	}
	class, err := jetton.NewWalletClass(jetton.ClassParams{
		Code:       jetton.DefaultWalletCode(),
		Minter:     owner(0xe0),
		MerkleRoot: dict.Hash(0),
		Fees:       jetton.DefaultFeeSchedule(),
	})
	if err != nil {
		t.Fatalf("NewWalletClass: %v", err)
	}
	db, err := store.Open(datadir, class.Minter())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	logs := &bytes.Buffer{}
	logger, err := NewLogger("debug", logs)
	if err != nil {
		t.Fatal(err)
	}
	h, err := NewHost(class, db, HostConfig{Clock: FixedClock(now), Logger: logger})
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	return hostFixture{host: h, class: class, dict: dict, db: db, logs: logs}
}

// claimTransfer is the owner's transfer that deploys its wallet and claims.
func (f hostFixture) claimTransfer(t *testing.T, from, to cell.Address, amount uint64) jetton.Message {
	t.Helper()
	si, _, err := f.class.StateInitAndSalt(from)
	if err != nil {
		t.Fatal(err)
	}
	self, err := si.Address(f.class.Workchain())
	if err != nil {
		t.Fatal(err)
	}
	proof, err := hashmap.Prove(f.dict, from.Hash)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	custom, err := jetton.ClaimPayload{Proof: proof}.ToCell()
	if err != nil {
		t.Fatal(err)
	}
	resp := from
	body, err := jetton.Transfer{
		QueryID:             1,
		Amount:              uint256.NewInt(amount),
		Destination:         to,
		ResponseDestination: &resp,
		CustomPayload:       custom,
		ForwardTonAmount:    uint256.NewInt(0),
	}.ToCell()
	if err != nil {
		t.Fatal(err)
	}
	return jetton.Message{Src: from, Dst: self, Value: oneTON, Bounce: true, Body: body, StateInit: &si}
}

func drain(t *testing.T, h *Host) []Receipt {
	t.Helper()
	rs, err := h.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	return rs
}

func balance(t *testing.T, h *Host, a cell.Address) uint64 {
	t.Helper()
	b, err := h.Balance(a)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	return b.Uint64()
}

func TestHostClaimAndTransferEndToEnd(t *testing.T) {
	a, b := owner(0x10), owner(0x20)
	f := newHostFixture(t, t.TempDir(), map[cell.Address]uint64{a: 100, owner(0x30): 7}, airdropStart)

	if err := f.host.Send(f.claimTransfer(t, a, b, 1)); err != nil {
		t.Fatal(err)
	}
	rs := drain(t, f.host)
	if len(rs) != 3 {
		t.Fatalf("expected claim, internal transfer and excesses, got %d receipts", len(rs))
	}
	for i, r := range rs {
		if r.Err != nil {
			t.Fatalf("receipt %d: %v", i, r.Err)
		}
	}
	if !rs[0].Deployed || rs[0].Claimed == nil || !rs[1].Deployed || !rs[2].External || rs[2].Msg.Dst != a {
		t.Fatalf("unexpected receipts: %+v", rs)
	}

	if got := balance(t, f.host, a); got != 99 {
		t.Fatalf("owner A balance %d, want 99", got)
	}
	if got := balance(t, f.host, b); got != 1 {
		t.Fatalf("owner B balance %d, want 1", got)
	}
	if st, err := f.host.ClaimState(a); err != nil || st != jetton.Claimed {
		t.Fatalf("owner A claim state %s err=%v", st, err)
	}
	if st, _ := f.host.ClaimState(b); st != jetton.Unclaimed {
		t.Fatalf("owner B must stay unclaimed")
	}
	if !strings.Contains(f.logs.String(), "airdrop claimed") {
		t.Fatalf("claim not logged")
	}

	m := f.db.Manifest()
	digest, err := f.host.StateDigest()
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.LastSeq != 3 || m.StateDigestHex == "" {
		t.Fatalf("manifest not checkpointed: %+v", m)
	}

	// byte-identical replay is rejected and bounced, state untouched
	if err := f.host.Send(f.claimTransfer(t, a, b, 1)); err != nil {
		t.Fatal(err)
	}
	rs = drain(t, f.host)
	if len(rs) != 2 || rs[0].Code != jetton.ERR_AIRDROP_ALREADY_CLAIMED || !rs[1].Msg.Bounced || !rs[1].External {
		t.Fatalf("replay receipts: %+v", rs)
	}
	if again, _ := f.host.StateDigest(); again != digest {
		t.Fatalf("replay changed state")
	}
	rec, ok, err := f.db.GetTx(rs[0].Seq)
	if err != nil || !ok || rec.Code != string(jetton.ERR_AIRDROP_ALREADY_CLAIMED) || rec.Deployed {
		t.Fatalf("tx log entry: %+v ok=%v err=%v", rec, ok, err)
	}
}

func TestHostRejectsStateInitForOtherAddress(t *testing.T) {
	a := owner(0x10)
	f := newHostFixture(t, t.TempDir(), map[cell.Address]uint64{a: 100}, airdropStart)
	msg := f.claimTransfer(t, a, owner(0x20), 1)
	msg.Dst.Hash[0] ^= 0xff
	msg.Bounce = false
	if err := f.host.Send(msg); err != nil {
		t.Fatal(err)
	}
	rs := drain(t, f.host)
	if len(rs) != 1 || rs[0].Err == nil || rs[0].Deployed || len(rs[0].Out) != 0 {
		t.Fatalf("receipts: %+v", rs)
	}
	if _, ok, _ := f.db.GetAccount(msg.Dst); ok {
		t.Fatalf("mismatched state init deployed an account")
	}
}

func TestHostOneAllocationPerOwnerHash(t *testing.T) {
	base, sink := owner(0x10), owner(0x40)
	master := base
	master.Workchain = -1
	f := newHostFixture(t, t.TempDir(), map[cell.Address]uint64{base: 100}, airdropStart)

	for _, from := range []cell.Address{base, master} {
		if err := f.host.Send(f.claimTransfer(t, from, sink, 1)); err != nil {
			t.Fatal(err)
		}
	}
	rs := drain(t, f.host)
	var rejected []Receipt
	for _, r := range rs {
		if r.Err != nil {
			rejected = append(rejected, r)
		}
	}
	if len(rejected) != 1 || rejected[0].Msg.Src != master || rejected[0].Code != jetton.ERR_WRONG_WORKCHAIN {
		t.Fatalf("rejections: %+v", rejected)
	}
	if got := balance(t, f.host, base); got != 99 {
		t.Fatalf("basechain owner balance %d, want 99", got)
	}
	if got := balance(t, f.host, sink); got != 1 {
		t.Fatalf("sink balance %d, want 1", got)
	}
	if _, ok, _ := f.db.GetAccount(rejected[0].Msg.Dst); ok {
		t.Fatalf("masterchain owner's wallet was deployed")
	}
}

func TestHostRejectsForeignRootWallet(t *testing.T) {
	a := owner(0x10)
	f := newHostFixture(t, t.TempDir(), map[cell.Address]uint64{a: 100}, airdropStart)
	msg := f.claimTransfer(t, a, owner(0x20), 1)

	d := f.class.InitialData(a, 0)
	d.MerkleRoot = [32]byte{0xaa}
	data, err := d.ToCell()
	if err != nil {
		t.Fatal(err)
	}
	si := jetton.StateInit{Code: f.class.Code(), Data: data}
	if msg.Dst, err = si.Address(f.class.Workchain()); err != nil {
		t.Fatal(err)
	}
	msg.StateInit = &si
	msg.Bounce = false
	if err := f.host.Send(msg); err != nil {
		t.Fatal(err)
	}
	rs := drain(t, f.host)
	if len(rs) != 1 || rs[0].Code != jetton.ERR_NOT_VALID_WALLET || rs[0].Deployed {
		t.Fatalf("receipts: %+v", rs)
	}
	if _, ok, _ := f.db.GetAccount(msg.Dst); ok {
		t.Fatalf("foreign-root wallet deployed")
	}
}

func TestHostUnderfundedClaimLeavesNoTrace(t *testing.T) {
	a := owner(0x10)
	f := newHostFixture(t, t.TempDir(), map[cell.Address]uint64{a: 100}, airdropStart)
	msg := f.claimTransfer(t, a, owner(0x20), 1)
	msg.Value = uint256.NewInt(1000)
	if err := f.host.Send(msg); err != nil {
		t.Fatal(err)
	}
	rs := drain(t, f.host)
	if rs[0].Code != jetton.ERR_NOT_ENOUGH_GAS {
		t.Fatalf("code %s", rs[0].Code)
	}
	if _, ok, err := f.host.WalletData(a); ok || err != nil {
		t.Fatalf("failed claim deployed the wallet: ok=%v err=%v", ok, err)
	}
	if got := balance(t, f.host, a); got != 0 {
		t.Fatalf("balance %d", got)
	}
}

func TestHostOutsideWindow(t *testing.T) {
	a := owner(0x10)
	f := newHostFixture(t, t.TempDir(), map[cell.Address]uint64{a: 100}, airdropEnd+1)
	if err := f.host.Send(f.claimTransfer(t, a, owner(0x20), 1)); err != nil {
		t.Fatal(err)
	}
	if rs := drain(t, f.host); rs[0].Code != jetton.ERR_AIRDROP_FINISHED {
		t.Fatalf("code %s", rs[0].Code)
	}
}

func TestHostRefusesForeignStore(t *testing.T) {
	dir := t.TempDir()
	first := newHostFixture(t, dir, map[cell.Address]uint64{owner(1): 1}, airdropStart)
	_ = first.db.Close()

	db, err := store.Open(dir, first.class.Minter())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	other, err := jetton.NewWalletClass(jetton.ClassParams{
		Code:       jetton.DefaultWalletCode(),
		Minter:     first.class.Minter(),
		MerkleRoot: [32]byte{1},
		Fees:       jetton.DefaultFeeSchedule(),
	})
	if err != nil {
		t.Fatal(err)
	}
	logger, _ := NewLogger("error", io.Discard)
	if _, err := NewHost(other, db, HostConfig{Logger: logger}); err == nil {
		t.Fatalf("expected foreign store error")
	}
}

func TestHostQueueBound(t *testing.T) {
	f := newHostFixture(t, t.TempDir(), map[cell.Address]uint64{owner(1): 1}, airdropStart)
	f.host.maxQueue = 1
	if err := f.host.Send(jetton.Message{}); err != nil {
		t.Fatal(err)
	}
	if err := f.host.Send(jetton.Message{}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.host.Drain(ctx); err != context.Canceled || f.host.Pending() != 1 {
		t.Fatalf("cancelled drain: err=%v pending=%d", err, f.host.Pending())
	}
}

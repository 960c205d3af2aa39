package jetton

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/ton-community/mintless-jetton/cell"
	"github.com/ton-community/mintless-jetton/hashmap"
)

func manyOwners(n int) map[cell.Address]AirdropRecord {
	out := make(map[cell.Address]AirdropRecord, n)
	for i := 0; i < n; i++ {
		out[testAddr(byte(i))] = record(uint64(100 + i))
	}
	return out
}

func TestClaimCreditsOnce(t *testing.T) {
	f := newFixture(t, manyOwners(20))
	owner := testAddr(4)
	_, data := f.wallet(t, owner)
	payload := f.claimPayload(t, owner)

	res, err := f.class.Claim(data, payload, airdropStart, oneTON, nil)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !res.Data.Balance.Eq(uint256.NewInt(104)) || res.Data.ClaimState() != Claimed {
		t.Fatalf("balance=%s state=%s", res.Data.Balance.Dec(), res.Data.ClaimState())
	}
	if data.ClaimState() != Unclaimed || !data.Balance.IsZero() {
		t.Fatalf("Claim mutated its input")
	}

	before := dataHash(t, res.Data)
	_, err = f.class.Claim(res.Data, payload, airdropStart, oneTON, nil)
	wantCode(t, err, ERR_AIRDROP_ALREADY_CLAIMED)
	if dataHash(t, res.Data) != before {
		t.Fatalf("replay changed the wallet data")
	}
}

func TestClaimOnlyInWalletWorkchain(t *testing.T) {
	base := testAddr(1)
	master := base
	master.Workchain = -1
	f := newFixture(t, map[cell.Address]AirdropRecord{base: record(100)})
	payload := f.claimPayload(t, base)

	if _, err := f.class.Claim(f.class.InitialData(base, 0), payload, airdropStart, oneTON, nil); err != nil {
		t.Fatalf("basechain owner: %v", err)
	}
	// same hash, other workchain: one allocation must not fund two wallets
	_, err := f.class.Claim(f.class.InitialData(master, 0), payload, airdropStart, oneTON, nil)
	wantCode(t, err, ERR_WRONG_WORKCHAIN)

	mc, err := NewWalletClass(ClassParams{
		Code:       DefaultWalletCode(),
		Minter:     f.class.Minter(),
		MerkleRoot: f.root,
		Workchain:  -1,
		Fees:       DefaultFeeSchedule(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mc.Claim(mc.InitialData(master, 0), payload, airdropStart, oneTON, nil); err != nil {
		t.Fatalf("masterchain owner in masterchain class: %v", err)
	}
	_, err = mc.Claim(mc.InitialData(base, 0), payload, airdropStart, oneTON, nil)
	wantCode(t, err, ERR_WRONG_WORKCHAIN)
}

func TestCheckStateInit(t *testing.T) {
	owner := testAddr(2)
	f := newFixture(t, map[cell.Address]AirdropRecord{owner: record(5)})
	si, _, err := f.class.StateInitAndSalt(owner)
	if err != nil {
		t.Fatal(err)
	}
	self, err := si.Address(f.class.Workchain())
	if err != nil {
		t.Fatal(err)
	}
	if err := f.class.CheckStateInit(self, si); err != nil {
		t.Fatalf("derived state init rejected: %v", err)
	}

	forge := func(mutate func(*WalletData)) (cell.Address, StateInit) {
		t.Helper()
		_, d := f.wallet(t, owner)
		mutate(&d)
		data, err := d.ToCell()
		if err != nil {
			t.Fatal(err)
		}
		forged := StateInit{Code: f.class.Code(), Data: data}
		dst, err := forged.Address(f.class.Workchain())
		if err != nil {
			t.Fatal(err)
		}
		return dst, forged
	}

	dst, forged := forge(func(d *WalletData) { d.MerkleRoot[0] ^= 0xff })
	wantCode(t, f.class.CheckStateInit(dst, forged), ERR_NOT_VALID_WALLET)
	dst, forged = forge(func(d *WalletData) { d.Minter = testAddr(0x55) })
	wantCode(t, f.class.CheckStateInit(dst, forged), ERR_NOT_VALID_WALLET)
	dst, forged = forge(func(d *WalletData) { d.Balance = uint256.NewInt(1_000_000) })
	wantCode(t, f.class.CheckStateInit(dst, forged), ERR_NOT_VALID_WALLET)
	dst, forged = forge(func(d *WalletData) { d.Owner.Workchain = -1 })
	wantCode(t, f.class.CheckStateInit(dst, forged), ERR_WRONG_WORKCHAIN)

	other := self
	other.Hash[0] ^= 0x01
	wantCode(t, f.class.CheckStateInit(other, si), ERR_NOT_VALID_WALLET)
	other = self
	other.Workchain = -1
	wantCode(t, f.class.CheckStateInit(other, si), ERR_WRONG_WORKCHAIN)
}

func TestClaimWindowBoundsAreInclusive(t *testing.T) {
	owner := testAddr(1)
	f := newFixture(t, map[cell.Address]AirdropRecord{owner: record(100)})
	_, data := f.wallet(t, owner)
	payload := f.claimPayload(t, owner)

	for _, now := range []uint64{airdropStart, airdropEnd} {
		if _, err := f.class.Claim(data, payload, now, oneTON, nil); err != nil {
			t.Fatalf("now=%d: %v", now, err)
		}
	}
	_, err := f.class.Claim(data, payload, airdropStart-1, oneTON, nil)
	wantCode(t, err, ERR_AIRDROP_NOT_READY)
	_, err = f.class.Claim(data, payload, airdropEnd+1, oneTON, nil)
	wantCode(t, err, ERR_AIRDROP_FINISHED)
}

func TestClaimAbsentOwnerWithExpandedProof(t *testing.T) {
	f := newFixture(t, manyOwners(16))
	stranger := testAddr(0x80)
	_, data := f.wallet(t, stranger)

	// the proof follows the stranger's own key, so nothing on the path is pruned
	_, err := f.class.Claim(data, f.claimPayload(t, stranger), airdropStart, oneTON, nil)
	wantCode(t, err, ERR_AIRDROP_NOT_FOUND)
	if !errors.Is(err, hashmap.ErrKeyAbsent) || errors.Is(err, hashmap.ErrPrunedPath) {
		t.Fatalf("expected key-absent cause, got %v", err)
	}
}

func TestClaimWithSomeoneElsesProofHitsPrunedPath(t *testing.T) {
	f := newFixture(t, manyOwners(16))
	owner, other := testAddr(3), testAddr(7)
	_, data := f.wallet(t, owner)

	_, err := f.class.Claim(data, f.claimPayload(t, other), airdropStart, oneTON, nil)
	wantCode(t, err, ERR_AIRDROP_NOT_FOUND)
	if !errors.Is(err, hashmap.ErrPrunedPath) || errors.Is(err, hashmap.ErrKeyAbsent) {
		t.Fatalf("expected pruned-path cause, got %v", err)
	}
}

func TestClaimUnderfundedAppliesNothing(t *testing.T) {
	owner := testAddr(1)
	f := newFixture(t, manyOwners(8))
	_, data := f.wallet(t, owner)
	payload := f.claimPayload(t, owner)
	dict, err := VerifyClaimProof(f.proof(t, owner), f.root)
	if err != nil {
		t.Fatal(err)
	}
	need, err := f.class.Fees().EstimateTransfer(nil, true, dict.Depth(0))
	if err != nil {
		t.Fatal(err)
	}
	short := new(uint256.Int).Sub(need, uint256.NewInt(1))
	before := dataHash(t, data)
	_, err = f.class.Claim(data, payload, airdropStart, short, nil)
	wantCode(t, err, ERR_NOT_ENOUGH_GAS)
	if dataHash(t, data) != before {
		t.Fatalf("underfunded claim changed the wallet data")
	}
	if _, err := f.class.Claim(data, payload, airdropStart, need, nil); err != nil {
		t.Fatalf("exact estimate must pass: %v", err)
	}
}

func TestClaimRejectsMissingProofRef(t *testing.T) {
	owner := testAddr(1)
	f := newFixture(t, map[cell.Address]AirdropRecord{owner: record(1)})
	_, data := f.wallet(t, owner)
	bare, _ := cell.BeginCell().StoreUint(uint64(OpMerkleAirdropClaim), 32).EndCell()
	_, err := f.class.Claim(data, bare, airdropStart, oneTON, nil)
	wantCode(t, err, ERR_INVALID_MESSAGE)
}

func TestEstimateIsMonotoneInDepth(t *testing.T) {
	fees := DefaultFeeSchedule()
	fwd := uint256.NewInt(1)
	prev, err := fees.EstimateTransfer(fwd, true, 0)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := fees.EstimateTransfer(fwd, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !plain.Lt(prev) {
		t.Fatalf("claim must cost more than a plain transfer")
	}
	for depth := uint16(1); depth <= 1024; depth++ {
		cur, err := fees.EstimateTransfer(fwd, true, depth)
		if err != nil {
			t.Fatal(err)
		}
		if cur.Lt(prev) {
			t.Fatalf("estimate decreased at depth %d", depth)
		}
		prev = cur
	}
	noFwd, _ := fees.EstimateTransfer(nil, false, 0)
	want := new(uint256.Int).Sub(plain, noFwd)
	if !want.Eq(uint256.NewInt(1 + fees.ForwardFee)) {
		t.Fatalf("forward ton adds %s, want amount plus one forward fee", want.Dec())
	}
}

func TestFeeOverflowIsNotEnoughGas(t *testing.T) {
	fees := DefaultFeeSchedule()
	fees.GasPrice = ^uint64(0)
	err := fees.CheckTransfer(oneTON, nil, true, 10)
	wantCode(t, err, ERR_NOT_ENOUGH_GAS)

	huge := new(uint256.Int).SetAllOne()
	err = DefaultFeeSchedule().CheckTransfer(huge, huge, false, 0)
	wantCode(t, err, ERR_NOT_ENOUGH_GAS)
}

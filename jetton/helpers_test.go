package jetton

import (
	"math/rand"
	"testing"

	"github.com/holiman/uint256"

	"github.com/ton-community/mintless-jetton/cell"
	"github.com/ton-community/mintless-jetton/hashmap"
)

const (
	airdropStart = 1000
	airdropEnd   = 2000
)

var oneTON = uint256.NewInt(1_000_000_000)

func testAddr(seed byte) cell.Address {
	var a cell.Address
	for i := range a.Hash {
		a.Hash[i] = seed ^ byte(i*7)
	}
	return a
}

func randomAddr(rng *rand.Rand) cell.Address {
	var a cell.Address
	rng.Read(a.Hash[:])
	return a
}

type airdropFixture struct {
	dict  *cell.Cell
	root  [32]byte
	class *WalletClass
}

// newFixture commits records for the given owners and a class rooted at the
// resulting dictionary.
func newFixture(t *testing.T, records map[cell.Address]AirdropRecord) airdropFixture {
	t.Helper()
	table := make(map[[32]byte]AirdropRecord, len(records))
	for a, r := range records {
		table[a.Hash] = r
	}
	dict, err := BuildAirdrop(table)
	if err != nil {
		t.Fatalf("BuildAirdrop: %v", err)
	}
	root := dict.Hash(0)
	class, err := NewWalletClass(ClassParams{
		Code:       DefaultWalletCode(),
		Minter:     testAddr(0xee),
		MerkleRoot: root,
		Fees:       DefaultFeeSchedule(),
	})
	if err != nil {
		t.Fatalf("NewWalletClass: %v", err)
	}
	return airdropFixture{dict: dict, root: root, class: class}
}

func record(amount uint64) AirdropRecord {
	return AirdropRecord{Amount: uint256.NewInt(amount), StartFrom: airdropStart, ExpireAt: airdropEnd}
}

func (f airdropFixture) proof(t *testing.T, owner cell.Address) *cell.Cell {
	t.Helper()
	p, err := hashmap.Prove(f.dict, owner.Hash)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	return p
}

func (f airdropFixture) claimPayload(t *testing.T, owner cell.Address) *cell.Cell {
	t.Helper()
	return payloadFor(t, f.proof(t, owner))
}

func payloadFor(t *testing.T, proof *cell.Cell) *cell.Cell {
	t.Helper()
	c, err := ClaimPayload{Proof: proof}.ToCell()
	if err != nil {
		t.Fatalf("claim payload: %v", err)
	}
	return c
}

func (f airdropFixture) wallet(t *testing.T, owner cell.Address) (cell.Address, WalletData) {
	t.Helper()
	si, salt, err := f.class.StateInitAndSaltCheap(owner)
	if err != nil {
		t.Fatal(err)
	}
	self, err := si.Address(f.class.Workchain())
	if err != nil {
		t.Fatal(err)
	}
	return self, f.class.InitialData(owner, salt)
}

func transferBody(t *testing.T, amount uint64, to cell.Address, custom *cell.Cell) *cell.Cell {
	t.Helper()
	resp := to
	c, err := Transfer{
		QueryID:             1,
		Amount:              uint256.NewInt(amount),
		Destination:         to,
		ResponseDestination: &resp,
		CustomPayload:       custom,
		ForwardTonAmount:    uint256.NewInt(1),
	}.ToCell()
	if err != nil {
		t.Fatalf("transfer body: %v", err)
	}
	return c
}

func dataHash(t *testing.T, d WalletData) [32]byte {
	t.Helper()
	c, err := d.ToCell()
	if err != nil {
		t.Fatalf("wallet data: %v", err)
	}
	return c.Hash(0)
}

func wantCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	got, ok := CodeOf(err)
	if !ok || got != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

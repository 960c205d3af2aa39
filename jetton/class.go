package jetton

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ton-community/mintless-jetton/cell"
)

const (
	// ShardDepth is the number of leading address bits a wallet tries to
	// share with its owner.
	ShardDepth = 4

	DefaultSaltSearchLimit = 64
	MaxSaltSearchLimit     = 1 << saltBits
)

// ClassParams configures a WalletClass.
type ClassParams struct {
	Code            *cell.Cell
	Minter          cell.Address
	MerkleRoot      [32]byte
	Workchain       int8
	SaltSearchLimit int
	Fees            FeeSchedule
}

// WalletClass is the immutable definition shared by every wallet of one
// jetton: code, minter, merkle root and fee schedule.
type WalletClass struct {
	code       *cell.Cell
	codeHash   [32]byte
	codeDepth  uint16
	minter     cell.Address
	merkleRoot [32]byte
	workchain  int8
	saltLimit  int
	fees       FeeSchedule
	template   [dataImageBytes]byte
}

func NewWalletClass(p ClassParams) (*WalletClass, error) {
	if p.Code == nil {
		return nil, errors.New("wallet class: code is required")
	}
	if p.Code.Level() != 0 {
		return nil, fmt.Errorf("wallet class: code cell level %d, want 0", p.Code.Level())
	}
	limit := p.SaltSearchLimit
	if limit == 0 {
		limit = DefaultSaltSearchLimit
	}
	if limit < 1 || limit > MaxSaltSearchLimit {
		return nil, fmt.Errorf("wallet class: salt search limit %d outside [1,%d]", limit, MaxSaltSearchLimit)
	}
	if err := p.Fees.Validate(); err != nil {
		return nil, fmt.Errorf("wallet class: %w", err)
	}
	w := &WalletClass{
		code:       p.Code,
		codeHash:   p.Code.Hash(0),
		codeDepth:  p.Code.Depth(0),
		minter:     p.Minter,
		merkleRoot: p.MerkleRoot,
		workchain:  p.Workchain,
		saltLimit:  limit,
		fees:       p.Fees,
	}
	w.template = w.dataTemplate()
	return w, nil
}

func (w *WalletClass) Code() *cell.Cell { return w.code }

func (w *WalletClass) Minter() cell.Address { return w.minter }

func (w *WalletClass) MerkleRoot() [32]byte { return w.merkleRoot }

func (w *WalletClass) Workchain() int8 { return w.workchain }

func (w *WalletClass) SaltSearchLimit() int { return w.saltLimit }

func (w *WalletClass) Fees() FeeSchedule { return w.fees }

// InitialData is the data a fresh wallet of owner starts with.
func (w *WalletClass) InitialData(owner cell.Address, salt uint16) WalletData {
	return WalletData{
		Balance:    new(uint256.Int),
		Owner:      owner,
		Minter:     w.minter,
		MerkleRoot: w.merkleRoot,
		Salt:       salt,
	}
}

// WalletAddress is the address of owner's wallet, computed on the cheap path.
func (w *WalletClass) WalletAddress(owner cell.Address) (cell.Address, error) {
	si, _, err := w.StateInitAndSaltCheap(owner)
	if err != nil {
		return cell.Address{}, err
	}
	return si.Address(w.workchain)
}

// CheckStateInit accepts si as the deployment of a wallet at dst only when it
// is exactly the state init WalletAddress derives for the owner named in its
// data.
func (w *WalletClass) CheckStateInit(dst cell.Address, si StateInit) error {
	if dst.Workchain != w.workchain {
		return walletErr(ERR_WRONG_WORKCHAIN, fmt.Sprintf("wallet workchain %d", dst.Workchain))
	}
	addr, err := si.Address(dst.Workchain)
	if err != nil {
		return wrapErr(ERR_INVALID_MESSAGE, err)
	}
	if addr != dst {
		return walletErr(ERR_NOT_VALID_WALLET, fmt.Sprintf("state init hashes to %s, not %s", addr, dst))
	}
	if !si.Code.Equal(w.code) {
		return walletErr(ERR_NOT_VALID_WALLET, fmt.Sprintf("state init code %x is not the wallet code", si.Code.Hash(0)))
	}
	d, err := ParseWalletData(si.Data)
	if err != nil {
		return wrapErr(ERR_NOT_VALID_WALLET, err)
	}
	if d.Owner.Workchain != w.workchain {
		return walletErr(ERR_WRONG_WORKCHAIN, fmt.Sprintf("owner workchain %d", d.Owner.Workchain))
	}
	want, err := w.WalletAddress(d.Owner)
	if err != nil {
		return err
	}
	if want != dst {
		return walletErr(ERR_NOT_VALID_WALLET, fmt.Sprintf("owner %s derives wallet %s", d.Owner, want))
	}
	return nil
}

// prefixDistance scores an address hash against the owner's shard prefix.
func prefixDistance(h [32]byte, owner cell.Address) uint8 {
	return (h[0] >> (8 - ShardDepth)) ^ owner.ShardPrefix(ShardDepth)
}

var defaultCode = func() *cell.Cell {
	c, err := cell.BeginCell().StoreBytes([]byte("mintless-jetton-wallet/v1")).EndCell()
	if err != nil {
		panic(err)
	}
	return c
}()

// DefaultWalletCode is the code cell used when none is configured. Only its
// hash and depth take part in address derivation.
func DefaultWalletCode() *cell.Cell { return defaultCode }

package jetton

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ton-community/mintless-jetton/cell"
)

const (
	statusBits = 4
	saltBits   = 10

	statusClaimed = 1
)

type ClaimState uint8

const (
	Unclaimed ClaimState = iota
	Claimed
)

func (s ClaimState) String() string {
	if s == Claimed {
		return "claimed"
	}
	return "unclaimed"
}

// WalletData is the persisted state of one wallet:
//
//	status:uint4 balance:Coins owner:MsgAddressInt minter:MsgAddressInt merkle_root:uint256 salt:uint10
type WalletData struct {
	Status     uint8
	Balance    *uint256.Int
	Owner      cell.Address
	Minter     cell.Address
	MerkleRoot [32]byte
	Salt       uint16
}

func (d WalletData) ClaimState() ClaimState {
	if d.Status&statusClaimed != 0 {
		return Claimed
	}
	return Unclaimed
}

func (d WalletData) ToCell() (*cell.Cell, error) {
	if d.Status >= 1<<statusBits {
		return nil, fmt.Errorf("wallet data: status %d exceeds 4 bits", d.Status)
	}
	if d.Salt >= 1<<saltBits {
		return nil, fmt.Errorf("wallet data: salt %d exceeds 10 bits", d.Salt)
	}
	return cell.BeginCell().
		StoreUint(uint64(d.Status), statusBits).
		StoreCoins(d.Balance).
		StoreAddress(&d.Owner).
		StoreAddress(&d.Minter).
		StoreBytes(d.MerkleRoot[:]).
		StoreUint(uint64(d.Salt), saltBits).
		EndCell()
}

func ParseWalletData(c *cell.Cell) (WalletData, error) {
	s := c.BeginParse()
	var d WalletData
	status, err := s.LoadUint(statusBits)
	if err != nil {
		return WalletData{}, fmt.Errorf("wallet data: status: %w", err)
	}
	d.Status = uint8(status)
	if d.Balance, err = s.LoadCoins(); err != nil {
		return WalletData{}, fmt.Errorf("wallet data: balance: %w", err)
	}
	if d.Owner, err = s.LoadAddress(); err != nil {
		return WalletData{}, fmt.Errorf("wallet data: owner: %w", err)
	}
	if d.Minter, err = s.LoadAddress(); err != nil {
		return WalletData{}, fmt.Errorf("wallet data: minter: %w", err)
	}
	root, err := s.LoadBytes(32)
	if err != nil {
		return WalletData{}, fmt.Errorf("wallet data: merkle root: %w", err)
	}
	copy(d.MerkleRoot[:], root)
	salt, err := s.LoadUint(saltBits)
	if err != nil {
		return WalletData{}, fmt.Errorf("wallet data: salt: %w", err)
	}
	d.Salt = uint16(salt)
	if s.BitsLeft() != 0 || s.RefsLeft() != 0 {
		return WalletData{}, fmt.Errorf("wallet data: %d trailing bits", s.BitsLeft())
	}
	return d, nil
}

// clone deep-copies the balance so a handler can work on a private copy.
func (d WalletData) clone() WalletData {
	d.Balance = new(uint256.Int).Set(coins(d.Balance))
	return d
}

// StateInit is the code and initial data a wallet is deployed with.
type StateInit struct {
	Code *cell.Cell
	Data *cell.Cell
}

// ToCell encodes _ split_depth:(Maybe) special:(Maybe) code:(Maybe ^Cell)
// data:(Maybe ^Cell) library:(HashmapE) with only code and data present.
func (si StateInit) ToCell() (*cell.Cell, error) {
	if si.Code == nil || si.Data == nil {
		return nil, fmt.Errorf("state init: code and data are required")
	}
	return cell.BeginCell().
		StoreUint(0b00, 2).
		StoreMaybeRef(si.Code).
		StoreMaybeRef(si.Data).
		StoreBit(false).
		EndCell()
}

func ParseStateInit(c *cell.Cell) (StateInit, error) {
	s := c.BeginParse()
	head, err := s.LoadUint(2)
	if err != nil {
		return StateInit{}, err
	}
	if head != 0 {
		return StateInit{}, fmt.Errorf("state init: split_depth and special are not supported")
	}
	var si StateInit
	if si.Code, err = s.LoadMaybeRef(); err != nil {
		return StateInit{}, err
	}
	if si.Data, err = s.LoadMaybeRef(); err != nil {
		return StateInit{}, err
	}
	lib, err := s.LoadBit()
	if err != nil {
		return StateInit{}, err
	}
	if lib {
		return StateInit{}, fmt.Errorf("state init: libraries are not supported")
	}
	if si.Code == nil || si.Data == nil {
		return StateInit{}, fmt.Errorf("state init: code and data are required")
	}
	return si, nil
}

// Address returns the account address of si in workchain wc.
func (si StateInit) Address(wc int8) (cell.Address, error) {
	c, err := si.ToCell()
	if err != nil {
		return cell.Address{}, err
	}
	return cell.Address{Workchain: wc, Hash: c.Hash(0)}, nil
}

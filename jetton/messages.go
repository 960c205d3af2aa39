package jetton

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ton-community/mintless-jetton/cell"
)

const (
	OpTransfer             uint32 = 0x0f8a7ea5
	OpTransferNotification uint32 = 0x7362d09c
	OpInternalTransfer     uint32 = 0x178d4519
	OpExcesses             uint32 = 0xd53276db
	OpBurn                 uint32 = 0x595f07bc
	OpBurnNotification     uint32 = 0x7bdd97de
	OpMerkleAirdropClaim   uint32 = 0x0df602d6

	bouncedPrefix uint32 = 0xffffffff
)

type Transfer struct {
	QueryID             uint64
	Amount              *uint256.Int
	Destination         cell.Address
	ResponseDestination *cell.Address
	CustomPayload       *cell.Cell
	ForwardTonAmount    *uint256.Int
	ForwardPayload      *cell.Cell
}

type InternalTransfer struct {
	QueryID          uint64
	Amount           *uint256.Int
	From             *cell.Address
	ResponseAddress  *cell.Address
	ForwardTonAmount *uint256.Int
	ForwardPayload   *cell.Cell
}

type TransferNotification struct {
	QueryID        uint64
	Amount         *uint256.Int
	Sender         *cell.Address
	ForwardPayload *cell.Cell
}

type Excesses struct {
	QueryID uint64
}

type Burn struct {
	QueryID             uint64
	Amount              *uint256.Int
	ResponseDestination *cell.Address
	CustomPayload       *cell.Cell
}

type BurnNotification struct {
	QueryID             uint64
	Amount              *uint256.Int
	Sender              cell.Address
	ResponseDestination *cell.Address
}

// ClaimPayload is the custom payload of a transfer that claims the airdrop.
type ClaimPayload struct {
	Proof *cell.Cell
}

// storeEither writes forward_payload as a ref, or an empty inline cell when p
// is nil.
func storeEither(b *cell.Builder, p *cell.Cell) *cell.Builder {
	if p == nil {
		return b.StoreBit(false)
	}
	return b.StoreBit(true).StoreRef(p)
}

func loadEither(s *cell.Slice) (*cell.Cell, error) {
	isRef, err := s.LoadBit()
	if err != nil {
		return nil, err
	}
	if isRef {
		return s.LoadRef()
	}
	if s.BitsLeft() == 0 && s.RefsLeft() == 0 {
		return nil, nil
	}
	return s.ToCell()
}

func loadOp(s *cell.Slice, want uint32) (uint64, error) {
	op, err := s.LoadUint(32)
	if err != nil {
		return 0, err
	}
	if uint32(op) != want {
		return 0, fmt.Errorf("op %#08x, want %#08x", op, want)
	}
	return s.LoadUint(64)
}

// PeekOp returns the leading 32-bit op of body, or false when body is too
// short to carry one.
func PeekOp(body *cell.Cell) (uint32, bool) {
	if body == nil {
		return 0, false
	}
	op, err := body.BeginParse().PreloadUint(32)
	if err != nil {
		return 0, false
	}
	// #nosec G115 -- 32-bit field.
	return uint32(op), true
}

func (m Transfer) ToCell() (*cell.Cell, error) {
	b := cell.BeginCell().
		StoreUint(uint64(OpTransfer), 32).
		StoreUint(m.QueryID, 64).
		StoreCoins(m.Amount).
		StoreAddress(&m.Destination).
		StoreAddress(m.ResponseDestination).
		StoreMaybeRef(m.CustomPayload).
		StoreCoins(m.ForwardTonAmount)
	return storeEither(b, m.ForwardPayload).EndCell()
}

func ParseTransfer(c *cell.Cell) (Transfer, error) {
	var m Transfer
	var err error
	s := c.BeginParse()
	if m.QueryID, err = loadOp(s, OpTransfer); err != nil {
		return Transfer{}, err
	}
	if m.Amount, err = s.LoadCoins(); err != nil {
		return Transfer{}, err
	}
	if m.Destination, err = s.LoadAddress(); err != nil {
		return Transfer{}, err
	}
	if m.ResponseDestination, err = s.LoadMaybeAddress(); err != nil {
		return Transfer{}, err
	}
	if m.CustomPayload, err = s.LoadMaybeRef(); err != nil {
		return Transfer{}, err
	}
	if m.ForwardTonAmount, err = s.LoadCoins(); err != nil {
		return Transfer{}, err
	}
	if m.ForwardPayload, err = loadEither(s); err != nil {
		return Transfer{}, err
	}
	return m, nil
}

func (m InternalTransfer) ToCell() (*cell.Cell, error) {
	b := cell.BeginCell().
		StoreUint(uint64(OpInternalTransfer), 32).
		StoreUint(m.QueryID, 64).
		StoreCoins(m.Amount).
		StoreAddress(m.From).
		StoreAddress(m.ResponseAddress).
		StoreCoins(m.ForwardTonAmount)
	return storeEither(b, m.ForwardPayload).EndCell()
}

func ParseInternalTransfer(c *cell.Cell) (InternalTransfer, error) {
	var m InternalTransfer
	var err error
	s := c.BeginParse()
	if m.QueryID, err = loadOp(s, OpInternalTransfer); err != nil {
		return InternalTransfer{}, err
	}
	if m.Amount, err = s.LoadCoins(); err != nil {
		return InternalTransfer{}, err
	}
	if m.From, err = s.LoadMaybeAddress(); err != nil {
		return InternalTransfer{}, err
	}
	if m.ResponseAddress, err = s.LoadMaybeAddress(); err != nil {
		return InternalTransfer{}, err
	}
	if m.ForwardTonAmount, err = s.LoadCoins(); err != nil {
		return InternalTransfer{}, err
	}
	if m.ForwardPayload, err = loadEither(s); err != nil {
		return InternalTransfer{}, err
	}
	return m, nil
}

func (m TransferNotification) ToCell() (*cell.Cell, error) {
	b := cell.BeginCell().
		StoreUint(uint64(OpTransferNotification), 32).
		StoreUint(m.QueryID, 64).
		StoreCoins(m.Amount).
		StoreAddress(m.Sender)
	return storeEither(b, m.ForwardPayload).EndCell()
}

func ParseTransferNotification(c *cell.Cell) (TransferNotification, error) {
	var m TransferNotification
	var err error
	s := c.BeginParse()
	if m.QueryID, err = loadOp(s, OpTransferNotification); err != nil {
		return TransferNotification{}, err
	}
	if m.Amount, err = s.LoadCoins(); err != nil {
		return TransferNotification{}, err
	}
	if m.Sender, err = s.LoadMaybeAddress(); err != nil {
		return TransferNotification{}, err
	}
	if m.ForwardPayload, err = loadEither(s); err != nil {
		return TransferNotification{}, err
	}
	return m, nil
}

func (m Excesses) ToCell() (*cell.Cell, error) {
	return cell.BeginCell().StoreUint(uint64(OpExcesses), 32).StoreUint(m.QueryID, 64).EndCell()
}

func ParseExcesses(c *cell.Cell) (Excesses, error) {
	q, err := loadOp(c.BeginParse(), OpExcesses)
	if err != nil {
		return Excesses{}, err
	}
	return Excesses{QueryID: q}, nil
}

func (m Burn) ToCell() (*cell.Cell, error) {
	return cell.BeginCell().
		StoreUint(uint64(OpBurn), 32).
		StoreUint(m.QueryID, 64).
		StoreCoins(m.Amount).
		StoreAddress(m.ResponseDestination).
		StoreMaybeRef(m.CustomPayload).
		EndCell()
}

func ParseBurn(c *cell.Cell) (Burn, error) {
	var m Burn
	var err error
	s := c.BeginParse()
	if m.QueryID, err = loadOp(s, OpBurn); err != nil {
		return Burn{}, err
	}
	if m.Amount, err = s.LoadCoins(); err != nil {
		return Burn{}, err
	}
	if m.ResponseDestination, err = s.LoadMaybeAddress(); err != nil {
		return Burn{}, err
	}
	if m.CustomPayload, err = s.LoadMaybeRef(); err != nil {
		return Burn{}, err
	}
	return m, nil
}

func (m BurnNotification) ToCell() (*cell.Cell, error) {
	return cell.BeginCell().
		StoreUint(uint64(OpBurnNotification), 32).
		StoreUint(m.QueryID, 64).
		StoreCoins(m.Amount).
		StoreAddress(&m.Sender).
		StoreAddress(m.ResponseDestination).
		EndCell()
}

func ParseBurnNotification(c *cell.Cell) (BurnNotification, error) {
	var m BurnNotification
	var err error
	s := c.BeginParse()
	if m.QueryID, err = loadOp(s, OpBurnNotification); err != nil {
		return BurnNotification{}, err
	}
	if m.Amount, err = s.LoadCoins(); err != nil {
		return BurnNotification{}, err
	}
	if m.Sender, err = s.LoadAddress(); err != nil {
		return BurnNotification{}, err
	}
	if m.ResponseDestination, err = s.LoadMaybeAddress(); err != nil {
		return BurnNotification{}, err
	}
	return m, nil
}

func (m ClaimPayload) ToCell() (*cell.Cell, error) {
	return cell.BeginCell().StoreUint(uint64(OpMerkleAirdropClaim), 32).StoreRef(m.Proof).EndCell()
}

func ParseClaimPayload(c *cell.Cell) (ClaimPayload, error) {
	s := c.BeginParse()
	op, err := s.LoadUint(32)
	if err != nil {
		return ClaimPayload{}, err
	}
	if uint32(op) != OpMerkleAirdropClaim {
		return ClaimPayload{}, fmt.Errorf("op %#08x is not a claim", op)
	}
	proof, err := s.LoadRef()
	if err != nil {
		return ClaimPayload{}, err
	}
	return ClaimPayload{Proof: proof}, nil
}

// Bounced builds the body a bounced message carries back: the 0xffffffff
// prefix and the first 256 bits of the original body.
func Bounced(original *cell.Cell) (*cell.Cell, error) {
	b := cell.BeginCell().StoreUint(uint64(bouncedPrefix), 32)
	if original != nil {
		s := original.BeginParse()
		n := s.BitsLeft()
		if n > 256 {
			n = 256
		}
		p, err := s.LoadBits(n)
		if err != nil {
			return nil, err
		}
		b.StoreBits(p, n)
	}
	return b.EndCell()
}

package jetton

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ton-community/mintless-jetton/cell"
	"github.com/ton-community/mintless-jetton/hashmap"
)

const (
	timestampBits = 48
	MaxTimestamp  = 1<<timestampBits - 1
)

// AirdropRecord is one allocation: amount claimable in [StartFrom, ExpireAt].
type AirdropRecord struct {
	Amount    *uint256.Int
	StartFrom uint64
	ExpireAt  uint64
}

func (r AirdropRecord) ToCell() (*cell.Cell, error) {
	if r.StartFrom > MaxTimestamp || r.ExpireAt > MaxTimestamp {
		return nil, fmt.Errorf("airdrop record: timestamp exceeds 48 bits")
	}
	return cell.BeginCell().
		StoreCoins(r.Amount).
		StoreUint(r.StartFrom, timestampBits).
		StoreUint(r.ExpireAt, timestampBits).
		EndCell()
}

func ParseAirdropRecord(s *cell.Slice) (AirdropRecord, error) {
	var r AirdropRecord
	var err error
	if r.Amount, err = s.LoadCoins(); err != nil {
		return AirdropRecord{}, err
	}
	if r.StartFrom, err = s.LoadUint(timestampBits); err != nil {
		return AirdropRecord{}, err
	}
	if r.ExpireAt, err = s.LoadUint(timestampBits); err != nil {
		return AirdropRecord{}, err
	}
	return r, nil
}

// CheckWindow accepts now when StartFrom <= now <= ExpireAt.
func (r AirdropRecord) CheckWindow(now uint64) error {
	if now < r.StartFrom {
		return walletErr(ERR_AIRDROP_NOT_READY, fmt.Sprintf("now %d before start %d", now, r.StartFrom))
	}
	if now > r.ExpireAt {
		return walletErr(ERR_AIRDROP_FINISHED, fmt.Sprintf("now %d after expiry %d", now, r.ExpireAt))
	}
	return nil
}

// FindAirdrop resolves the record of owner in a verified dictionary root.
// Key absence, a pruned path and a malformed tree all surface as
// ERR_AIRDROP_NOT_FOUND with the hashmap sentinel kept as the cause.
func FindAirdrop(dict *cell.Cell, owner [32]byte) (AirdropRecord, error) {
	s, err := hashmap.Lookup(dict, owner)
	if err != nil {
		return AirdropRecord{}, wrapErr(ERR_AIRDROP_NOT_FOUND, err)
	}
	r, err := ParseAirdropRecord(s)
	if err != nil {
		return AirdropRecord{}, wrapErr(ERR_AIRDROP_NOT_FOUND, fmt.Errorf("%w: record: %v", hashmap.ErrMalformed, err))
	}
	return r, nil
}

// BuildAirdrop commits a table keyed by owner account hash and returns the
// dictionary root; its level 0 hash is the merkle root.
func BuildAirdrop(records map[[32]byte]AirdropRecord) (*cell.Cell, error) {
	if len(records) == 0 {
		return nil, errors.New("airdrop: empty table")
	}
	entries := make([]hashmap.Entry, 0, len(records))
	for k, r := range records {
		v, err := r.ToCell()
		if err != nil {
			return nil, fmt.Errorf("airdrop %x: %w", k, err)
		}
		entries = append(entries, hashmap.Entry{Key: k, Value: v})
	}
	return hashmap.Build(entries)
}

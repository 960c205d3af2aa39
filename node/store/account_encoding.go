package store

import (
	"encoding/binary"
	"fmt"

	"github.com/ton-community/mintless-jetton/cell"
)

const accountKeyLen = 1 + 32

func accountKey(a cell.Address) []byte {
	// workchain(i8) || account id(32)
	out := make([]byte, accountKeyLen)
	out[0] = byte(a.Workchain)
	copy(out[1:], a.Hash[:])
	return out
}

func decodeAccountKey(b []byte) (cell.Address, error) {
	if len(b) != accountKeyLen {
		return cell.Address{}, fmt.Errorf("account key: expected %d bytes, got %d", accountKeyLen, len(b))
	}
	var a cell.Address
	a.Workchain = int8(b[0])
	copy(a.Hash[:], b[1:])
	return a, nil
}

// An account value is a bag of cells with exactly two roots: code, data.
func encodeAccount(a Account) ([]byte, error) {
	if a.Code == nil || a.Data == nil {
		return nil, fmt.Errorf("account: code and data required")
	}
	return cell.ToBOC(a.Code, a.Data)
}

func decodeAccount(b []byte) (Account, error) {
	roots, err := cell.ParseBOC(b)
	if err != nil {
		return Account{}, err
	}
	if len(roots) != 2 {
		return Account{}, fmt.Errorf("account: expected 2 roots, got %d", len(roots))
	}
	return Account{Code: roots[0], Data: roots[1]}, nil
}

// TxRecord is the log entry written for every processed message, accepted
// or not. Code is empty for accepted messages; External marks a message
// handed to an account this store does not host.
type TxRecord struct {
	Seq      uint64
	Now      uint64
	Src      cell.Address
	Dst      cell.Address
	Op       uint32
	HasOp    bool
	Deployed bool
	Bounced  bool
	External bool
	OutCount uint16
	Code     string
}

const (
	txFlagHasOp    = 1 << 0
	txFlagDeployed = 1 << 1
	txFlagBounced  = 1 << 2
	txFlagExternal = 1 << 3
)

func encodeTxRecord(r TxRecord) ([]byte, error) {
	if len(r.Code) > 0xff {
		return nil, fmt.Errorf("tx: code too long")
	}
	// now u64le | src 33 | dst 33 | op u32le | flags u8 | out_count u16le | code_len u8 | code
	out := make([]byte, 0, 8+2*accountKeyLen+4+1+2+1+len(r.Code))
	var tmp8 [8]byte
	var tmp4 [4]byte
	var tmp2 [2]byte
	binary.LittleEndian.PutUint64(tmp8[:], r.Now)
	out = append(out, tmp8[:]...)
	out = append(out, accountKey(r.Src)...)
	out = append(out, accountKey(r.Dst)...)
	binary.LittleEndian.PutUint32(tmp4[:], r.Op)
	out = append(out, tmp4[:]...)
	var flags byte
	if r.HasOp {
		flags |= txFlagHasOp
	}
	if r.Deployed {
		flags |= txFlagDeployed
	}
	if r.Bounced {
		flags |= txFlagBounced
	}
	if r.External {
		flags |= txFlagExternal
	}
	out = append(out, flags)
	binary.LittleEndian.PutUint16(tmp2[:], r.OutCount)
	out = append(out, tmp2[:]...)
	out = append(out, byte(len(r.Code))) // #nosec G115 -- len checked above.
	out = append(out, r.Code...)
	return out, nil
}

func decodeTxRecord(b []byte) (*TxRecord, error) {
	const fixed = 8 + 2*accountKeyLen + 4 + 1 + 2 + 1
	if len(b) < fixed {
		return nil, fmt.Errorf("tx: truncated")
	}
	off := 0
	var r TxRecord
	r.Now = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	src, err := decodeAccountKey(b[off : off+accountKeyLen])
	if err != nil {
		return nil, err
	}
	off += accountKeyLen
	dst, err := decodeAccountKey(b[off : off+accountKeyLen])
	if err != nil {
		return nil, err
	}
	off += accountKeyLen
	r.Src, r.Dst = src, dst
	r.Op = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	flags := b[off]
	off++
	r.HasOp = flags&txFlagHasOp != 0
	r.Deployed = flags&txFlagDeployed != 0
	r.Bounced = flags&txFlagBounced != 0
	r.External = flags&txFlagExternal != 0
	r.OutCount = binary.LittleEndian.Uint16(b[off : off+2])
	off += 2
	codeLen := int(b[off])
	off++
	if off+codeLen != len(b) {
		return nil, fmt.Errorf("tx: bad code len")
	}
	r.Code = string(b[off:])
	return &r, nil
}

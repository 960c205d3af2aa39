package jetton

import (
	"encoding/binary"

	"github.com/ton-community/mintless-jetton/cell"
	"github.com/ton-community/mintless-jetton/crypto"
)

// Initial wallet data is a fixed 808-bit image:
//
//	bit   0: status 0000, balance 0000
//	bit   8: owner  10 0 wc:int8 hash:256
//	bit 275: minter 10 0 wc:int8 hash:256
//	bit 542: merkle root
//	bit 798: salt:uint10
const (
	dataImageBits  = 808
	dataImageBytes = dataImageBits / 8

	ownerBitOff  = 8
	minterBitOff = ownerBitOff + 267
	rootBitOff   = minterBitOff + 267
	saltBitOff   = rootBitOff + 256

	// refs 0, level 0; bits descriptor floor(808/8)+ceil(808/8)
	dataD1 = 0x00
	dataD2 = 2 * dataImageBytes

	// state init: 2 refs; 5 bits 00110 plus the completion tag
	stateInitD1   = 0x02
	stateInitD2   = 0x01
	stateInitBits = 0x34
)

var hasher crypto.Provider = crypto.StdProvider{}

// putBits writes the low n bits of v into img starting at bit offset off.
func putBits(img []byte, off int, v uint64, n int) {
	for i := 0; i < n; i++ {
		pos := off + i
		mask := byte(0x80) >> uint(pos%8)
		if (v>>uint(n-1-i))&1 == 1 {
			img[pos/8] |= mask
		} else {
			img[pos/8] &^= mask
		}
	}
}

func putAddress(img []byte, off int, a cell.Address) {
	putBits(img, off, 0b100, 3)
	putBits(img, off+3, uint64(uint8(a.Workchain)), 8)
	for i, b := range a.Hash {
		putBits(img, off+11+8*i, uint64(b), 8)
	}
}

func (w *WalletClass) dataTemplate() [dataImageBytes]byte {
	var img [dataImageBytes]byte
	putAddress(img[:], minterBitOff, w.minter)
	for i, b := range w.merkleRoot {
		putBits(img[:], rootBitOff+8*i, uint64(b), 8)
	}
	return img
}

// StateInitAndSaltCheap computes the same result as StateInitAndSalt over a
// byte image of the data cell, hashing representation bytes directly. Only
// the two trailing bytes holding the salt change between candidates.
func (w *WalletClass) StateInitAndSaltCheap(owner cell.Address) (StateInit, uint16, error) {
	img := w.template
	putAddress(img[:], ownerBitOff, owner)

	var dataRepr [2 + dataImageBytes]byte
	dataRepr[0], dataRepr[1] = dataD1, dataD2
	copy(dataRepr[2:], img[:])

	var initRepr [3 + 2 + 2 + 32 + 32]byte
	initRepr[0], initRepr[1], initRepr[2] = stateInitD1, stateInitD2, stateInitBits
	binary.BigEndian.PutUint16(initRepr[3:], w.codeDepth)
	binary.BigEndian.PutUint16(initRepr[5:], 0)
	copy(initRepr[7:], w.codeHash[:])

	want := owner.ShardPrefix(ShardDepth)
	best, bestDist := -1, 0xff
	for salt := 0; salt < w.saltLimit; salt++ {
		putBits(dataRepr[2:], saltBitOff, uint64(salt), saltBits)
		dataHash := hasher.SHA256(dataRepr[:])
		copy(initRepr[39:], dataHash[:])
		h := hasher.SHA256(initRepr[:])
		dist := int((h[0] >> (8 - ShardDepth)) ^ want)
		if dist == 0 {
			best = salt
			break
		}
		if best < 0 || dist < bestDist {
			best, bestDist = salt, dist
		}
	}

	putBits(img[:], saltBitOff, uint64(best), saltBits)
	data, err := cell.New(false, img[:], dataImageBits, nil)
	if err != nil {
		return StateInit{}, 0, err
	}
	// #nosec G115 -- best < MaxSaltSearchLimit.
	return StateInit{Code: w.code, Data: data}, uint16(best), nil
}

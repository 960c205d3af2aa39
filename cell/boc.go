package cell

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"math/bits"
	"strings"
)

const (
	bocMagic = 0xb5ee9c72

	bocFlagIndex     = 0x80
	bocFlagCRC32C    = 0x40
	bocFlagCacheBits = 0x20

	// MaxBOCCells bounds decoding work for untrusted input.
	MaxBOCCells = 1 << 20
)

var (
	ErrBOC = errors.New("boc: malformed")

	castagnoli = crc32.MakeTable(crc32.Castagnoli)
)

func bocErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBOC, fmt.Sprintf(format, args...))
}

func readUintN(b []byte, off *int, n int) (uint64, error) {
	if n < 1 || n > 8 {
		return 0, bocErr("field width %d", n)
	}
	if *off+n > len(b) {
		return 0, bocErr("unexpected EOF")
	}
	var v uint64
	for _, x := range b[*off : *off+n] {
		v = v<<8 | uint64(x)
	}
	*off += n
	return v, nil
}

func appendUintN(dst []byte, v uint64, n int) []byte {
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*uint(i))))
	}
	return dst
}

func byteWidth(v uint64) int {
	n := (bits.Len64(v) + 7) / 8
	if n == 0 {
		return 1
	}
	return n
}

type rawCell struct {
	exotic bool
	mask   LevelMask
	data   []byte
	bitLen int
	refs   []int
}

// ParseBOC decodes a bag of cells and returns its roots. Cell references must
// point forward. Exotic Merkle cells are accepted without checking their
// declared hashes; that is left to the consumer.
func ParseBOC(b []byte) ([]*Cell, error) {
	off := 0
	magic, err := readUintN(b, &off, 4)
	if err != nil {
		return nil, err
	}
	if magic != bocMagic {
		return nil, bocErr("bad magic %08x", magic)
	}
	flags, err := readUintN(b, &off, 1)
	if err != nil {
		return nil, err
	}
	hasIdx := flags&bocFlagIndex != 0
	hasCRC := flags&bocFlagCRC32C != 0
	if flags&bocFlagCacheBits != 0 && !hasIdx {
		return nil, bocErr("cache bits without index")
	}
	size := int(flags & 0x07)
	if size < 1 || size > 4 {
		return nil, bocErr("ref size %d", size)
	}
	offBytes64, err := readUintN(b, &off, 1)
	if err != nil {
		return nil, err
	}
	offBytes := int(offBytes64)
	if offBytes < 1 || offBytes > 8 {
		return nil, bocErr("offset size %d", offBytes)
	}

	if hasCRC {
		if len(b) < 4 {
			return nil, bocErr("missing crc32c")
		}
		body := b[:len(b)-4]
		want := binary.LittleEndian.Uint32(b[len(b)-4:])
		if got := crc32.Checksum(body, castagnoli); got != want {
			return nil, bocErr("crc32c mismatch: got %08x want %08x", got, want)
		}
		b = body
	}

	cellCount, err := readUintN(b, &off, size)
	if err != nil {
		return nil, err
	}
	rootCount, err := readUintN(b, &off, size)
	if err != nil {
		return nil, err
	}
	absent, err := readUintN(b, &off, size)
	if err != nil {
		return nil, err
	}
	totSize, err := readUintN(b, &off, offBytes)
	if err != nil {
		return nil, err
	}
	if cellCount == 0 || cellCount > MaxBOCCells {
		return nil, bocErr("cell count %d", cellCount)
	}
	if rootCount == 0 || rootCount > cellCount {
		return nil, bocErr("root count %d", rootCount)
	}
	if absent != 0 {
		return nil, bocErr("absent cells not supported")
	}
	rest := uint64(len(b) - off)
	if totSize > rest {
		return nil, bocErr("cell data size %d exceeds payload %d", totSize, rest)
	}
	// every cell carries at least its two descriptor bytes
	if cellCount > totSize/2 {
		return nil, bocErr("cell count %d does not fit in %d data bytes", cellCount, totSize)
	}
	if rootCount > (rest-totSize)/uint64(size) {
		return nil, bocErr("root count %d does not fit in payload", rootCount)
	}
	n := int(cellCount)

	rootIdx := make([]int, rootCount)
	for i := range rootIdx {
		v, err := readUintN(b, &off, size)
		if err != nil {
			return nil, err
		}
		if v >= cellCount {
			return nil, bocErr("root index %d out of range", v)
		}
		rootIdx[i] = int(v)
	}
	if hasIdx {
		skip := n * offBytes
		if off+skip > len(b) {
			return nil, bocErr("truncated index")
		}
		off += skip
	}
	if uint64(len(b)-off) != totSize {
		return nil, bocErr("cell data size %d, header says %d", len(b)-off, totSize)
	}

	raws := make([]rawCell, n)
	for i := 0; i < n; i++ {
		rc, err := readRawCell(b, &off, size, i, n)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		raws[i] = rc
	}

	cells := make([]*Cell, n)
	for i := n - 1; i >= 0; i-- {
		rc := raws[i]
		refs := make([]*Cell, len(rc.refs))
		for j, ri := range rc.refs {
			refs[j] = cells[ri]
		}
		c, err := New(rc.exotic, rc.data, rc.bitLen, refs)
		if err != nil {
			return nil, fmt.Errorf("%w: cell %d: %v", ErrBOC, i, err)
		}
		if c.mask != rc.mask {
			return nil, bocErr("cell %d: level mask %d, computed %d", i, rc.mask, c.mask)
		}
		cells[i] = c
	}

	roots := make([]*Cell, len(rootIdx))
	for i, ri := range rootIdx {
		roots[i] = cells[ri]
	}
	return roots, nil
}

func readRawCell(b []byte, off *int, size, self, count int) (rawCell, error) {
	d1, err := readUintN(b, off, 1)
	if err != nil {
		return rawCell{}, err
	}
	d2, err := readUintN(b, off, 1)
	if err != nil {
		return rawCell{}, err
	}
	refCount := int(d1 & 0x07)
	if refCount > MaxRefs {
		return rawCell{}, bocErr("ref count %d", refCount)
	}
	if d1&0x10 != 0 {
		return rawCell{}, bocErr("stored hashes not supported")
	}
	rc := rawCell{
		exotic: d1&0x08 != 0,
		mask:   LevelMask(d1 >> 5),
	}
	byteLen := int(d2+1) / 2
	if *off+byteLen > len(b) {
		return rawCell{}, bocErr("unexpected EOF in data")
	}
	rc.data = append([]byte(nil), b[*off:*off+byteLen]...)
	*off += byteLen
	rc.bitLen = byteLen * 8
	if d2%2 == 1 {
		last := rc.data[byteLen-1]
		if last == 0 {
			return rawCell{}, bocErr("missing completion tag")
		}
		rc.bitLen -= bits.TrailingZeros8(last) + 1
	}
	rc.refs = make([]int, refCount)
	for j := range rc.refs {
		v, err := readUintN(b, off, size)
		if err != nil {
			return rawCell{}, err
		}
		if v <= uint64(self) || v >= uint64(count) {
			return rawCell{}, bocErr("ref %d -> %d breaks ordering", self, v)
		}
		rc.refs[j] = int(v)
	}
	return rc, nil
}

// ToBOC serializes roots (deduplicated by representation hash) in
// topological order with a CRC32C trailer and no index.
func ToBOC(roots ...*Cell) ([]byte, error) {
	if len(roots) == 0 {
		return nil, bocErr("no roots")
	}
	order, index := topoOrder(roots)
	size := byteWidth(uint64(len(order)))

	var body []byte
	for _, c := range order {
		body = append(body, c.refsDescriptor(c.mask), c.bitsDescriptor())
		body = append(body, c.paddedData()...)
		for _, r := range c.refs {
			body = appendUintN(body, uint64(index[r.Hash(MaxLevel)]), size)
		}
	}
	offBytes := byteWidth(uint64(len(body)))

	out := make([]byte, 0, 6+4*size+offBytes+len(body)+4)
	out = binary.BigEndian.AppendUint32(out, bocMagic)
	// #nosec G115 -- size <= 3 for MaxBOCCells and offBytes <= 8.
	out = append(out, bocFlagCRC32C|byte(size), byte(offBytes))
	out = appendUintN(out, uint64(len(order)), size)
	out = appendUintN(out, uint64(len(roots)), size)
	out = appendUintN(out, 0, size)
	out = appendUintN(out, uint64(len(body)), offBytes)
	for _, r := range roots {
		out = appendUintN(out, uint64(index[r.Hash(MaxLevel)]), size)
	}
	out = append(out, body...)
	out = binary.LittleEndian.AppendUint32(out, crc32.Checksum(out, castagnoli))
	return out, nil
}

func topoOrder(roots []*Cell) ([]*Cell, map[[32]byte]int) {
	seen := make(map[[32]byte]bool)
	var post []*Cell
	var visit func(c *Cell)
	visit = func(c *Cell) {
		h := c.Hash(MaxLevel)
		if seen[h] {
			return
		}
		seen[h] = true
		for _, r := range c.refs {
			visit(r)
		}
		post = append(post, c)
	}
	for _, r := range roots {
		visit(r)
	}
	order := make([]*Cell, len(post))
	index := make(map[[32]byte]int, len(post))
	for i, c := range post {
		j := len(post) - 1 - i
		order[j] = c
		index[c.Hash(MaxLevel)] = j
	}
	return order, index
}

// FromBOC decodes a single-root bag of cells.
func FromBOC(b []byte) (*Cell, error) {
	roots, err := ParseBOC(b)
	if err != nil {
		return nil, err
	}
	if len(roots) != 1 {
		return nil, bocErr("expected 1 root, got %d", len(roots))
	}
	return roots[0], nil
}

func FromBOCHex(s string) (*Cell, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: hex: %v", ErrBOC, err)
	}
	return FromBOC(b)
}

func ToBOCHex(c *Cell) (string, error) {
	b, err := ToBOC(c)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

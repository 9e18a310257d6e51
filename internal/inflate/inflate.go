// Package inflate implements a standards-compliant DEFLATE (RFC 1951)
// decoder for binary FBX's compressed arrays, producing exactly the
// caller-declared output size.
//
// Grounded on the teacher's (deepteams-webp) internal/lossless Huffman
// table builder and internal/bitio's 64-bit-prefetch bit reader: both
// VP8L and DEFLATE build canonical Huffman codes from a per-symbol
// code-length array and consume bits LSB-first, so the table/reader
// machinery transfers directly; only the block structure (stored/fixed/
// dynamic, length/distance alphabets, the sliding window) is new.
package inflate

import (
	"fmt"
)

// Options configures the decoder, matching spec.md §4.4's "fast bits" and
// "force fast" knobs.
type Options struct {
	// FastBits sizes the root Huffman lookup table (default 9).
	FastBits int
	// ForceFast refuses inputs whose dynamic tables would need a
	// second-level sub-table (a code longer than FastBits), and refuses a
	// FastBits setting above 10.
	ForceFast bool
}

// DefaultOptions returns the decoder's default configuration.
func DefaultOptions() Options { return Options{FastBits: 9} }

// Error is returned for malformed DEFLATE streams, identifying the bad
// symbol or table construction step (spec.md §7's DEFLATE_ERROR).
type Error struct {
	Code string
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("inflate: %s: %s", e.Code, e.Msg) }

func newError(code, msg string) *Error { return &Error{Code: code, Msg: msg} }

var (
	lengthBase = [29]int{3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31, 35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258}
	lengthExtra = [29]int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0}
	distBase   = [30]int{1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193, 257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577}
	distExtra  = [30]int{0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13}
	clOrder    = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}
)

var (
	fixedLit  *table
	fixedDist *table
)

func init() {
	litLens := make([]int, 288)
	for i := 0; i < 144; i++ {
		litLens[i] = 8
	}
	for i := 144; i < 256; i++ {
		litLens[i] = 9
	}
	for i := 256; i < 280; i++ {
		litLens[i] = 7
	}
	for i := 280; i < 288; i++ {
		litLens[i] = 8
	}
	t, err := buildTable(9, litLens)
	if err != nil {
		panic(err)
	}
	fixedLit = t

	distLens := make([]int, 30)
	for i := range distLens {
		distLens[i] = 5
	}
	dt, err := buildTable(5, distLens)
	if err != nil {
		panic(err)
	}
	fixedDist = dt
}

// Decode decompresses a DEFLATE stream from src, returning exactly
// outSize bytes. It fails with an *Error identifying the bad symbol or
// table when the stream is malformed, or a truncation error if src runs
// out before outSize bytes have been produced.
func Decode(src []byte, outSize int, opts Options) ([]byte, error) {
	rootBits := opts.FastBits
	if rootBits <= 0 {
		rootBits = 9
	}
	if opts.ForceFast && rootBits > 10 {
		return nil, newError("FAST_TABLE_OVERFLOW", "requested fast-bits exceeds fast path capacity")
	}

	out := make([]byte, 0, outSize)
	br := newBitReader(src)

	for {
		if len(out) >= outSize {
			break
		}
		bfinal := br.readBits(1)
		btype := br.readBits(2)

		var err error
		switch btype {
		case 0:
			out, err = decodeStored(br, out, outSize)
		case 1:
			out, err = decodeHuffmanBlock(br, fixedLit, fixedDist, out, outSize)
		case 2:
			litTable, distTable, derr := readDynamicTables(br, rootBits)
			if derr != nil {
				return nil, derr
			}
			if opts.ForceFast && (len(litTable.entries) > 1<<uint(litTable.rootBits) || len(distTable.entries) > 1<<uint(distTable.rootBits)) {
				return nil, newError("FAST_TABLE_OVERFLOW", "dynamic Huffman table needs a second-level sub-table")
			}
			out, err = decodeHuffmanBlock(br, litTable, distTable, out, outSize)
		default:
			return nil, newError("BAD_BTYPE", "reserved block type 3")
		}
		if err != nil {
			return nil, err
		}
		if bfinal == 1 {
			break
		}
		if br.exhausted() {
			return nil, newError("TRUNCATED", "stream ended before BFINAL block")
		}
	}

	if len(out) != outSize {
		return nil, newError("SIZE_MISMATCH", fmt.Sprintf("produced %d bytes, expected %d", len(out), outSize))
	}
	return out, nil
}

func decodeStored(br *bitReader, out []byte, outSize int) ([]byte, error) {
	br.align()
	if br.pos+4 > br.length {
		return nil, newError("TRUNCATED", "stored block header truncated")
	}
	lenLo := br.readByteDirect()
	lenHi := br.readByteDirect()
	nlenLo := br.readByteDirect()
	nlenHi := br.readByteDirect()
	n := int(lenLo) | int(lenHi)<<8
	nlen := int(nlenLo) | int(nlenHi)<<8
	if n != (^nlen & 0xFFFF) {
		return nil, newError("BAD_STORED_LEN", "stored block LEN/NLEN mismatch")
	}
	for i := 0; i < n; i++ {
		if len(out) >= outSize {
			break
		}
		out = append(out, br.readByteDirect())
	}
	return out, nil
}

func decodeHuffmanBlock(br *bitReader, lit, dist *table, out []byte, outSize int) ([]byte, error) {
	for {
		if len(out) >= outSize {
			return out, nil
		}
		sym, err := readSymbol(br, lit)
		if err != nil {
			return nil, newError("BAD_SYMBOL", err.Error())
		}
		switch {
		case sym < 256:
			out = append(out, byte(sym))
		case sym == 256:
			return out, nil
		default:
			li := int(sym) - 257
			if li < 0 || li >= len(lengthBase) {
				return nil, newError("BAD_LENGTH_SYMBOL", fmt.Sprintf("length symbol %d out of range", sym))
			}
			length := lengthBase[li] + int(br.readBits(lengthExtra[li]))

			dsym, err := readSymbol(br, dist)
			if err != nil {
				return nil, newError("BAD_DIST_SYMBOL", err.Error())
			}
			if int(dsym) >= len(distBase) {
				return nil, newError("BAD_DIST_SYMBOL", fmt.Sprintf("distance symbol %d out of range", dsym))
			}
			distance := distBase[dsym] + int(br.readBits(distExtra[dsym]))
			if distance > len(out) {
				return nil, newError("BAD_DISTANCE", "back-reference distance exceeds output produced so far")
			}
			start := len(out) - distance
			for i := 0; i < length; i++ {
				if len(out) >= outSize {
					return out, nil
				}
				out = append(out, out[start+i])
			}
		}
	}
}

func readDynamicTables(br *bitReader, rootBits int) (*table, *table, error) {
	hlit := int(br.readBits(5)) + 257
	hdist := int(br.readBits(5)) + 1
	hclen := int(br.readBits(4)) + 4

	var clLens [19]int
	for i := 0; i < hclen; i++ {
		clLens[clOrder[i]] = int(br.readBits(3))
	}
	clTable, err := buildTable(7, clLens[:])
	if err != nil {
		return nil, nil, newError("BAD_CODE_LENGTH_TABLE", err.Error())
	}

	allLens := make([]int, hlit+hdist)
	i := 0
	for i < len(allLens) {
		sym, err := readSymbol(br, clTable)
		if err != nil {
			return nil, nil, newError("BAD_CODE_LENGTH_SYMBOL", err.Error())
		}
		switch {
		case sym < 16:
			allLens[i] = int(sym)
			i++
		case sym == 16:
			if i == 0 {
				return nil, nil, newError("BAD_REPEAT", "repeat-previous with no previous code length")
			}
			n := int(br.readBits(2)) + 3
			prev := allLens[i-1]
			for j := 0; j < n && i < len(allLens); j++ {
				allLens[i] = prev
				i++
			}
		case sym == 17:
			n := int(br.readBits(3)) + 3
			for j := 0; j < n && i < len(allLens); j++ {
				allLens[i] = 0
				i++
			}
		case sym == 18:
			n := int(br.readBits(7)) + 11
			for j := 0; j < n && i < len(allLens); j++ {
				allLens[i] = 0
				i++
			}
		default:
			return nil, nil, newError("BAD_CODE_LENGTH_SYMBOL", fmt.Sprintf("symbol %d out of range", sym))
		}
	}

	litTable, err := buildTable(rootBits, allLens[:hlit])
	if err != nil {
		return nil, nil, newError("BAD_LITERAL_TABLE", err.Error())
	}
	distLens := allLens[hlit:]
	// A single-distance-code stream (common for tiny arrays) still needs a
	// table with at least one real entry; zero-length distance alphabets
	// are legal when every literal is < 256 (no back-references emitted).
	allZero := true
	for _, l := range distLens {
		if l != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		distLens = []int{1}
	}
	distTable, err := buildTable(min(rootBits, 6), distLens)
	if err != nil {
		return nil, nil, newError("BAD_DISTANCE_TABLE", err.Error())
	}

	return litTable, distTable, nil
}

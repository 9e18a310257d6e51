// Package binfbx reads binary FBX: the 23-byte magic + version header,
// then a recursive tree of nodes (name, typed values, child nodes) per
// spec.md §4.5.
//
// Grounded on the teacher's internal/container/parser.go: both walk a
// byte slice reading a little-endian length-prefixed header, dispatching
// on a short tag, and recursing into a payload — container.Parser's
// ParseRIFFHeader/ReadChunkHeader/PaddedSize are the structural ancestors
// of Header/readNode/readValue here. Compressed arrays are inflated with
// internal/inflate (itself grounded on the teacher's Huffman code).
package binfbx

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/oxyfbx/oxyfbx/internal/errs"
	"github.com/oxyfbx/oxyfbx/internal/inflate"
	"github.com/oxyfbx/oxyfbx/internal/nodetree"
	"github.com/oxyfbx/oxyfbx/internal/strpool"
)

func float32FromBits(bits uint32) float32 { return math.Float32frombits(bits) }
func float64FromBits(bits uint64) float64 { return math.Float64frombits(bits) }

// Magic is the 23-byte signature every binary FBX file begins with.
var Magic = []byte("Kaydara FBX Binary  \x00\x1a\x00")

const maxNestingDepth = 32

// Options configures the tokenizer, matching spec.md §6's relevant knobs.
type Options struct {
	MaxNodes     int // 0 = unlimited
	InflateFast  int // DEFLATE "fast bits"; 0 = decoder default
}

// Tokenizer parses a complete binary FBX byte buffer into a nodetree.Node
// forest. Binary FBX is read whole into memory by the caller (via
// bytesrc.Reader) before tokenizing, since node offsets are absolute into
// the buffer; this mirrors container.Parser's own "parse(data []byte)"
// entry point.
type Tokenizer struct {
	data    []byte
	pos     int
	version int
	wide    bool // 64-bit offsets/sizes (version >= 7500)
	opts    Options
	pool    *strpool.Pool
	nodeCount int
}

// New creates a Tokenizer over data, verifying the magic header and
// detecting the version/offset width. pool is used to intern node names
// and string values.
func New(data []byte, pool *strpool.Pool, opts Options) (*Tokenizer, *errs.Error) {
	if len(data) < 27 {
		return nil, errs.New(errs.KindTruncatedFile, "file shorter than binary FBX header")
	}
	for i, b := range Magic {
		if data[i] != b {
			return nil, errs.New(errs.KindUnrecognizedFileFormat, "binary FBX magic mismatch")
		}
	}
	version := int(binary.LittleEndian.Uint32(data[23:27]))
	return &Tokenizer{
		data:    data,
		pos:     27,
		version: version,
		wide:    version >= 7500,
		opts:    opts,
		pool:    pool,
	}, nil
}

// Version returns the detected file version (e.g. 7400).
func (t *Tokenizer) Version() int { return t.version }

// ParseAll reads every top-level node until the terminating empty node (or
// end of buffer), returning the forest.
func (t *Tokenizer) ParseAll() ([]*nodetree.Node, *errs.Error) {
	var nodes []*nodetree.Node
	for {
		if t.pos >= len(t.data) {
			break
		}
		n, end, err := t.readNode(0)
		if err != nil {
			return nil, err
		}
		if n == nil {
			// Terminating zero node.
			t.pos = end
			break
		}
		nodes = append(nodes, n)
		t.pos = end
	}
	return nodes, nil
}

func (t *Tokenizer) offsetWidth() int {
	if t.wide {
		return 8
	}
	return 4
}

func (t *Tokenizer) readUint(pos int) (uint64, int) {
	if t.wide {
		return binary.LittleEndian.Uint64(t.data[pos:]), 8
	}
	return uint64(binary.LittleEndian.Uint32(t.data[pos:])), 4
}

// readNode reads one node header plus its values and children. A node
// whose end_offset and all header fields are zero is the scope terminator
// (returns nil, pos-after-header, nil).
func (t *Tokenizer) readNode(depth int) (*nodetree.Node, int, *errs.Error) {
	if depth > maxNestingDepth {
		return nil, 0, errs.New(errs.KindBadNodeNesting, fmt.Sprintf("node nesting exceeds %d", maxNestingDepth))
	}
	w := t.offsetWidth()
	headerLen := w*3 + 1
	if t.pos+headerLen > len(t.data) {
		return nil, 0, errs.New(errs.KindTruncatedFile, "node header truncated")
	}

	endOffset, _ := t.readUint(t.pos)
	numValues, _ := t.readUint(t.pos + w)
	valuesSize, _ := t.readUint(t.pos + 2*w)
	nameLen := int(t.data[t.pos+3*w])
	p := t.pos + headerLen

	if endOffset == 0 && numValues == 0 && valuesSize == 0 && nameLen == 0 {
		return nil, p, nil
	}

	t.nodeCount++
	if t.opts.MaxNodes > 0 && t.nodeCount > t.opts.MaxNodes {
		return nil, 0, errs.New(errs.KindTruncatedFile, "node count exceeds configured cap")
	}

	if p+nameLen > len(t.data) {
		return nil, 0, errs.New(errs.KindTruncatedFile, "node name truncated")
	}
	nameBytes := t.data[p : p+nameLen]
	p += nameLen

	nameHandle, ierr := t.pool.Intern(nameBytes, true)
	if ierr != nil {
		return nil, 0, ierr
	}

	node := &nodetree.Node{Name: nameHandle, NameStr: t.pool.String(nameHandle)}

	for i := uint64(0); i < numValues; i++ {
		v, np, err := t.readValue(p)
		if err != nil {
			return nil, 0, err
		}
		node.Values = append(node.Values, v)
		p = np
	}

	childrenEnd := int(endOffset)
	if childrenEnd > len(t.data) {
		return nil, 0, errs.New(errs.KindTruncatedFile, "node end_offset beyond buffer")
	}
	for p < childrenEnd {
		oldPos := t.pos
		t.pos = p
		child, np, err := t.readNode(depth + 1)
		t.pos = oldPos
		if err != nil {
			return nil, 0, err
		}
		if child == nil {
			p = np
			break
		}
		node.Children = append(node.Children, child)
		p = np
	}

	return node, childrenEnd, nil
}

func (t *Tokenizer) readValue(p int) (nodetree.Value, int, *errs.Error) {
	if p >= len(t.data) {
		return nodetree.Value{}, 0, errs.New(errs.KindTruncatedFile, "value type code truncated")
	}
	code := t.data[p]
	p++
	switch code {
	case 'Y': // int16
		if p+2 > len(t.data) {
			return nodetree.Value{}, 0, truncated("int16 value")
		}
		v := int64(int16(binary.LittleEndian.Uint16(t.data[p:])))
		return nodetree.Value{Type: nodetree.ValInt16, Int64: v}, p + 2, nil
	case 'C': // bool (1 byte, low bit)
		if p+1 > len(t.data) {
			return nodetree.Value{}, 0, truncated("bool value")
		}
		return nodetree.Value{Type: nodetree.ValBool, Int64: int64(t.data[p] & 1)}, p + 1, nil
	case 'I': // int32
		if p+4 > len(t.data) {
			return nodetree.Value{}, 0, truncated("int32 value")
		}
		v := int64(int32(binary.LittleEndian.Uint32(t.data[p:])))
		return nodetree.Value{Type: nodetree.ValInt32, Int64: v}, p + 4, nil
	case 'L': // int64
		if p+8 > len(t.data) {
			return nodetree.Value{}, 0, truncated("int64 value")
		}
		v := int64(binary.LittleEndian.Uint64(t.data[p:]))
		return nodetree.Value{Type: nodetree.ValInt64, Int64: v}, p + 8, nil
	case 'F': // float32
		if p+4 > len(t.data) {
			return nodetree.Value{}, 0, truncated("float32 value")
		}
		bits := binary.LittleEndian.Uint32(t.data[p:])
		f := float32FromBits(bits)
		return nodetree.Value{Type: nodetree.ValFloat32, Float: float64(f)}, p + 4, nil
	case 'D': // float64
		if p+8 > len(t.data) {
			return nodetree.Value{}, 0, truncated("float64 value")
		}
		bits := binary.LittleEndian.Uint64(t.data[p:])
		f := float64FromBits(bits)
		return nodetree.Value{Type: nodetree.ValFloat64, Float: f}, p + 8, nil
	case 'S', 'R': // string or raw blob, both length-prefixed
		if p+4 > len(t.data) {
			return nodetree.Value{}, 0, truncated("string/raw length")
		}
		n := int(binary.LittleEndian.Uint32(t.data[p:]))
		p += 4
		if p+n > len(t.data) {
			return nodetree.Value{}, 0, truncated("string/raw content")
		}
		content := t.data[p : p+n]
		if code == 'R' {
			cp := append([]byte(nil), content...)
			return nodetree.Value{Type: nodetree.ValRaw, Raw: cp}, p + n, nil
		}
		h, ierr := t.pool.Intern(content, true)
		if ierr != nil {
			return nodetree.Value{}, 0, ierr
		}
		return nodetree.Value{Type: nodetree.ValString, Str: h}, p + n, nil
	case 'i', 'l', 'f', 'd', 'b':
		return t.readArray(code, p)
	default:
		return nodetree.Value{}, 0, errs.New(errs.KindBadValueType, fmt.Sprintf("unknown value type code %q", code))
	}
}

// readArray reads an array header (count, encoding, compressed length)
// and its payload, applying DEFLATE when encoding == 1, per spec.md §4.5.
func (t *Tokenizer) readArray(code byte, p int) (nodetree.Value, int, *errs.Error) {
	if p+12 > len(t.data) {
		return nodetree.Value{}, 0, truncated("array header")
	}
	count := int(binary.LittleEndian.Uint32(t.data[p:]))
	encoding := binary.LittleEndian.Uint32(t.data[p+4:])
	compressedLen := int(binary.LittleEndian.Uint32(t.data[p+8:]))
	p += 12

	elemSize := arrayElemSize(code)
	plainSize := count * elemSize

	var payload []byte
	switch encoding {
	case 0:
		if p+plainSize > len(t.data) {
			return nodetree.Value{}, 0, truncated("array payload")
		}
		payload = t.data[p : p+plainSize]
		p += plainSize
	case 1:
		if p+compressedLen > len(t.data) {
			return nodetree.Value{}, 0, truncated("compressed array payload")
		}
		raw, ierr := inflate.Decode(t.data[p:p+compressedLen], plainSize, inflate.Options{FastBits: t.opts.InflateFast})
		if ierr != nil {
			return nodetree.Value{}, 0, errs.Newf(errs.KindDeflateError, "array deflate: %v", ierr)
		}
		payload = raw
		p += compressedLen
	default:
		return nodetree.Value{}, 0, errs.New(errs.KindBadArrayType, fmt.Sprintf("unknown array encoding %d", encoding))
	}

	v, err := decodeArrayPayload(code, count, payload)
	if err != nil {
		return nodetree.Value{}, 0, err
	}
	return v, p, nil
}

func arrayElemSize(code byte) int {
	switch code {
	case 'i', 'f':
		return 4
	case 'l', 'd':
		return 8
	case 'b':
		return 1
	}
	return 0
}

func decodeArrayPayload(code byte, count int, payload []byte) (nodetree.Value, *errs.Error) {
	switch code {
	case 'i':
		out := make([]int32, count)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(payload[i*4:]))
		}
		return nodetree.Value{Type: nodetree.ValArrayInt32, ArrI32: out}, nil
	case 'l':
		out := make([]int64, count)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(payload[i*8:]))
		}
		return nodetree.Value{Type: nodetree.ValArrayInt64, ArrI64: out}, nil
	case 'f':
		out := make([]float32, count)
		for i := range out {
			out[i] = float32FromBits(binary.LittleEndian.Uint32(payload[i*4:]))
		}
		return nodetree.Value{Type: nodetree.ValArrayFloat32, ArrF32: out}, nil
	case 'd':
		out := make([]float64, count)
		for i := range out {
			out[i] = float64FromBits(binary.LittleEndian.Uint64(payload[i*8:]))
		}
		return nodetree.Value{Type: nodetree.ValArrayFloat64, ArrF64: out}, nil
	case 'b':
		out := make([]bool, count)
		for i := range out {
			out[i] = payload[i]&1 != 0
		}
		return nodetree.Value{Type: nodetree.ValArrayBool, ArrB: out}, nil
	}
	return nodetree.Value{}, errs.New(errs.KindBadArrayType, "unsupported array element type")
}

func truncated(what string) *errs.Error {
	return errs.New(errs.KindTruncatedFile, what+" truncated")
}

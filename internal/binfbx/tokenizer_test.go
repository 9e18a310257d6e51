package binfbx

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"math"
	"testing"

	"github.com/oxyfbx/oxyfbx/internal/strpool"
)

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.BestCompression)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

// buildMinimalFile assembles a binary FBX buffer with one top-level node
// "Top" holding a single int32 value 42, followed by the terminating node.
func buildMinimalFile(t *testing.T, version int) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(Magic)
	var verBuf [4]byte
	binary.LittleEndian.PutUint32(verBuf[:], uint32(version))
	buf.Write(verBuf[:])

	wide := version >= 7500
	w := 4
	if wide {
		w = 8
	}

	name := []byte("Top")
	// value payload: type code 'I' + 4 bytes
	valuePayload := []byte{'I', 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(valuePayload[1:], 42)

	headerLen := w*3 + 1
	nodeStart := buf.Len()
	endOffset := nodeStart + headerLen + len(name) + len(valuePayload) + headerLen // + terminator

	writeUint := func(v uint64) {
		if wide {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], v)
			buf.Write(b[:])
		} else {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(v))
			buf.Write(b[:])
		}
	}

	writeUint(uint64(endOffset))
	writeUint(1) // num_values
	writeUint(uint64(len(valuePayload)))
	buf.WriteByte(byte(len(name)))
	buf.Write(name)
	buf.Write(valuePayload)

	// terminator (all zero header)
	writeUint(0)
	writeUint(0)
	writeUint(0)
	buf.WriteByte(0)

	return buf.Bytes()
}

func TestParseAllMinimalFile(t *testing.T) {
	for _, version := range []int{7400, 7500} {
		data := buildMinimalFile(t, version)
		pool := strpool.New(strpool.Replace)
		tok, err := New(data, pool, Options{})
		if err != nil {
			t.Fatalf("version %d: New: %v", version, err)
		}
		if tok.Version() != version {
			t.Fatalf("version mismatch: got %d want %d", tok.Version(), version)
		}
		nodes, perr := tok.ParseAll()
		if perr != nil {
			t.Fatalf("version %d: ParseAll: %v", version, perr)
		}
		if len(nodes) != 1 || nodes[0].NameStr != "Top" {
			t.Fatalf("version %d: unexpected nodes: %#v", version, nodes)
		}
		if len(nodes[0].Values) != 1 || nodes[0].Values[0].AsInt() != 42 {
			t.Fatalf("version %d: unexpected values: %#v", version, nodes[0].Values)
		}
	}
}

func TestBadMagicRejected(t *testing.T) {
	pool := strpool.New(strpool.Replace)
	_, err := New([]byte("not an fbx file at all, long enough"), pool, Options{})
	if err == nil {
		t.Fatal("expected magic mismatch error")
	}
}

func TestCompressedArrayRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Magic)
	var verBuf [4]byte
	binary.LittleEndian.PutUint32(verBuf[:], 7400)
	buf.Write(verBuf[:])

	name := []byte("Arr")
	floats := []float64{1, 2, 3, 4, 5}
	var plain bytes.Buffer
	for _, f := range floats {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
		plain.Write(b[:])
	}
	compressed := deflate(t, plain.Bytes())

	// value payload: type code 'd' + array header (count, encoding=1,
	// compressed length) + compressed bytes.
	var valuePayload bytes.Buffer
	valuePayload.WriteByte('d')
	var b4 [4]byte
	binary.LittleEndian.PutUint32(b4[:], uint32(len(floats)))
	valuePayload.Write(b4[:])
	binary.LittleEndian.PutUint32(b4[:], 1)
	valuePayload.Write(b4[:])
	binary.LittleEndian.PutUint32(b4[:], uint32(len(compressed)))
	valuePayload.Write(b4[:])
	valuePayload.Write(compressed)

	headerLen := 4*3 + 1
	nodeStart := buf.Len()
	endOffset := nodeStart + headerLen + len(name) + valuePayload.Len() + headerLen

	binary.LittleEndian.PutUint32(b4[:], uint32(endOffset))
	buf.Write(b4[:])
	binary.LittleEndian.PutUint32(b4[:], 1)
	buf.Write(b4[:])
	binary.LittleEndian.PutUint32(b4[:], uint32(valuePayload.Len()))
	buf.Write(b4[:])
	buf.WriteByte(byte(len(name)))
	buf.Write(name)
	buf.Write(valuePayload.Bytes())
	binary.LittleEndian.PutUint32(b4[:], 0)
	buf.Write(b4[:])
	buf.Write(b4[:])
	buf.Write(b4[:])
	buf.WriteByte(0)

	pool := strpool.New(strpool.Replace)
	tok, err := New(buf.Bytes(), pool, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	nodes, perr := tok.ParseAll()
	if perr != nil {
		t.Fatalf("ParseAll: %v", perr)
	}
	got := nodes[0].Values[0].ArrF64
	if len(got) != len(floats) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(floats))
	}
	for i := range floats {
		if got[i] != floats[i] {
			t.Fatalf("index %d: got %v want %v", i, got[i], floats[i])
		}
	}
}

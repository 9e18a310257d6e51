package inflate

import (
	"bytes"
	"compress/flate"
	"testing"
)

// deflateBytes produces a real DEFLATE stream using the standard library's
// encoder so the decoder under test can be checked against known-good
// output, the same "round trip through a reference encoder" approach the
// teacher's own codec tests use (internal/bitio/reader_lossless_test.go
// round-trips through the package's own writer).
func deflateBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		t.Fatalf("flate.NewWriter: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("flate write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("flate close: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte("hello, world"),
		bytes.Repeat([]byte("abcabcabcabc"), 100),
		make([]byte, 4096), // all zero, highly compressible
	}
	for i, want := range cases {
		compressed := deflateBytes(t, want)
		got, err := Decode(compressed, len(want), DefaultOptions())
		if err != nil {
			t.Fatalf("case %d: Decode failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("case %d: round trip mismatch", i)
		}
	}
}

func TestDecodeStoredBlock(t *testing.T) {
	want := []byte("no compression benefit here")
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.NoCompression)
	w.Write(want)
	w.Close()

	got, err := Decode(buf.Bytes(), len(want), DefaultOptions())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("stored-block mismatch: got %q want %q", got, want)
	}
}

func TestDecodeSizeMismatchFails(t *testing.T) {
	compressed := deflateBytes(t, []byte("short"))
	if _, err := Decode(compressed, 9999, DefaultOptions()); err == nil {
		t.Fatal("expected an error when declared size exceeds stream contents")
	}
}

func TestForceFastRejectsOversizedTable(t *testing.T) {
	opts := Options{FastBits: 15, ForceFast: true}
	if _, err := Decode(nil, 0, opts); err == nil {
		t.Fatal("expected ForceFast to reject a fast-bits setting beyond fast-path capacity")
	}
}

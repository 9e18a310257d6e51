// Package asciifbx tokenizes text-format FBX: name/number/string lexing,
// `{ }` scopes, and `*N { a, b, c }` arrays, producing the same
// internal/nodetree.Node shape the binary tokenizer produces (spec.md
// §4.6).
//
// Grounded on the teacher's internal/container byte-scanning style
// (sequential cursor + peek/advance helpers) generalized from binary chunk
// walking to free-form text lexing; the two-level Huffman/array decoding
// machinery of internal/inflate has no role here since ASCII FBX never
// compresses array payloads.
package asciifbx

import (
	"math"
	"strconv"
	"strings"

	"github.com/oxyfbx/oxyfbx/internal/errs"
	"github.com/oxyfbx/oxyfbx/internal/nodetree"
	"github.com/oxyfbx/oxyfbx/internal/strpool"
)

const maxNestingDepth = 32

// Options configures tolerance knobs for malformed numeric literals.
type Options struct {
	// AllowNanInf accepts "nan"/"-nan"/"inf"/"-inf" literals where a float
	// is expected, producing the corresponding IEEE value instead of
	// failing the parse.
	AllowNanInf bool
}

// Tokenizer lexes an in-memory ASCII FBX buffer.
type Tokenizer struct {
	data []byte
	pos  int
	opts Options
	pool *strpool.Pool
}

// New creates a Tokenizer over data.
func New(data []byte, pool *strpool.Pool, opts Options) *Tokenizer {
	return &Tokenizer{data: data, opts: opts, pool: pool}
}

// ParseAll lexes the entire buffer into a forest of top-level nodes.
func (t *Tokenizer) ParseAll() ([]*nodetree.Node, *errs.Error) {
	var nodes []*nodetree.Node
	t.skipSpaceAndComments()
	for !t.atEnd() {
		n, err := t.readNode(0)
		if err != nil {
			return nil, err
		}
		if n == nil {
			break
		}
		nodes = append(nodes, n)
		t.skipSpaceAndComments()
	}
	return nodes, nil
}

func (t *Tokenizer) atEnd() bool { return t.pos >= len(t.data) }

func (t *Tokenizer) peekByte() byte {
	if t.atEnd() {
		return 0
	}
	return t.data[t.pos]
}

func (t *Tokenizer) skipSpaceAndComments() {
	for !t.atEnd() {
		c := t.data[t.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			t.pos++
		case c == ';':
			for !t.atEnd() && t.data[t.pos] != '\n' {
				t.pos++
			}
		default:
			return
		}
	}
}

// readNode reads "Name: v1, v2, ... { children }" (braces and values are
// both optional).
func (t *Tokenizer) readNode(depth int) (*nodetree.Node, *errs.Error) {
	if depth > maxNestingDepth {
		return nil, errs.New(errs.KindBadNodeNesting, "ascii node nesting exceeds limit").WithOffset(int64(t.pos))
	}
	t.skipSpaceAndComments()
	if t.atEnd() || t.peekByte() == '}' {
		return nil, nil
	}

	name := t.readIdentifier()
	if name == "" {
		return nil, errs.New(errs.KindUnrecognizedFileFormat, "expected node name").WithOffset(int64(t.pos))
	}
	nameHandle, ierr := t.pool.Intern([]byte(name), true)
	if ierr != nil {
		return nil, ierr
	}
	node := &nodetree.Node{Name: nameHandle, NameStr: t.pool.String(nameHandle)}

	t.skipSpaceAndComments()
	if t.peekByte() == ':' {
		t.pos++
	}

	for {
		t.skipInlineSpace()
		if t.atEnd() {
			break
		}
		c := t.peekByte()
		if c == '\n' || c == '\r' || c == '{' || c == '}' || c == ';' {
			break
		}
		v, err := t.readValue()
		if err != nil {
			return nil, err
		}
		node.Values = append(node.Values, v)
		t.skipInlineSpace()
		if t.peekByte() == ',' {
			t.pos++
			continue
		}
		break
	}

	t.skipSpaceAndComments()
	if t.peekByte() == '{' {
		t.pos++
		for {
			t.skipSpaceAndComments()
			if t.peekByte() == '}' {
				t.pos++
				break
			}
			if t.atEnd() {
				return nil, errs.New(errs.KindTruncatedFile, "unterminated ascii scope").WithOffset(int64(t.pos))
			}
			child, err := t.readNode(depth + 1)
			if err != nil {
				return nil, err
			}
			if child == nil {
				continue
			}
			node.Children = append(node.Children, child)
		}
	}

	return node, nil
}

func (t *Tokenizer) skipInlineSpace() {
	for !t.atEnd() && (t.data[t.pos] == ' ' || t.data[t.pos] == '\t') {
		t.pos++
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (t *Tokenizer) readIdentifier() string {
	start := t.pos
	for !t.atEnd() && isIdentByte(t.data[t.pos]) {
		t.pos++
	}
	return string(t.data[start:t.pos])
}

// readValue reads one scalar value: a quoted string, an asterisk-prefixed
// typed array "*N { a,b,c }", or a bare numeric/boolean token.
func (t *Tokenizer) readValue() (nodetree.Value, *errs.Error) {
	c := t.peekByte()
	switch {
	case c == '"':
		return t.readString()
	case c == '*':
		return t.readArray()
	default:
		return t.readScalarToken()
	}
}

func (t *Tokenizer) readString() (nodetree.Value, *errs.Error) {
	t.pos++ // opening quote
	var sb strings.Builder
	for {
		if t.atEnd() {
			return nodetree.Value{}, errs.New(errs.KindTruncatedFile, "unterminated string literal").WithOffset(int64(t.pos))
		}
		c := t.data[t.pos]
		if c == '"' {
			t.pos++
			break
		}
		if c == '&' && t.pos+1 < len(t.data) {
			// &quot; &amp; &lt; &gt; &apos; escapes used by ASCII FBX strings.
			rest := string(t.data[t.pos:])
			switch {
			case strings.HasPrefix(rest, "&quot;"):
				sb.WriteByte('"')
				t.pos += 6
				continue
			case strings.HasPrefix(rest, "&amp;"):
				sb.WriteByte('&')
				t.pos += 5
				continue
			case strings.HasPrefix(rest, "&lt;"):
				sb.WriteByte('<')
				t.pos += 4
				continue
			case strings.HasPrefix(rest, "&gt;"):
				sb.WriteByte('>')
				t.pos += 4
				continue
			case strings.HasPrefix(rest, "&apos;"):
				sb.WriteByte('\'')
				t.pos += 6
				continue
			}
		}
		sb.WriteByte(c)
		t.pos++
	}
	h, ierr := t.pool.Intern([]byte(sb.String()), true)
	if ierr != nil {
		return nodetree.Value{}, ierr
	}
	return nodetree.Value{Type: nodetree.ValString, Str: h}, nil
}

// readArray reads "*N { a, b, c }" or "*N { a: a,b,c, d,e,f }" (the layout
// the ASCII exporter uses for long arrays, a trailing "a:" label on each
// physical line that carries no semantic meaning).
func (t *Tokenizer) readArray() (nodetree.Value, *errs.Error) {
	t.pos++ // '*'
	start := t.pos
	for !t.atEnd() && t.data[t.pos] >= '0' && t.data[t.pos] <= '9' {
		t.pos++
	}
	countStr := string(t.data[start:t.pos])
	declared, _ := strconv.Atoi(countStr)

	t.skipSpaceAndComments()
	if t.peekByte() != '{' {
		return nodetree.Value{}, errs.New(errs.KindBadArrayType, "expected '{' after array count").WithOffset(int64(t.pos))
	}
	t.pos++
	t.skipSpaceAndComments()
	if t.peekByte() == 'a' {
		// Consume the "a:" line-label token preceding element lists.
		save := t.pos
		ident := t.readIdentifier()
		t.skipInlineSpace()
		if ident == "a" && t.peekByte() == ':' {
			t.pos++
		} else {
			t.pos = save
		}
	}

	var floats []float64
	var ints []int64
	allInt := true
	for {
		t.skipSpaceAndComments()
		if t.peekByte() == '}' {
			t.pos++
			break
		}
		if t.atEnd() {
			return nodetree.Value{}, errs.New(errs.KindTruncatedFile, "unterminated array").WithOffset(int64(t.pos))
		}
		v, err := t.readScalarToken()
		if err != nil {
			return nodetree.Value{}, err
		}
		switch v.Type {
		case nodetree.ValInt64, nodetree.ValInt32, nodetree.ValBool, nodetree.ValInt16:
			ints = append(ints, v.Int64)
			floats = append(floats, float64(v.Int64))
		default:
			allInt = false
			floats = append(floats, v.AsFloat())
		}
		t.skipSpaceAndComments()
		if t.peekByte() == ',' {
			t.pos++
			continue
		}
		if t.peekByte() == 'a' {
			// Next physical line's "a:" label; treat like a separator.
			save := t.pos
			ident := t.readIdentifier()
			t.skipInlineSpace()
			if ident == "a" && t.peekByte() == ':' {
				t.pos++
				continue
			}
			t.pos = save
		}
	}

	if declared != 0 && declared != len(floats) {
		return nodetree.Value{}, errs.Newf(errs.KindBadArraySize, "array declares %d elements, found %d", declared, len(floats))
	}

	if allInt {
		out := make([]int64, len(ints))
		copy(out, ints)
		return nodetree.Value{Type: nodetree.ValArrayInt64, ArrI64: out}, nil
	}
	return nodetree.Value{Type: nodetree.ValArrayFloat64, ArrF64: floats}, nil
}

// readScalarToken reads one bare token (number, bool letter, or NaN/Inf
// literal) up to the next delimiter.
func (t *Tokenizer) readScalarToken() (nodetree.Value, *errs.Error) {
	start := t.pos
	for !t.atEnd() {
		c := t.data[t.pos]
		if c == ',' || c == '}' || c == '{' || c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == ';' {
			break
		}
		t.pos++
	}
	tok := string(t.data[start:t.pos])
	if tok == "" {
		return nodetree.Value{}, errs.New(errs.KindUnrecognizedFileFormat, "expected a value token").WithOffset(int64(t.pos))
	}

	lower := strings.ToLower(tok)
	if t.opts.AllowNanInf {
		switch lower {
		case "nan", "-nan":
			return nodetree.Value{Type: nodetree.ValFloat64, Float: math.NaN()}, nil
		case "inf":
			return nodetree.Value{Type: nodetree.ValFloat64, Float: math.Inf(1)}, nil
		case "-inf":
			return nodetree.Value{Type: nodetree.ValFloat64, Float: math.Inf(-1)}, nil
		}
	}

	if tok == "T" || tok == "Y" {
		return nodetree.Value{Type: nodetree.ValBool, Int64: 1}, nil
	}
	if tok == "F" || tok == "N" {
		return nodetree.Value{Type: nodetree.ValBool, Int64: 0}, nil
	}

	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return nodetree.Value{Type: nodetree.ValInt64, Int64: i}, nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return nodetree.Value{Type: nodetree.ValFloat64, Float: f}, nil
	}
	return nodetree.Value{}, errs.Newf(errs.KindUnrecognizedFileFormat, "unparseable token %q", tok)
}

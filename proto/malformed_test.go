package proto

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// frame builds a raw 9P frame with a correct size field.
func frame(mtype uint8, tag uint16, body ...[]byte) []byte {
	size := 7
	for _, b := range body {
		size += len(b)
	}
	buf := make([]byte, 7, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	buf[4] = mtype
	binary.LittleEndian.PutUint16(buf[5:7], tag)
	for _, b := range body {
		buf = append(buf, b...)
	}
	return buf
}

func str(s string) []byte {
	b := make([]byte, 2+len(s))
	binary.LittleEndian.PutUint16(b, uint16(len(s)))
	copy(b[2:], s)
	return b
}

func u16(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
func u32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }

// Malformed frames are fatal: framing cannot be trusted afterwards,
// so the decoder stops with an error instead of resynchronizing.
func TestMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"zero size", []byte{0, 0, 0, 0}},
		{"short size", []byte{5, 0, 0, 0, 100, 0}},
		{"invalid type", frame(90, 1)},
		{"Terror", frame(106, 1, str("no such message"))},
		{"undersized Tattach", frame(msgTattach, 1, u32(0))},
		{"oversized Rclunk", frame(msgRclunk, 1, []byte{0})},
		{"walk name with slash", frame(msgTwalk, 1, u32(0), u32(1), u16(1), str("a/b"))},
		{"walk missing names", frame(msgTwalk, 1, u32(0), u32(1), u16(2), str("a"))},
		{"walk trailing junk", frame(msgTwalk, 1, u32(0), u32(1), u16(0), str("a"))},
		{"string past message end", frame(msgTversion, 1, u32(8192), u16(50))},
		{"invalid utf8 version", frame(msgTversion, 1, u32(8192), str("9P\xff\xfe"))},
		{"NUL in string", frame(msgTversion, 1, u32(8192), str("9P\x002000"))},
		{"Rread count mismatch", frame(msgRread, 1, u32(10), []byte("abc"))},
		{"Twrite count mismatch", frame(msgTwrite, 1, u32(0), make([]byte, 8), u32(99), []byte("abc"))},
		{"stat wrong inner size", frame(msgTwstat, 1, u32(0), u16(uint16(minStatLen)),
			append(u16(0), make([]byte, minStatLen-2)...))},
		{"bad qid type in Rattach", frame(msgRattach, 1, []byte{0x55}, u32(0), make([]byte, 8))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(bytes.NewReader(tt.raw))
			if dec.Next() {
				t.Fatalf("decoded %s from malformed input", dec.Msg())
			}
			if dec.Err() == nil {
				t.Fatal("no error reported")
			}
			t.Logf("rejected: %v", dec.Err())
		})
	}
}

func TestMaxSize(t *testing.T) {
	raw := frame(msgTwrite, 1, u32(0), make([]byte, 8), u32(512), make([]byte, 512))
	dec := NewDecoder(bytes.NewReader(raw))
	dec.MaxSize = 64
	if dec.Next() {
		t.Fatal("decoded message larger than msize")
	}
	if dec.Err() != ErrMaxSize {
		t.Fatalf("err = %v, want %v", dec.Err(), ErrMaxSize)
	}
}

// A clean end of stream is not an error; a stream cut mid-message
// is.
func TestTruncatedStream(t *testing.T) {
	raw := frame(msgTclunk, 1, u32(5))

	dec := NewDecoder(bytes.NewReader(raw))
	if !dec.Next() {
		t.Fatal(dec.Err())
	}
	if dec.Next() {
		t.Fatal("decoded message past end of stream")
	}
	if err := dec.Err(); err != nil {
		t.Fatalf("clean EOF reported as error: %v", err)
	}

	dec = NewDecoder(bytes.NewReader(raw[:len(raw)-2]))
	if dec.Next() {
		t.Fatal("decoded truncated message")
	}
	if dec.Err() == nil {
		t.Fatal("mid-message EOF not reported")
	}
}

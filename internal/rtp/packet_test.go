package rtp

import "testing"

func basicHeader(seq uint16, flags byte) []byte {
	buf := make([]byte, 12)
	buf[0] = 0x80 | flags // version 2, no padding/extension/csrc by default
	buf[1] = 0x60         // marker + payload type, irrelevant here
	buf[2] = byte(seq >> 8)
	buf[3] = byte(seq)
	return buf
}

func TestParse_TooShort(t *testing.T) {
	_, err := Parse(make([]byte, 11))
	if err != ErrMalformed {
		t.Fatalf("want ErrMalformed, got %v", err)
	}
}

func TestParse_WrongVersion(t *testing.T) {
	buf := basicHeader(1, 0)
	buf[0] = 0x40 // version 1
	if _, err := Parse(buf); err != ErrMalformed {
		t.Fatalf("want ErrMalformed for bad version, got %v", err)
	}
}

func TestParse_PlainPayload(t *testing.T) {
	buf := append(basicHeader(5, 0), []byte("payload")...)
	p, err := Parse(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(p.Payload) != "payload" {
		t.Fatalf("payload = %q", p.Payload)
	}
	if p.SequenceNumber != 5 {
		t.Fatalf("seq = %d", p.SequenceNumber)
	}
}

func TestParse_CSRCList(t *testing.T) {
	buf := basicHeader(1, 0x02) // CC=2
	buf = append(buf, make([]byte, 8)...)
	buf = append(buf, []byte("abc")...)
	p, err := Parse(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(p.Payload) != "abc" {
		t.Fatalf("payload = %q", p.Payload)
	}
	if p.CSRCCount != 2 {
		t.Fatalf("csrc count = %d", p.CSRCCount)
	}
}

func TestParse_Extension(t *testing.T) {
	buf := basicHeader(1, 0x10) // extension bit
	ext := make([]byte, 4)
	ext[2] = 0
	ext[3] = 1 // 1 word of extension data
	buf = append(buf, ext...)
	buf = append(buf, make([]byte, 4)...) // the 1 extension word
	buf = append(buf, []byte("xyz")...)
	p, err := Parse(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(p.Payload) != "xyz" {
		t.Fatalf("payload = %q", p.Payload)
	}
}

func TestParse_Padding(t *testing.T) {
	buf := basicHeader(1, 0x20) // padding bit
	buf = append(buf, []byte("hello")...)
	buf = append(buf, 2) // last byte: 2 bytes of padding (including itself)
	p, err := Parse(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(p.Payload) != "hello"[:len("hello")-1] {
		t.Fatalf("payload = %q", p.Payload)
	}
}

func TestParse_NegativePayloadIsMalformed(t *testing.T) {
	buf := basicHeader(1, 0x20)
	buf = append(buf, 200) // padding larger than any payload
	if _, err := Parse(buf); err != ErrMalformed {
		t.Fatalf("want ErrMalformed, got %v", err)
	}
}

func TestNextSequence_Wraps(t *testing.T) {
	if got := NextSequence(0xFFFF); got != 0 {
		t.Fatalf("NextSequence(0xFFFF) = %d, want 0", got)
	}
}

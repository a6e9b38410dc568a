// Package rtp implements the minimal slice of RFC 3550 framing the gateway
// needs: enough of the fixed header to locate and validate the payload
// span of a single datagram, and the sequence number used for duplicate
// and congestion detection. It does not reorder or recover packets —
// sequence tracking here is a diagnostic, not a correction.
package rtp

import (
	"encoding/binary"
	"errors"
)

// minHeaderLen is the fixed RTP header size in bytes (RFC 3550 §5.1).
const minHeaderLen = 12

// ErrMalformed is returned for any datagram that fails the RTP framing
// checks: too short, wrong version, or a payload span that would be
// negative once the CSRC list, extension header, and padding are
// accounted for.
var ErrMalformed = errors.New("rtp: malformed packet")

// Packet is a transient view over a single received datagram. Payload
// aliases the input buffer; it is only valid until the caller reuses the
// buffer for the next receive.
type Packet struct {
	Version        uint8
	Padding        bool
	Extension      bool
	CSRCCount      int
	SequenceNumber uint16
	Payload        []byte
}

// Parse validates buf as an RTP packet and locates its payload span.
//
// buf[0] bit layout: version (2 bits) | padding (1) | extension (1) |
// CSRC count (4 bits). A CSRC list of CSRCCount*4 bytes follows the fixed
// header; if the extension bit is set, a 4-byte extension header follows
// the CSRC list, whose bytes 2-3 hold the extension length in 32-bit
// words. If the padding bit is set, the last byte of the datagram is the
// padding length, subtracted from the payload.
func Parse(buf []byte) (Packet, error) {
	if len(buf) < minHeaderLen {
		return Packet{}, ErrMalformed
	}

	version := buf[0] >> 6
	if version != 2 {
		return Packet{}, ErrMalformed
	}

	p := Packet{
		Version:        version,
		Padding:        buf[0]&0x20 != 0,
		Extension:      buf[0]&0x10 != 0,
		CSRCCount:      int(buf[0] & 0x0F),
		SequenceNumber: binary.BigEndian.Uint16(buf[2:4]),
	}

	payloadStart := minHeaderLen + p.CSRCCount*4
	if p.Extension {
		if len(buf) < payloadStart+4 {
			return Packet{}, ErrMalformed
		}
		extWords := binary.BigEndian.Uint16(buf[payloadStart+2 : payloadStart+4])
		payloadStart += 4 + 4*int(extWords)
	}
	if payloadStart > len(buf) {
		return Packet{}, ErrMalformed
	}

	payloadLen := len(buf) - payloadStart
	if p.Padding {
		if len(buf) == 0 {
			return Packet{}, ErrMalformed
		}
		payloadLen -= int(buf[len(buf)-1])
	}
	if payloadLen < 0 {
		return Packet{}, ErrMalformed
	}

	p.Payload = buf[payloadStart : payloadStart+payloadLen]
	return p, nil
}

// NextSequence returns the sequence number that should immediately follow
// seq, wrapping at 16 bits.
func NextSequence(seq uint16) uint16 {
	return seq + 1
}

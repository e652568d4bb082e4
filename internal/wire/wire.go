package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("certsync: corrupt result entry")
	magic4     = [...]byte{'C', 'S', 'R', 'E'}
)

// Entry is a fulfilled query response as kept by the result cache.
type Entry struct {
	Gen         uint64
	FulfilledAt time.Time
	ContentType string
	Body        []byte
}

const hdrLen = 4 + 1 + 8 + 8 + 2

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames e as:
//
//	magic(4) | ver(1) | gen(u64 be) | fulfilledAt(i64 be, unix nanos) |
//	ctLen(u16 be) | contentType(ctLen) | blen(u32 be) | body(blen)
func Encode(e Entry) ([]byte, error) {
	if len(e.ContentType) > 0xFFFF {
		return nil, errors.New("certsync: content type too long")
	}

	var buf bytes.Buffer
	buf.Grow(hdrLen + len(e.ContentType) + 4 + len(e.Body))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], e.Gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(e.FulfilledAt.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.ContentType)))
	buf.Write(u2[:])
	buf.WriteString(e.ContentType)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Body)))
	buf.Write(u4[:])
	buf.Write(e.Body)

	return buf.Bytes(), nil
}

// Decode parses a framed entry. Body aliases b.
func Decode(b []byte) (Entry, error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return Entry{}, ErrCorrupt
	}

	off := 5
	gen := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	nanos := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	ctLen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if ctLen > len(b)-off {
		return Entry{}, ErrCorrupt
	}
	ct := string(b[off : off+ctLen])
	off += ctLen

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	blen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// exact framing: no trailing bytes
	if blen < 0 || blen != len(b)-off {
		return Entry{}, ErrCorrupt
	}

	return Entry{
		Gen:         gen,
		FulfilledAt: time.Unix(0, nanos),
		ContentType: ct,
		Body:        b[off : off+blen],
	}, nil
}

package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version   byte = 2
	kindEntry byte = 1

	hdrLen = 4 + 1 + 1 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("segcache: corrupt entry")
	magic4     = [...]byte{'S', 'E', 'G', 'C'}
)

// Meta is the frame header. A zero ExpiresAt never expires.
type Meta struct {
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its deadline at now.
func (m Meta) Expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && !now.Before(m.ExpiresAt)
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

func millis(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixMilli())
}

// Entry: magic(4) | ver(1) | kind(1) | storedAt(i64 be, unix ms) |
// expiresAt(i64 be, unix ms; 0 = never) | vlen(u32 be) | payload(vlen)
func Encode(m Meta, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], millis(m.StoredAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], millis(m.ExpiresAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode validates the frame and returns its header and payload.
// The payload aliases b.
func Decode(b []byte) (Meta, []byte, error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Meta{}, nil, ErrCorrupt
	}
	off := 6

	stored := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	expires := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // trailing junk is corruption too
		return Meta{}, nil, ErrCorrupt
	}

	m := Meta{StoredAt: time.UnixMilli(stored)}
	if expires != 0 {
		m.ExpiresAt = time.UnixMilli(expires)
	}
	return m, b[off : off+vlen], nil
}

package wire

import (
	"fmt"
	"strings"
)

const (
	// MaxPacketSize is the classic non-EDNS UDP DNS payload limit.
	MaxPacketSize = 512

	// maxJumps bounds how many compression pointers a single name may follow.
	maxJumps = 5

	maxLabelLen = 63
)

// Buffer is a fixed-capacity packet buffer with a cursor. It is the only way
// the codec touches packet bytes: every access is bounds checked and fails
// with ErrBufferOverflow instead of panicking.
//
// Reads are limited to the bytes that were loaded or written (the high-water
// mark); writes are limited to MaxPacketSize.
type Buffer struct {
	buf [MaxPacketSize]byte
	pos int
	end int
}

// NewBuffer returns an empty buffer ready for writing.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferFrom returns a buffer holding a copy of data, positioned at 0.
func NewBufferFrom(data []byte) (*Buffer, error) {
	if len(data) > MaxPacketSize {
		return nil, fmt.Errorf("packet of %d bytes exceeds %d: %w", len(data), MaxPacketSize, ErrBufferOverflow)
	}
	b := &Buffer{end: len(data)}
	copy(b.buf[:], data)
	return b, nil
}

// Pos returns the current cursor position.
func (b *Buffer) Pos() int {
	return b.pos
}

// Len returns the number of readable bytes.
func (b *Buffer) Len() int {
	return b.end
}

// Bytes returns a copy of the readable bytes.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, b.end)
	copy(out, b.buf[:b.end])
	return out
}

// Step advances the cursor by n readable bytes.
func (b *Buffer) Step(n int) error {
	return b.Seek(b.pos + n)
}

// Seek moves the cursor to pos, which may equal the end of readable data.
func (b *Buffer) Seek(pos int) error {
	if pos < 0 || pos > b.end {
		return fmt.Errorf("seek to %d of %d: %w", pos, b.end, ErrBufferOverflow)
	}
	b.pos = pos
	return nil
}

// Get returns the byte at pos without moving the cursor.
func (b *Buffer) Get(pos int) (byte, error) {
	if pos < 0 || pos >= b.end {
		return 0, fmt.Errorf("read at %d of %d: %w", pos, b.end, ErrBufferOverflow)
	}
	return b.buf[pos], nil
}

// GetRange returns n bytes starting at start without moving the cursor.
func (b *Buffer) GetRange(start, n int) ([]byte, error) {
	if start < 0 || n < 0 || start+n > b.end {
		return nil, fmt.Errorf("read %d bytes at %d of %d: %w", n, start, b.end, ErrBufferOverflow)
	}
	return b.buf[start : start+n], nil
}

// Read returns the byte at the cursor and advances it.
func (b *Buffer) Read() (byte, error) {
	v, err := b.Get(b.pos)
	if err != nil {
		return 0, err
	}
	b.pos++
	return v, nil
}

// ReadU16 reads a big-endian uint16.
func (b *Buffer) ReadU16() (uint16, error) {
	raw, err := b.GetRange(b.pos, 2)
	if err != nil {
		return 0, err
	}
	b.pos += 2
	return uint16(raw[0])<<8 | uint16(raw[1]), nil
}

// ReadU32 reads a big-endian uint32.
func (b *Buffer) ReadU32() (uint32, error) {
	raw, err := b.GetRange(b.pos, 4)
	if err != nil {
		return 0, err
	}
	b.pos += 4
	return uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3]), nil
}

// ReadQName reads a possibly compressed domain name at the cursor.
//
// A length byte with both top bits set is a pointer: the low 14 bits of the
// two-byte field are an absolute offset to continue from. After the first
// jump the cursor stays just past the pointer. At most maxJumps pointers are
// followed. Labels keep their original case and are joined with ".".
func (b *Buffer) ReadQName() (string, error) {
	pos := b.pos
	jumped := false
	jumps := 0
	var labels []string

	for {
		length, err := b.Get(pos)
		if err != nil {
			return "", err
		}

		switch length & 0xC0 {
		case 0xC0:
			if jumps >= maxJumps {
				return "", fmt.Errorf("more than %d compression jumps: %w", maxJumps, ErrMalformedName)
			}
			low, err := b.Get(pos + 1)
			if err != nil {
				return "", err
			}
			if !jumped {
				if err := b.Seek(pos + 2); err != nil {
					return "", err
				}
			}
			pos = int(length&0x3F)<<8 | int(low)
			jumped = true
			jumps++
			continue
		case 0x00:
		default:
			return "", fmt.Errorf("reserved label type 0x%02x: %w", length&0xC0, ErrMalformedName)
		}

		pos++
		if length == 0 {
			break
		}
		label, err := b.GetRange(pos, int(length))
		if err != nil {
			return "", err
		}
		labels = append(labels, string(label))
		pos += int(length)
	}

	if !jumped {
		if err := b.Seek(pos); err != nil {
			return "", err
		}
	}
	return strings.Join(labels, "."), nil
}

// Set overwrites the already-written byte at pos.
func (b *Buffer) Set(pos int, v byte) error {
	if pos < 0 || pos >= b.end {
		return fmt.Errorf("set at %d of %d: %w", pos, b.end, ErrBufferOverflow)
	}
	b.buf[pos] = v
	return nil
}

// SetU16 overwrites two already-written bytes at pos with a big-endian uint16.
func (b *Buffer) SetU16(pos int, v uint16) error {
	if err := b.Set(pos, byte(v>>8)); err != nil {
		return err
	}
	return b.Set(pos+1, byte(v))
}

// Write appends a byte at the cursor.
func (b *Buffer) Write(v byte) error {
	if b.pos >= MaxPacketSize {
		return fmt.Errorf("write at %d of %d: %w", b.pos, MaxPacketSize, ErrBufferOverflow)
	}
	b.buf[b.pos] = v
	b.pos++
	if b.pos > b.end {
		b.end = b.pos
	}
	return nil
}

// WriteBytes appends p at the cursor. Nothing is written if p does not fit.
func (b *Buffer) WriteBytes(p []byte) error {
	if b.pos+len(p) > MaxPacketSize {
		return fmt.Errorf("write %d bytes at %d of %d: %w", len(p), b.pos, MaxPacketSize, ErrBufferOverflow)
	}
	for _, v := range p {
		if err := b.Write(v); err != nil {
			return err
		}
	}
	return nil
}

// WriteU16 appends a big-endian uint16.
func (b *Buffer) WriteU16(v uint16) error {
	return b.WriteBytes([]byte{byte(v >> 8), byte(v)})
}

// WriteU32 appends a big-endian uint32.
func (b *Buffer) WriteU32(v uint32) error {
	return b.WriteBytes([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// WriteQName appends name as uncompressed length-prefixed labels followed by
// the root label. A single trailing dot is accepted; empty interior labels are not.
func (b *Buffer) WriteQName(name string) error {
	name = strings.TrimSuffix(name, ".")
	if name != "" {
		for _, label := range strings.Split(name, ".") {
			if label == "" {
				return fmt.Errorf("empty label in %q: %w", name, ErrMalformedName)
			}
			if len(label) > maxLabelLen {
				return fmt.Errorf("%q is %d bytes: %w", label, len(label), ErrLabelTooLong)
			}
			if err := b.Write(byte(len(label))); err != nil {
				return err
			}
			if err := b.WriteBytes([]byte(label)); err != nil {
				return err
			}
		}
	}
	return b.Write(0)
}

package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies index snapshots (ASCII: "CBIX").
	MagicNumber uint32 = 0x43424958
	// Version is the current snapshot format version.
	Version uint16 = 1
	// HeaderSize is the encoded size of FileHeader.
	HeaderSize = 40
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrTruncated      = errors.New("truncated snapshot")
)

// FileHeader precedes the payload of every snapshot.
type FileHeader struct {
	Magic       uint32
	Version     uint16
	Metric      uint8
	Compression CompressionType
	Dimension   uint32
	Count       uint64
	RawSize     uint64 // payload size before compression
	StoredSize  uint64 // payload size as written
	Checksum    uint32 // CRC32 of the stored payload
}

// MarshalBinary encodes the header.
func (h *FileHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:], h.Magic)
	binary.LittleEndian.PutUint16(b[4:], h.Version)
	b[6] = h.Metric
	b[7] = uint8(h.Compression)
	binary.LittleEndian.PutUint32(b[8:], h.Dimension)
	binary.LittleEndian.PutUint64(b[12:], h.Count)
	binary.LittleEndian.PutUint64(b[20:], h.RawSize)
	binary.LittleEndian.PutUint64(b[28:], h.StoredSize)
	binary.LittleEndian.PutUint32(b[36:], h.Checksum)
	return b, nil
}

// UnmarshalBinary decodes and validates the header.
func (h *FileHeader) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: header is %d bytes", ErrTruncated, len(b))
	}
	h.Magic = binary.LittleEndian.Uint32(b[0:])
	if h.Magic != MagicNumber {
		return fmt.Errorf("%w: 0x%08x", ErrInvalidMagic, h.Magic)
	}
	h.Version = binary.LittleEndian.Uint16(b[4:])
	if h.Version != Version {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, h.Version)
	}
	h.Metric = b[6]
	h.Compression = CompressionType(b[7])
	h.Dimension = binary.LittleEndian.Uint32(b[8:])
	h.Count = binary.LittleEndian.Uint64(b[12:])
	h.RawSize = binary.LittleEndian.Uint64(b[20:])
	h.StoredSize = binary.LittleEndian.Uint64(b[28:])
	h.Checksum = binary.LittleEndian.Uint32(b[36:])
	return nil
}

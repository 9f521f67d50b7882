package persistence

import (
	"fmt"
	"hash/crc32"

	"github.com/cytomine/cbir/distance"
	"github.com/cytomine/cbir/internal/flat"
)

// Encode serializes an index into a snapshot.
func Encode(m *flat.IDMap, ct CompressionType) ([]byte, error) {
	raw := m.AppendPayload(make([]byte, 0, flat.PayloadSize(m.Len(), m.Dimension())))
	stored, err := Compress(raw, ct)
	if err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}

	h := FileHeader{
		Magic:       MagicNumber,
		Version:     Version,
		Metric:      uint8(m.Metric()),
		Compression: ct,
		Dimension:   uint32(m.Dimension()),
		Count:       uint64(m.Len()),
		RawSize:     uint64(len(raw)),
		StoredSize:  uint64(len(stored)),
		Checksum:    crc32.ChecksumIEEE(stored),
	}
	hb, _ := h.MarshalBinary()

	out := make([]byte, 0, HeaderSize+len(stored))
	out = append(out, hb...)
	return append(out, stored...), nil
}

// Decode parses a snapshot produced by Encode.
func Decode(data []byte) (*flat.IDMap, *FileHeader, error) {
	var h FileHeader
	if err := h.UnmarshalBinary(data); err != nil {
		return nil, nil, err
	}
	stored := data[HeaderSize:]
	if uint64(len(stored)) != h.StoredSize {
		return nil, nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrTruncated, len(stored), h.StoredSize)
	}
	if sum := crc32.ChecksumIEEE(stored); sum != h.Checksum {
		return nil, nil, &ChecksumMismatchError{Expected: h.Checksum, Actual: sum}
	}
	raw, err := Decompress(stored, h.Compression, int(h.RawSize))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress payload: %w", err)
	}
	m, err := flat.DecodePayload(int(h.Dimension), distance.Metric(h.Metric), int(h.Count), raw)
	if err != nil {
		return nil, nil, err
	}
	return m, &h, nil
}

// ChecksumMismatchError reports a payload whose CRC32 differs from the header.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: header 0x%08x, payload 0x%08x", e.Expected, e.Actual)
}

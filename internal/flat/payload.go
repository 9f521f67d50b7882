package flat

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cytomine/cbir/distance"
)

// PayloadSize returns the encoded size of count rows of dimension dim.
func PayloadSize(count, dim int) int {
	return count*8 + count*dim*4
}

// AppendPayload appends the little-endian row payload to dst: all labels
// first, then all vector components in row order.
func (m *IDMap) AppendPayload(dst []byte) []byte {
	for _, l := range m.labels {
		dst = binary.LittleEndian.AppendUint64(dst, uint64(l))
	}
	for _, f := range m.data {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}

// DecodePayload rebuilds an index from a payload written by AppendPayload.
func DecodePayload(dim int, metric distance.Metric, count int, p []byte) (*IDMap, error) {
	if count < 0 {
		return nil, fmt.Errorf("flat: negative row count %d", count)
	}
	if want := PayloadSize(count, dim); len(p) != want {
		return nil, fmt.Errorf("flat: payload is %d bytes, want %d", len(p), want)
	}
	m, err := New(dim, metric)
	if err != nil {
		return nil, err
	}
	m.labels = make([]int64, count)
	for i := range m.labels {
		l := int64(binary.LittleEndian.Uint64(p[i*8:]))
		if l < 0 {
			return nil, fmt.Errorf("%w: %d", ErrNegativeLabel, l)
		}
		if m.live.Contains(uint64(l)) {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateLabel, l)
		}
		m.labels[i] = l
		m.live.Add(uint64(l))
	}
	p = p[count*8:]
	m.data = make([]float32, count*dim)
	for i := range m.data {
		m.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
	}
	return m, nil
}

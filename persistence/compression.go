package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType is the block codec of a snapshot payload. Values are
// persisted in the header.
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionLZ4
	CompressionZSTD
)

var compressionNames = [...]string{CompressionNone: "none", CompressionLZ4: "lz4", CompressionZSTD: "zstd"}

func (c CompressionType) String() string {
	if int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression reads a configured codec name. The empty string means none.
func ParseCompression(s string) (CompressionType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return CompressionNone, nil
	}
	for c, n := range compressionNames {
		if n == name {
			return CompressionType(c), nil
		}
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

// BlockSize is the uncompressed size of every block but the last.
const BlockSize = 256 * 1024

// Each block starts with its uncompressed and stored sizes. A stored size of
// 0 marks a block kept raw because compression did not pay off.
const blockHeaderSize = 8

type blockCodec interface {
	encode(src []byte) ([]byte, error)
	decode(src []byte, size int) ([]byte, error)
}

func codecFor(ct CompressionType) (blockCodec, error) {
	switch ct {
	case CompressionLZ4:
		return lz4Codec{}, nil
	case CompressionZSTD:
		return zstdCodec{}, nil
	}
	return nil, fmt.Errorf("unsupported compression %v", ct)
}

// Compress splits data into blocks and compresses each with ct. Blocks that
// do not shrink to 90% of their size are stored raw.
func Compress(data []byte, ct CompressionType) ([]byte, error) {
	if ct == CompressionNone {
		return data, nil
	}
	codec, err := codecFor(ct)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(data)/2+blockHeaderSize)
	for len(data) > 0 {
		block := data[:min(BlockSize, len(data))]
		data = data[len(block):]

		packed, err := codec.encode(block)
		if err != nil {
			return nil, err
		}
		out = binary.LittleEndian.AppendUint32(out, uint32(len(block)))
		if len(packed) == 0 || len(packed)*10 > len(block)*9 {
			out = binary.LittleEndian.AppendUint32(out, 0)
			out = append(out, block...)
			continue
		}
		out = binary.LittleEndian.AppendUint32(out, uint32(len(packed)))
		out = append(out, packed...)
	}
	return out, nil
}

// Decompress reverses Compress and checks the result is rawSize bytes long.
func Decompress(data []byte, ct CompressionType, rawSize int) ([]byte, error) {
	if ct == CompressionNone {
		return data, nil
	}
	codec, err := codecFor(ct)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, rawSize)
	for len(data) > 0 {
		if len(data) < blockHeaderSize {
			return nil, fmt.Errorf("%w: block header", ErrTruncated)
		}
		size := int(binary.LittleEndian.Uint32(data))
		stored := int(binary.LittleEndian.Uint32(data[4:]))
		data = data[blockHeaderSize:]

		n := stored
		if stored == 0 {
			n = size
		}
		if len(data) < n {
			return nil, fmt.Errorf("%w: block of %d bytes", ErrTruncated, n)
		}
		if stored == 0 {
			out = append(out, data[:n]...)
		} else {
			block, err := codec.decode(data[:n], size)
			if err != nil {
				return nil, err
			}
			out = append(out, block...)
		}
		data = data[n:]
	}
	if len(out) != rawSize {
		return nil, fmt.Errorf("decompressed %d bytes, want %d", len(out), rawSize)
	}
	return out, nil
}

type lz4Codec struct{}

func (lz4Codec) encode(src []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

func (lz4Codec) decode(src []byte, size int) ([]byte, error) {
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	if n != size {
		return nil, errors.New("lz4: short block")
	}
	return dst, nil
}

// zstd encoders and decoders are expensive to build and safe to reuse.
var (
	zstdEncoders = sync.Pool{New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		return enc
	}}
	zstdDecoders = sync.Pool{New: func() any {
		dec, _ := zstd.NewReader(nil)
		return dec
	}}
)

type zstdCodec struct{}

func (zstdCodec) encode(src []byte) ([]byte, error) {
	enc := zstdEncoders.Get().(*zstd.Encoder)
	defer zstdEncoders.Put(enc)
	return enc.EncodeAll(src, nil), nil
}

func (zstdCodec) decode(src []byte, size int) ([]byte, error) {
	dec := zstdDecoders.Get().(*zstd.Decoder)
	defer zstdDecoders.Put(dec)
	dst, err := dec.DecodeAll(src, make([]byte, 0, size))
	if err != nil {
		return nil, err
	}
	if len(dst) != size {
		return nil, errors.New("zstd: short block")
	}
	return dst, nil
}

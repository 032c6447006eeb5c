// Package compress implements the self-describing block format used by
// stored collections.
//
// Each block is [UncompressedSize uint32][CompressedSize uint32][Data...],
// little endian. A CompressedSize of 0 means Data is stored raw.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies the compression algorithm of a block stream.
type Type uint8

const (
	// None stores blocks raw.
	None Type = 0
	// LZ4 favours decode speed.
	LZ4 Type = 1
	// ZSTD favours ratio.
	ZSTD Type = 2
)

// HeaderSize is the size of the per-block header.
const HeaderSize = 8

var (
	// ErrCorrupt is returned for truncated or inconsistent blocks.
	ErrCorrupt = errors.New("compress: corrupt block")
	// ErrUnknownType is returned for unknown compression names or ids.
	ErrUnknownType = errors.New("compress: unknown compression type")
	// ErrTooLarge is returned for blocks that do not fit the 32-bit header.
	ErrTooLarge = errors.New("compress: block too large")
)

// String returns the canonical name of t.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compress(%d)", uint8(t))
	}
}

// Parse returns the Type for a name. The empty string means None.
func Parse(name string) (Type, error) {
	switch name {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
}

// Encode compresses data into a single block. Blocks that do not shrink
// below 90% of their raw size are stored raw.
func Encode(data []byte, t Type) ([]byte, error) {
	if uint64(len(data)) > math.MaxUint32 {
		return nil, ErrTooLarge
	}

	var compressed []byte
	switch t {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case ZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}

	raw := len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9
	if raw {
		compressed = data
	}

	out := make([]byte, HeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	if !raw {
		binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	}
	copy(out[HeaderSize:], compressed)
	return out, nil
}

// Decode returns the uncompressed content of a block. Raw blocks are
// returned without copying.
func Decode(block []byte, t Type) ([]byte, error) {
	if len(block) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is smaller than the header", ErrCorrupt, len(block))
	}

	size := uint64(binary.LittleEndian.Uint32(block[0:]))
	csize := uint64(binary.LittleEndian.Uint32(block[4:]))
	payload := block[HeaderSize:]

	if csize == 0 {
		if uint64(len(payload)) < size {
			return nil, fmt.Errorf("%w: raw payload truncated", ErrCorrupt)
		}
		return payload[:size], nil
	}
	if uint64(len(payload)) < csize {
		return nil, fmt.Errorf("%w: compressed payload truncated", ErrCorrupt)
	}
	payload = payload[:csize]

	out := make([]byte, size)
	switch t {
	case LZ4:
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint64(n) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	case ZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)

		decoded, err := dec.DecodeAll(payload, out[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint64(len(decoded)) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
}

// BlockSize returns the total encoded length of the block starting at b.
func BlockSize(b []byte) (int, error) {
	if len(b) < HeaderSize {
		return 0, ErrCorrupt
	}
	n := binary.LittleEndian.Uint32(b[4:])
	if n == 0 {
		n = binary.LittleEndian.Uint32(b[0:])
	}
	return HeaderSize + int(n), nil
}

package tilestore

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/tilecache/internal/hash"
)

// Codec selects the payload compression of a tile frame.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecLZ4
	CodecZstd
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Codec(%d)", uint8(c))
	}
}

// Frame layout: [magic 'T' 'C'][codec u8][reserved u8][raw size u32][crc32c of raw u32][payload]
const (
	frameHeaderSize = 12
	magic0, magic1  = 'T', 'C'
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxTileSize))
	return dec
}

// Encode frames raw with the given codec. The payload is stored raw when
// compression does not shrink it.
func Encode(codec Codec, raw []byte) ([]byte, error) {
	if uint64(len(raw)) > math.MaxUint32 {
		return nil, fmt.Errorf("tilestore: tile of %d bytes exceeds the frame limit", len(raw))
	}
	var payload []byte
	switch codec {
	case CodecNone:
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		payload = buf[:n]
	case CodecZstd:
		enc := getZstdEncoder()
		payload = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("tilestore: unknown codec %d", codec)
	}

	if len(payload) == 0 || len(payload) >= len(raw) {
		codec = CodecNone
		payload = raw
	}

	out := make([]byte, frameHeaderSize+len(payload))
	out[0], out[1] = magic0, magic1
	out[2] = byte(codec)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(out[8:], hash.CRC32C(raw))
	copy(out[frameHeaderSize:], payload)
	return out, nil
}

// MaxTileSize bounds the raw size Decode accepts from a frame header.
const MaxTileSize = 256 << 20

// Decode validates a frame and returns the raw tile bytes.
func Decode(frame []byte) ([]byte, error) {
	size, err := frameSize(frame)
	if err != nil {
		return nil, err
	}
	if size > MaxTileSize {
		return nil, fmt.Errorf("%w: header size %d exceeds %d", ErrCorrupt, size, MaxTileSize)
	}
	if Codec(frame[2]) == CodecNone && uint64(size) != uint64(len(frame)-frameHeaderSize) {
		return nil, fmt.Errorf("%w: size %d, header says %d", ErrCorrupt, len(frame)-frameHeaderSize, size)
	}
	raw := make([]byte, size)
	if err := DecodeInto(frame, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// DecodeInto validates a frame and decodes it into dst. The header size must
// equal len(dst); nothing is decompressed otherwise.
func DecodeInto(frame, dst []byte) error {
	size, err := frameSize(frame)
	if err != nil {
		return err
	}
	if uint64(size) != uint64(len(dst)) {
		return fmt.Errorf("%w: header size %d, block holds %d", ErrCorrupt, size, len(dst))
	}
	codec := Codec(frame[2])
	sum := binary.LittleEndian.Uint32(frame[8:])
	payload := frame[frameHeaderSize:]

	n := 0
	switch codec {
	case CodecNone:
		n = len(payload)
		if n == len(dst) {
			copy(dst, payload)
		}
	case CodecLZ4:
		n, err = lz4.UncompressBlock(payload, dst)
		if err != nil {
			return fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
	case CodecZstd:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, dst[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		n = len(out)
		if n == len(dst) {
			copy(dst, out)
		}
	default:
		return fmt.Errorf("%w: unknown codec %d", ErrCorrupt, codec)
	}

	if n != len(dst) {
		return fmt.Errorf("%w: size %d, header says %d", ErrCorrupt, n, size)
	}
	if hash.CRC32C(dst) != sum {
		return fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return nil
}

func frameSize(frame []byte) (uint32, error) {
	if len(frame) < frameHeaderSize || frame[0] != magic0 || frame[1] != magic1 {
		return 0, fmt.Errorf("%w: bad frame header", ErrCorrupt)
	}
	return binary.LittleEndian.Uint32(frame[4:]), nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor is the contract the protocol bridge depends on.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// Algorithm identifies the compression applied to a payload. Values
// are stored in the frame header; changing them breaks compatibility
// with blobs already in the remote cache.
type Algorithm uint8

const (
	// None stores the payload unchanged.
	None Algorithm = 0

	// LZ4 is LZ4 block compression. Fast, moderate ratio.
	LZ4 Algorithm = 1

	// Zstd is zstd at the default level. Better ratio on object files
	// and serialized compiler state. The default.
	Zstd Algorithm = 2
)

// MaxUncompressedSize bounds the length a frame may declare, so a
// corrupt or hostile header cannot force a huge allocation.
const MaxUncompressedSize = 1 << 30

// String returns the configuration name of the algorithm.
func (algorithm Algorithm) String() string {
	switch algorithm {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(algorithm))
	}
}

// ParseAlgorithm parses a configuration name.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd", "":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("unknown compression algorithm %q (want zstd, lz4, or none)", name)
	}
}

// Codec compresses with one algorithm and decompresses any framed
// payload.
type Codec struct {
	algorithm Algorithm
}

// New returns a Codec that compresses with algorithm.
func New(algorithm Algorithm) (*Codec, error) {
	switch algorithm {
	case None, LZ4, Zstd:
		return &Codec{algorithm: algorithm}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm %s", algorithm)
	}
}

// Algorithm returns the algorithm used by Compress.
func (c *Codec) Algorithm() Algorithm { return c.algorithm }

// errIncompressible signals that the algorithm output was not smaller
// than its input; the payload is framed with None instead.
var errIncompressible = errors.New("data is incompressible")

// Compress returns the framed compressed form of data.
func (c *Codec) Compress(data []byte) ([]byte, error) {
	algorithm := c.algorithm
	var payload []byte
	var err error

	switch algorithm {
	case LZ4:
		payload, err = compressLZ4(data)
	case Zstd:
		payload, err = compressZstd(data)
	}
	if errors.Is(err, errIncompressible) || algorithm == None {
		algorithm, payload, err = None, data, nil
	}
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, 1+binary.MaxVarintLen64+len(payload))
	frame = append(frame, byte(algorithm))
	frame = binary.AppendUvarint(frame, uint64(len(data)))
	return append(frame, payload...), nil
}

// Decompress reverses Compress.
func (c *Codec) Decompress(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, errors.New("decompress: empty frame")
	}
	algorithm := Algorithm(frame[0])
	size, headerLength := binary.Uvarint(frame[1:])
	if headerLength <= 0 {
		return nil, errors.New("decompress: malformed length header")
	}
	if size > MaxUncompressedSize {
		return nil, fmt.Errorf("decompress: declared size %d exceeds limit %d", size, MaxUncompressedSize)
	}
	payload := frame[1+headerLength:]
	uncompressedSize := int(size)

	switch algorithm {
	case None:
		if len(payload) != uncompressedSize {
			return nil, fmt.Errorf("decompress: stored payload is %d bytes, header says %d", len(payload), uncompressedSize)
		}
		result := make([]byte, len(payload))
		copy(result, payload)
		return result, nil
	case LZ4:
		return decompressLZ4(payload, uncompressedSize)
	case Zstd:
		return decompressZstd(payload, uncompressedSize)
	default:
		return nil, fmt.Errorf("decompress: unknown algorithm tag %d", uint8(algorithm))
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errIncompressible
	}
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, uncompressedSize int) ([]byte, error) {
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
	}
	return destination, nil
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use through
// EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxUncompressedSize))
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, uncompressedSize int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != uncompressedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
	}
	return result, nil
}

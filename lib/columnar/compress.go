// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package columnar

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression algorithm of a column.
// Tags are stored in the column index; changing the values breaks
// compatibility with existing containers.
type CompressionTag uint8

const (
	// CompressionNone stores column bytes as-is.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is LZ4 block compression.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is zstd at the default level.
	CompressionZstd CompressionTag = 2

	// CompressionBG8LZ4 groups the bytes of 8-byte values by
	// position before LZ4. Token ids and offsets are small int64s,
	// so the high-order byte planes are almost all zeros.
	CompressionBG8LZ4 CompressionTag = 3

	// CompressionAuto selects a tag per column with
	// [SelectCompression]. It is a writer option only and is never
	// stored in a container.
	CompressionAuto CompressionTag = 0xff
)

// String returns the name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionBG8LZ4:
		return "bg8_lz4"
	case CompressionAuto:
		return "auto"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseCompression parses a compression name, including "auto".
func ParseCompression(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	case "bg8_lz4":
		return CompressionBG8LZ4, nil
	case "auto", "":
		return CompressionAuto, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, lz4, zstd, bg8_lz4 or auto)", name)
	}
}

func (tag CompressionTag) stored() bool {
	return tag <= CompressionBG8LZ4
}

// errIncompressible is returned when compressed output is not smaller
// than the input. Callers store the column with CompressionNone.
var errIncompressible = errors.New("data is incompressible")

// compress compresses data with a concrete tag.
func compress(data []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		return compressLZ4(data)
	case CompressionZstd:
		return compressZstd(data)
	case CompressionBG8LZ4:
		return compressLZ4(byteGroup(data, 8))
	default:
		return nil, fmt.Errorf("unsupported compression tag %d", tag)
	}
}

// compressAuto compresses data with tag, resolving CompressionAuto
// and falling back to CompressionNone for incompressible data.
func compressAuto(data []byte, tag CompressionTag) ([]byte, CompressionTag, error) {
	if tag == CompressionAuto {
		tag = SelectCompression(data)
	}
	compressed, err := compress(data, tag)
	if errors.Is(err, errIncompressible) {
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return compressed, tag, nil
}

// decompress reverses compress. The result must be exactly
// uncompressedSize bytes.
func decompress(compressed []byte, tag CompressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(compressed) != uncompressedSize {
			return nil, fmt.Errorf("uncompressed column: size %d does not match expected %d",
				len(compressed), uncompressedSize)
		}
		return compressed, nil
	case CompressionLZ4:
		return decompressLZ4(compressed, uncompressedSize)
	case CompressionZstd:
		return decompressZstd(compressed, uncompressedSize)
	case CompressionBG8LZ4:
		grouped, err := decompressLZ4(compressed, uncompressedSize)
		if err != nil {
			return nil, err
		}
		return byteUngroup(grouped, 8), nil
	default:
		return nil, fmt.Errorf("unsupported compression tag %d", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
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

// zstd.Encoder is safe for concurrent use through EncodeAll.
var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("columnar: zstd encoder initialization failed: " + err.Error())
	}
}

// zstdPresizeRatio caps the buffer reserved before decoding. The
// declared size comes from the index, so the buffer only grows past
// this as frames actually decode.
const zstdPresizeRatio = 64

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

// decompressZstd stops reading one byte past uncompressedSize, so a
// frame that inflates beyond the declared size fails without being
// fully decoded.
func decompressZstd(compressed []byte, uncompressedSize int) ([]byte, error) {
	decoder, err := zstd.NewReader(bytes.NewReader(compressed),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(uint64(max(uncompressedSize, 1<<20))))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	defer decoder.Close()

	var result bytes.Buffer
	result.Grow(min(uncompressedSize, zstdPresizeRatio*len(compressed)))
	if _, err := result.ReadFrom(io.LimitReader(decoder, int64(uncompressedSize)+1)); err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if result.Len() != uncompressedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", result.Len(), uncompressedSize)
	}
	return result.Bytes(), nil
}

// SelectCompression probes data with zstd. A ratio of at least 1.5x
// selects zstd, at least 1.1x selects LZ4, anything less is stored
// uncompressed. Column data is a sequence of int64s, so when the
// byte-grouped LZ4 output beats the zstd probe, bg8_lz4 wins.
func SelectCompression(data []byte) CompressionTag {
	if len(data) == 0 {
		return CompressionNone
	}

	probe := len(zstdEncoder.EncodeAll(data, nil))
	ratio := float64(len(data)) / float64(probe)

	tag := CompressionNone
	switch {
	case ratio >= 1.5:
		tag = CompressionZstd
	case ratio >= 1.1:
		tag = CompressionLZ4
	}
	if len(data)%8 == 0 {
		if grouped, err := compressLZ4(byteGroup(data, 8)); err == nil && len(grouped) < probe {
			tag = CompressionBG8LZ4
		}
	}
	return tag
}

// byteGroup transposes data in groups of width bytes: every byte 0
// first, then every byte 1, and so on. Trailing bytes that do not fill
// a group are appended unchanged.
func byteGroup(data []byte, width int) []byte {
	groups := len(data) / width
	output := make([]byte, len(data))
	for i := range groups {
		for b := range width {
			output[b*groups+i] = data[i*width+b]
		}
	}
	copy(output[groups*width:], data[groups*width:])
	return output
}

// byteUngroup reverses byteGroup.
func byteUngroup(data []byte, width int) []byte {
	groups := len(data) / width
	output := make([]byte, len(data))
	for i := range groups {
		for b := range width {
			output[i*width+b] = data[b*groups+i]
		}
	}
	copy(output[groups*width:], data[groups*width:])
	return output
}

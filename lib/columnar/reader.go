// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package columnar

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/duetprep/duetprep/lib/codec"
)

const (
	// maxAttributeBytes bounds the encoded attribute map.
	maxAttributeBytes = 1 << 20

	// maxColumns bounds the column count read from an index.
	maxColumns = 4096

	// maxColumnBytes bounds a single decompressed column.
	maxColumnBytes = 1 << 36

	// lz4MaxExpansion bounds the bytes one LZ4 block byte can
	// produce: a match length grows by at most 255 per extra byte.
	lz4MaxExpansion = 255

	// lz4BlockSlack covers the fixed tokens of a short block.
	lz4BlockSlack = 64
)

// ErrHashMismatch is returned when decompressed column bytes do not
// match the hash recorded in the index.
var ErrHashMismatch = errors.New("column hash mismatch")

// ColumnInfo is one parsed index entry.
type ColumnInfo struct {
	Name             string
	Type             DType
	Compression      CompressionTag
	Hash             Hash
	CompressedSize   uint64
	UncompressedSize uint64
	Rows             uint64

	// offset is the position of the column data from the start of
	// the container.
	offset int64
}

// Index is the parsed header of a container.
type Index struct {
	// Attributes is the decoded attribute map. CBOR integers decode
	// as uint64 (non-negative) or int64; see [Index.AttributeInt].
	Attributes map[string]any

	// Columns lists the columns in container order.
	Columns []ColumnInfo

	// Hash is the container hash recomputed from the index.
	Hash Hash

	// HeaderSize is the byte length of everything before column data.
	HeaderSize int64
}

// Rows returns the row count shared by every column.
func (x *Index) Rows() int {
	return int(x.Columns[0].Rows)
}

// Column returns the index entry of the named column.
func (x *Index) Column(name string) (ColumnInfo, bool) {
	for _, column := range x.Columns {
		if column.Name == name {
			return column, true
		}
	}
	return ColumnInfo{}, false
}

// Schema returns the container's column list.
func (x *Index) Schema() Schema {
	schema := make(Schema, len(x.Columns))
	for i, column := range x.Columns {
		schema[i] = Column{Name: column.Name, Type: column.Type}
	}
	return schema
}

// DataSize returns the total stored (compressed) column bytes.
func (x *Index) DataSize() int64 {
	var total int64
	for _, column := range x.Columns {
		total += int64(column.CompressedSize)
	}
	return total
}

// UncompressedSize returns the total column bytes before compression.
func (x *Index) UncompressedSize() int64 {
	var total int64
	for _, column := range x.Columns {
		total += int64(column.UncompressedSize)
	}
	return total
}

// TotalSize returns the serialized container size.
func (x *Index) TotalSize() int64 {
	return x.HeaderSize + x.DataSize()
}

// AttributeInt returns an integer attribute.
func (x *Index) AttributeInt(name string) (int64, bool) {
	switch value := x.Attributes[name].(type) {
	case uint64:
		if value > math.MaxInt64 {
			return 0, false
		}
		return int64(value), true
	case int64:
		return value, true
	default:
		return 0, false
	}
}

// AttributeString returns a string attribute.
func (x *Index) AttributeString(name string) (string, bool) {
	value, ok := x.Attributes[name].(string)
	return value, ok
}

// ReadIndex reads and validates a container header from r, which must
// be positioned at the start of the container. On return r is
// positioned at the start of column data.
func ReadIndex(r io.Reader) (*Index, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("reading container magic: %w", err)
	}
	if magic != containerMagic {
		if bytes.Equal(magic[:7], containerMagic[:7]) {
			return nil, fmt.Errorf("container version %d is not supported (this code supports version %d)",
				magic[7], containerVersion)
		}
		return nil, errors.New("not a columnar container (invalid magic bytes)")
	}

	attributeLength, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("reading attribute length: %w", err)
	}
	if attributeLength > maxAttributeBytes {
		return nil, fmt.Errorf("attributes are %d bytes, limit %d", attributeLength, maxAttributeBytes)
	}
	encodedAttributes := make([]byte, attributeLength)
	if _, err := io.ReadFull(r, encodedAttributes); err != nil {
		return nil, fmt.Errorf("reading attributes: %w", err)
	}
	attributes := map[string]any{}
	if err := codec.Unmarshal(encodedAttributes, &attributes); err != nil {
		return nil, fmt.Errorf("decoding attributes: %w", err)
	}

	columnCount, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("reading column count: %w", err)
	}
	if columnCount == 0 {
		return nil, errors.New("container has zero columns")
	}
	if columnCount > maxColumns {
		return nil, fmt.Errorf("container has %d columns, limit %d", columnCount, maxColumns)
	}

	columns := make([]ColumnInfo, columnCount)
	nameLengths := make([]int, columnCount)
	var entry [indexEntrySize]byte
	for i := range columns {
		if _, err := io.ReadFull(r, entry[:]); err != nil {
			return nil, fmt.Errorf("reading index entry %d: %w", i, err)
		}
		column, nameLength, err := parseIndexEntry(entry[:])
		if err != nil {
			return nil, fmt.Errorf("index entry %d: %w", i, err)
		}
		columns[i] = column
		nameLengths[i] = nameLength
	}

	seen := make(map[string]bool, columnCount)
	for i := range columns {
		name := make([]byte, nameLengths[i])
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("reading name of column %d: %w", i, err)
		}
		columns[i].Name = string(name)
		if seen[columns[i].Name] {
			return nil, fmt.Errorf("duplicate column %q", columns[i].Name)
		}
		seen[columns[i].Name] = true
	}

	headerSize := int64(len(containerMagic)) + 4 + int64(attributeLength) + 4 +
		int64(columnCount)*indexEntrySize
	for _, length := range nameLengths {
		headerSize += int64(length)
	}

	hashes := make([]Hash, columnCount)
	offset := headerSize
	for i := range columns {
		if err := checkColumnShape(columns[i], columns[0].Rows); err != nil {
			return nil, fmt.Errorf("column %q: %w", columns[i].Name, err)
		}
		columns[i].offset = offset
		offset += int64(columns[i].CompressedSize)
		hashes[i] = columns[i].Hash
	}

	return &Index{
		Attributes: attributes,
		Columns:    columns,
		Hash:       containerHash(hashes),
		HeaderSize: headerSize,
	}, nil
}

func parseIndexEntry(entry []byte) (ColumnInfo, int, error) {
	var column ColumnInfo
	copy(column.Hash[:], entry[0:32])
	column.Type = DType(entry[32])
	if !column.Type.valid() {
		return column, 0, fmt.Errorf("unknown dtype %d", entry[32])
	}
	column.Compression = CompressionTag(entry[33])
	if !column.Compression.stored() {
		return column, 0, fmt.Errorf("unsupported compression tag %d", entry[33])
	}
	nameLength := int(binary.LittleEndian.Uint16(entry[34:36]))
	if nameLength == 0 {
		return column, 0, errors.New("empty column name")
	}
	if reserved := entry[36:40]; !bytes.Equal(reserved, make([]byte, 4)) {
		return column, 0, fmt.Errorf("non-zero reserved bytes: %x", reserved)
	}
	column.CompressedSize = binary.LittleEndian.Uint64(entry[40:48])
	column.UncompressedSize = binary.LittleEndian.Uint64(entry[48:56])
	column.Rows = binary.LittleEndian.Uint64(entry[56:64])
	return column, nameLength, nil
}

// checkColumnShape rejects sizes that cannot hold rows values of the
// column's type, before any allocation depends on them.
func checkColumnShape(column ColumnInfo, rows uint64) error {
	if column.Rows != rows {
		return fmt.Errorf("has %d rows, first column has %d", column.Rows, rows)
	}
	if column.UncompressedSize > maxColumnBytes || column.CompressedSize > maxColumnBytes {
		return fmt.Errorf("column size exceeds %d bytes", int64(maxColumnBytes))
	}
	if column.UncompressedSize%8 != 0 {
		return fmt.Errorf("uncompressed size %d is not a multiple of 8", column.UncompressedSize)
	}
	words := column.UncompressedSize / 8
	switch column.Type {
	case Int64:
		if words != column.Rows {
			return fmt.Errorf("holds %d values for %d rows", words, column.Rows)
		}
	case Int64List:
		if words < column.Rows+1 {
			return fmt.Errorf("holds %d words, need at least %d offsets", words, column.Rows+1)
		}
	}
	switch column.Compression {
	case CompressionNone:
		if column.CompressedSize != column.UncompressedSize {
			return fmt.Errorf("uncompressed column stores %d bytes, expected %d",
				column.CompressedSize, column.UncompressedSize)
		}
	case CompressionLZ4, CompressionBG8LZ4:
		if column.UncompressedSize > column.CompressedSize*lz4MaxExpansion+lz4BlockSlack {
			return fmt.Errorf("%d lz4 bytes cannot expand to %d bytes",
				column.CompressedSize, column.UncompressedSize)
		}
	}
	return nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buffer [4]byte
	if _, err := io.ReadFull(r, buffer[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buffer[:]), nil
}

// Reader reads verified columns from a container.
type Reader struct {
	*Index
	source io.ReaderAt
	closer io.Closer
}

// NewReader parses the index of the container in source.
func NewReader(source io.ReaderAt) (*Reader, error) {
	index, err := ReadIndex(io.NewSectionReader(source, 0, math.MaxInt64))
	if err != nil {
		return nil, err
	}
	return &Reader{Index: index, source: source}, nil
}

// Open opens the container file at path. The caller must Close it.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if size := reader.TotalSize(); size != info.Size() {
		file.Close()
		return nil, fmt.Errorf("%s: container is %d bytes, index describes %d", path, info.Size(), size)
	}
	reader.closer = file
	return reader, nil
}

// Close releases the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// columnBytes reads, decompresses and verifies one column.
func (r *Reader) columnBytes(name string, want DType) (ColumnInfo, []byte, error) {
	column, ok := r.Column(name)
	if !ok {
		return column, nil, fmt.Errorf("no column %q", name)
	}
	if column.Type != want {
		return column, nil, fmt.Errorf("column %q is %s, not %s", name, column.Type, want)
	}
	data, err := r.verified(column)
	return column, data, err
}

func (r *Reader) verified(column ColumnInfo) ([]byte, error) {
	// Reading through a section grows the buffer with the bytes the
	// source actually holds, not with the size the index declares.
	section := io.NewSectionReader(r.source, column.offset, int64(column.CompressedSize))
	compressed, err := io.ReadAll(section)
	if err != nil {
		return nil, fmt.Errorf("reading column %q (%d bytes at %d): %w",
			column.Name, column.CompressedSize, column.offset, err)
	}
	if uint64(len(compressed)) != column.CompressedSize {
		return nil, fmt.Errorf("reading column %q: %w: got %d of %d bytes at %d",
			column.Name, io.ErrUnexpectedEOF, len(compressed), column.CompressedSize, column.offset)
	}
	data, err := decompress(compressed, column.Compression, int(column.UncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("decompressing column %q: %w", column.Name, err)
	}
	if actual := HashColumn(data); actual != column.Hash {
		return nil, fmt.Errorf("column %q: %w: index has %s, data hashes to %s",
			column.Name, ErrHashMismatch, column.Hash, actual)
	}
	return data, nil
}

// ReadInt64 returns every value of an Int64 column.
func (r *Reader) ReadInt64(name string) ([]int64, error) {
	_, data, err := r.columnBytes(name, Int64)
	if err != nil {
		return nil, err
	}
	return decodeInt64(data), nil
}

// ReadInt64List returns every row of an Int64List column.
func (r *Reader) ReadInt64List(name string) ([][]int64, error) {
	column, data, err := r.columnBytes(name, Int64List)
	if err != nil {
		return nil, err
	}
	lists, err := decodeInt64List(data, int(column.Rows))
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", name, err)
	}
	return lists, nil
}

// Verify reads, decompresses, hash-checks and decodes every column.
func (r *Reader) Verify() error {
	for _, column := range r.Columns {
		var err error
		switch column.Type {
		case Int64:
			_, err = r.ReadInt64(column.Name)
		case Int64List:
			_, err = r.ReadInt64List(column.Name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

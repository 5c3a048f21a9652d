// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package columnar

import (
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/duetprep/duetprep/lib/atomicfile"
	"github.com/duetprep/duetprep/lib/codec"
)

const (
	containerVersion = 1

	// indexEntrySize: 32-byte hash, dtype, compression tag, 2-byte
	// name length, 4 reserved bytes, then compressed size,
	// uncompressed size and row count as uint64.
	indexEntrySize = 64
)

var containerMagic = [8]byte{'D', 'U', 'E', 'T', 'C', 'O', 'L', containerVersion}

// Options configures a Writer.
type Options struct {
	// Compression is applied to every column. CompressionAuto picks
	// per column; the zero value stores columns uncompressed.
	Compression CompressionTag

	// Attributes are stored in the container header as a CBOR map.
	// Values must be CBOR-encodable.
	Attributes map[string]any
}

// columnData holds the values of one column. Exactly one field is
// used, depending on the column type.
type columnData struct {
	values []int64
	lists  [][]int64
}

// Writer accumulates a table with a fixed number of rows and
// serializes it as a container. Every column is preallocated: rows
// never set hold 0 (Int64) or an empty list (Int64List).
//
// A Writer is not safe for concurrent use.
type Writer struct {
	schema  Schema
	rows    int
	options Options
	columns []columnData
}

// NewWriter creates a writer for rows rows of schema.
func NewWriter(schema Schema, rows int, options Options) (*Writer, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if rows < 0 {
		return nil, fmt.Errorf("row count must not be negative, got %d", rows)
	}
	if options.Compression != CompressionAuto && !options.Compression.stored() {
		return nil, fmt.Errorf("unsupported compression %s", options.Compression)
	}
	columns := make([]columnData, len(schema))
	for i, column := range schema {
		switch column.Type {
		case Int64:
			columns[i].values = make([]int64, rows)
		case Int64List:
			columns[i].lists = make([][]int64, rows)
		}
	}
	return &Writer{
		schema:  slices.Clone(schema),
		rows:    rows,
		options: options,
		columns: columns,
	}, nil
}

// Rows returns the number of rows.
func (w *Writer) Rows() int {
	return w.rows
}

// Schema returns the column list.
func (w *Writer) Schema() Schema {
	return slices.Clone(w.schema)
}

func (w *Writer) column(name string, row int, want DType) (*columnData, error) {
	position, ok := w.schema.Index(name)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	if got := w.schema[position].Type; got != want {
		return nil, fmt.Errorf("column %q is %s, not %s", name, got, want)
	}
	if row < 0 || row >= w.rows {
		return nil, fmt.Errorf("column %q: row %d out of range [0, %d)", name, row, w.rows)
	}
	return &w.columns[position], nil
}

// SetInt64 stores value at row of an Int64 column.
func (w *Writer) SetInt64(name string, row int, value int64) error {
	column, err := w.column(name, row, Int64)
	if err != nil {
		return err
	}
	column.values[row] = value
	return nil
}

// SetInt64List stores a copy of values at row of an Int64List column.
func (w *Writer) SetInt64List(name string, row int, values []int64) error {
	column, err := w.column(name, row, Int64List)
	if err != nil {
		return err
	}
	column.lists[row] = slices.Clone(values)
	return nil
}

type encodedColumn struct {
	entry ColumnInfo
	data  []byte
}

func (w *Writer) encode() ([]encodedColumn, error) {
	encoded := make([]encodedColumn, len(w.schema))
	for i, column := range w.schema {
		var raw []byte
		switch column.Type {
		case Int64:
			raw = encodeInt64(w.columns[i].values)
		case Int64List:
			raw = encodeInt64List(w.columns[i].lists)
		}
		compressed, tag, err := compressAuto(raw, w.options.Compression)
		if err != nil {
			return nil, fmt.Errorf("compressing column %q: %w", column.Name, err)
		}
		encoded[i] = encodedColumn{
			entry: ColumnInfo{
				Name:             column.Name,
				Type:             column.Type,
				Compression:      tag,
				Hash:             HashColumn(raw),
				CompressedSize:   uint64(len(compressed)),
				UncompressedSize: uint64(len(raw)),
				Rows:             uint64(w.rows),
			},
			data: compressed,
		}
	}
	return encoded, nil
}

// Flush serializes the container to out and returns its hash. The
// writer keeps its contents and may be flushed again.
func (w *Writer) Flush(out io.Writer) (Hash, error) {
	attributes, err := codec.Marshal(w.attributes())
	if err != nil {
		return Hash{}, fmt.Errorf("encoding attributes: %w", err)
	}
	if len(attributes) > maxAttributeBytes {
		return Hash{}, fmt.Errorf("attributes are %d bytes, limit %d", len(attributes), maxAttributeBytes)
	}

	columns, err := w.encode()
	if err != nil {
		return Hash{}, err
	}

	if _, err := out.Write(containerMagic[:]); err != nil {
		return Hash{}, fmt.Errorf("writing container magic: %w", err)
	}
	if err := writeUint32(out, uint32(len(attributes))); err != nil {
		return Hash{}, fmt.Errorf("writing attribute length: %w", err)
	}
	if _, err := out.Write(attributes); err != nil {
		return Hash{}, fmt.Errorf("writing attributes: %w", err)
	}
	if err := writeUint32(out, uint32(len(columns))); err != nil {
		return Hash{}, fmt.Errorf("writing column count: %w", err)
	}

	hashes := make([]Hash, len(columns))
	var entry [indexEntrySize]byte
	for i, column := range columns {
		hashes[i] = column.entry.Hash
		putIndexEntry(entry[:], column.entry)
		if _, err := out.Write(entry[:]); err != nil {
			return Hash{}, fmt.Errorf("writing index entry for column %q: %w", column.entry.Name, err)
		}
	}
	for _, column := range columns {
		if _, err := io.WriteString(out, column.entry.Name); err != nil {
			return Hash{}, fmt.Errorf("writing column name %q: %w", column.entry.Name, err)
		}
	}
	for _, column := range columns {
		if _, err := out.Write(column.data); err != nil {
			return Hash{}, fmt.Errorf("writing column %q data: %w", column.entry.Name, err)
		}
	}

	return containerHash(hashes), nil
}

func (w *Writer) attributes() map[string]any {
	if w.options.Attributes == nil {
		return map[string]any{}
	}
	return w.options.Attributes
}

// WriteFile atomically writes the container to path and returns its
// hash.
func WriteFile(path string, writer *Writer) (Hash, error) {
	var hash Hash
	err := atomicfile.Write(path, 0o644, func(out io.Writer) error {
		var err error
		hash, err = writer.Flush(out)
		return err
	})
	if err != nil {
		return Hash{}, err
	}
	return hash, nil
}

func putIndexEntry(entry []byte, info ColumnInfo) {
	clear(entry)
	copy(entry[0:32], info.Hash[:])
	entry[32] = byte(info.Type)
	entry[33] = byte(info.Compression)
	binary.LittleEndian.PutUint16(entry[34:36], uint16(len(info.Name)))
	binary.LittleEndian.PutUint64(entry[40:48], info.CompressedSize)
	binary.LittleEndian.PutUint64(entry[48:56], info.UncompressedSize)
	binary.LittleEndian.PutUint64(entry[56:64], info.Rows)
}

func writeUint32(out io.Writer, value uint32) error {
	var buffer [4]byte
	binary.LittleEndian.PutUint32(buffer[:], value)
	_, err := out.Write(buffer[:])
	return err
}

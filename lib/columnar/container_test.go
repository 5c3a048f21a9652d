// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package columnar

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

var tripletSchema = Schema{
	{Name: "queries", Type: Int64List},
	{Name: "docs", Type: Int64List},
	{Name: "labels", Type: Int64},
}

func fillWriter(t *testing.T, rows int, options Options) *Writer {
	t.Helper()
	writer, err := NewWriter(tripletSchema, rows, options)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for row := range rows {
		query := make([]int64, row%5)
		for i := range query {
			query[i] = int64(4 + (row+i)%50)
		}
		if err := writer.SetInt64List("queries", row, query); err != nil {
			t.Fatalf("SetInt64List(queries, %d): %v", row, err)
		}
		if err := writer.SetInt64List("docs", row, []int64{int64(row), int64(row + 1), 0}); err != nil {
			t.Fatalf("SetInt64List(docs, %d): %v", row, err)
		}
		if err := writer.SetInt64("labels", row, int64(row%2)); err != nil {
			t.Fatalf("SetInt64(labels, %d): %v", row, err)
		}
	}
	return writer
}

func TestContainerRoundtrip(t *testing.T) {
	for _, compression := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd, CompressionBG8LZ4, CompressionAuto} {
		t.Run(compression.String(), func(t *testing.T) {
			writer := fillWriter(t, 300, Options{
				Compression: compression,
				Attributes:  map[string]any{"format": "duet", "vocabulary_size": 54},
			})

			var buffer bytes.Buffer
			hash, err := writer.Flush(&buffer)
			if err != nil {
				t.Fatalf("Flush: %v", err)
			}

			reader, err := NewReader(bytes.NewReader(buffer.Bytes()))
			if err != nil {
				t.Fatalf("NewReader: %v", err)
			}
			if reader.Hash != hash {
				t.Errorf("reader hash %s, writer hash %s", reader.Hash.Short(), hash.Short())
			}
			if reader.Rows() != 300 {
				t.Errorf("Rows = %d, want 300", reader.Rows())
			}
			if reader.TotalSize() != int64(buffer.Len()) {
				t.Errorf("TotalSize = %d, container is %d bytes", reader.TotalSize(), buffer.Len())
			}
			if !reflect.DeepEqual(reader.Schema(), tripletSchema) {
				t.Errorf("Schema = %v, want %v", reader.Schema(), tripletSchema)
			}
			if format, _ := reader.AttributeString("format"); format != "duet" {
				t.Errorf("format attribute = %q, want duet", format)
			}
			if size, ok := reader.AttributeInt("vocabulary_size"); !ok || size != 54 {
				t.Errorf("vocabulary_size attribute = %d, %v, want 54", size, ok)
			}

			queries, err := reader.ReadInt64List("queries")
			if err != nil {
				t.Fatalf("ReadInt64List(queries): %v", err)
			}
			for row, query := range queries {
				if len(query) != row%5 {
					t.Fatalf("queries row %d has %d values, want %d", row, len(query), row%5)
				}
				for i, id := range query {
					if want := int64(4 + (row+i)%50); id != want {
						t.Fatalf("queries[%d][%d] = %d, want %d", row, i, id, want)
					}
				}
			}
			docs, err := reader.ReadInt64List("docs")
			if err != nil {
				t.Fatalf("ReadInt64List(docs): %v", err)
			}
			if !reflect.DeepEqual(docs[7], []int64{7, 8, 0}) {
				t.Errorf("docs[7] = %v, want [7 8 0]", docs[7])
			}
			labels, err := reader.ReadInt64("labels")
			if err != nil {
				t.Fatalf("ReadInt64(labels): %v", err)
			}
			if labels[0] != 0 || labels[1] != 1 || len(labels) != 300 {
				t.Errorf("labels = %v...", labels[:2])
			}
			if err := reader.Verify(); err != nil {
				t.Errorf("Verify: %v", err)
			}
		})
	}
}

func TestContainerHashIndependentOfCompression(t *testing.T) {
	var hashes []Hash
	for _, compression := range []CompressionTag{CompressionNone, CompressionZstd, CompressionBG8LZ4} {
		hash, err := fillWriter(t, 50, Options{Compression: compression}).Flush(&bytes.Buffer{})
		if err != nil {
			t.Fatalf("Flush: %v", err)
		}
		hashes = append(hashes, hash)
	}
	for _, hash := range hashes[1:] {
		if hash != hashes[0] {
			t.Error("container hash depends on compression")
		}
	}
}

func TestUnsetRowsAreZero(t *testing.T) {
	writer, err := NewWriter(tripletSchema, 3, Options{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	var buffer bytes.Buffer
	if _, err := writer.Flush(&buffer); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	reader, err := NewReader(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	queries, err := reader.ReadInt64List("queries")
	if err != nil {
		t.Fatalf("ReadInt64List: %v", err)
	}
	for row, query := range queries {
		if len(query) != 0 {
			t.Errorf("row %d = %v, want empty", row, query)
		}
	}
	labels, _ := reader.ReadInt64("labels")
	if !reflect.DeepEqual(labels, []int64{0, 0, 0}) {
		t.Errorf("labels = %v, want zeros", labels)
	}
}

func TestEmptyContainer(t *testing.T) {
	writer, err := NewWriter(tripletSchema, 0, Options{Compression: CompressionAuto})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	var buffer bytes.Buffer
	if _, err := writer.Flush(&buffer); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	reader, err := NewReader(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if reader.Rows() != 0 {
		t.Errorf("Rows = %d, want 0", reader.Rows())
	}
	if err := reader.Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestWriterErrors(t *testing.T) {
	writer := fillWriter(t, 2, Options{})
	for _, tt := range []struct {
		name string
		err  error
	}{
		{"unknown column", writer.SetInt64("missing", 0, 1)},
		{"type mismatch", writer.SetInt64("queries", 0, 1)},
		{"list on scalar", writer.SetInt64List("labels", 0, nil)},
		{"row too large", writer.SetInt64("labels", 2, 1)},
		{"negative row", writer.SetInt64List("docs", -1, nil)},
	} {
		if tt.err == nil {
			t.Errorf("%s: no error", tt.name)
		}
	}

	if _, err := NewWriter(tripletSchema, -1, Options{}); err == nil {
		t.Error("NewWriter with negative rows succeeded")
	}
	if _, err := NewWriter(tripletSchema, 1, Options{Compression: 9}); err == nil {
		t.Error("NewWriter with unknown compression succeeded")
	}
}

func TestSetInt64ListCopies(t *testing.T) {
	writer, err := NewWriter(Schema{{Name: "ids", Type: Int64List}}, 1, Options{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	values := []int64{1, 2, 3}
	if err := writer.SetInt64List("ids", 0, values); err != nil {
		t.Fatalf("SetInt64List: %v", err)
	}
	values[0] = 99

	var buffer bytes.Buffer
	if _, err := writer.Flush(&buffer); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	reader, _ := NewReader(bytes.NewReader(buffer.Bytes()))
	lists, err := reader.ReadInt64List("ids")
	if err != nil {
		t.Fatalf("ReadInt64List: %v", err)
	}
	if lists[0][0] != 1 {
		t.Errorf("stored value changed with the caller's slice: %v", lists[0])
	}
}

func TestSchemaValidate(t *testing.T) {
	for _, tt := range []struct {
		name   string
		schema Schema
	}{
		{"empty", Schema{}},
		{"empty name", Schema{{Name: "", Type: Int64}}},
		{"duplicate", Schema{{Name: "a", Type: Int64}, {Name: "a", Type: Int64List}}},
		{"bad type", Schema{{Name: "a", Type: 7}}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.schema.Validate(); err == nil {
				t.Error("Validate succeeded")
			}
		})
	}
}

func TestHashMismatchDetected(t *testing.T) {
	writer := fillWriter(t, 20, Options{Compression: CompressionNone})
	var buffer bytes.Buffer
	if _, err := writer.Flush(&buffer); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	data := buffer.Bytes()

	reader, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	labels, _ := reader.Column("labels")
	// Flip one bit inside the labels column.
	data[labels.offset+3] ^= 0x10

	corrupted, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader(corrupted): %v", err)
	}
	if _, err := corrupted.ReadInt64("labels"); !errors.Is(err, ErrHashMismatch) {
		t.Errorf("ReadInt64 error = %v, want ErrHashMismatch", err)
	}
	if err := corrupted.Verify(); !errors.Is(err, ErrHashMismatch) {
		t.Errorf("Verify error = %v, want ErrHashMismatch", err)
	}
	if _, err := corrupted.ReadInt64List("queries"); err != nil {
		t.Errorf("untouched column failed: %v", err)
	}
}

func TestReadIndexRejects(t *testing.T) {
	var buffer bytes.Buffer
	if _, err := fillWriter(t, 4, Options{}).Flush(&buffer); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	valid := buffer.Bytes()

	mutate := func(change func(data []byte) []byte) []byte {
		return change(bytes.Clone(valid))
	}
	entryStart := func(data []byte) int {
		attributeLength := int(data[8]) | int(data[9])<<8 | int(data[10])<<16 | int(data[11])<<24
		return 8 + 4 + attributeLength + 4
	}

	for _, tt := range []struct {
		name string
		data []byte
		want string
	}{
		{"bad magic", mutate(func(d []byte) []byte { d[0] = 'X'; return d }), "invalid magic"},
		{"future version", mutate(func(d []byte) []byte { d[7] = 9; return d }), "version 9"},
		{"truncated", valid[:20], "reading"},
		{"unknown dtype", mutate(func(d []byte) []byte { d[entryStart(d)+32] = 9; return d }), "unknown dtype"},
		{"unknown compression", mutate(func(d []byte) []byte { d[entryStart(d)+33] = 7; return d }), "compression tag"},
		{"reserved bytes", mutate(func(d []byte) []byte { d[entryStart(d)+37] = 1; return d }), "reserved"},
		{"row count mismatch", mutate(func(d []byte) []byte { d[entryStart(d)+indexEntrySize+56] = 5; return d }), "rows"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadIndex(bytes.NewReader(tt.data))
			if err == nil {
				t.Fatal("ReadIndex succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestColumnShapeBoundsDeclaredSizes(t *testing.T) {
	const rows = 1 << 30
	for _, tt := range []struct {
		name   string
		column ColumnInfo
		want   string
	}{
		{"lz4 beyond expansion", ColumnInfo{Type: Int64, Compression: CompressionLZ4, CompressedSize: 100, UncompressedSize: rows * 8, Rows: rows}, "cannot expand"},
		{"bg8 beyond expansion", ColumnInfo{Type: Int64, Compression: CompressionBG8LZ4, CompressedSize: 4096, UncompressedSize: rows * 8, Rows: rows}, "cannot expand"},
		{"over column limit", ColumnInfo{Type: Int64, Compression: CompressionZstd, CompressedSize: 100, UncompressedSize: 1 << 40, Rows: 1 << 37}, "exceeds"},
		{"lz4 at expansion", ColumnInfo{Type: Int64, Compression: CompressionLZ4, CompressedSize: rows * 8 / lz4MaxExpansion, UncompressedSize: rows * 8, Rows: rows}, ""},
		{"zstd large ratio", ColumnInfo{Type: Int64, Compression: CompressionZstd, CompressedSize: 100, UncompressedSize: rows * 8, Rows: rows}, ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := checkColumnShape(tt.column, tt.column.Rows)
			if tt.want == "" {
				if err != nil {
					t.Errorf("checkColumnShape = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("checkColumnShape = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestTruncatedColumnData(t *testing.T) {
	for _, compression := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			var buffer bytes.Buffer
			if _, err := fillWriter(t, 30, Options{Compression: compression}).Flush(&buffer); err != nil {
				t.Fatalf("Flush: %v", err)
			}
			data := buffer.Bytes()
			reader, err := NewReader(bytes.NewReader(data[:len(data)-1]))
			if err != nil {
				t.Fatalf("NewReader: %v", err)
			}
			if err := reader.Verify(); !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Errorf("Verify error = %v, want io.ErrUnexpectedEOF", err)
			}
		})
	}
}

func TestWriteFileAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "splits", "dev.duet")
	hash, err := WriteFile(path, fillWriter(t, 10, Options{Compression: CompressionAuto}))
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	reader, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()
	if reader.Hash != hash {
		t.Errorf("Open hash %s, WriteFile hash %s", reader.Hash.Short(), hash.Short())
	}
	if err := reader.Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}

	// A trailing byte is a size mismatch.
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	file.Write([]byte{0})
	file.Close()
	if _, err := Open(path); err == nil {
		t.Error("Open accepted a container with trailing bytes")
	}
}

func TestOpenMapped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.duet")
	hash, err := WriteFile(path, fillWriter(t, 40, Options{Compression: CompressionZstd}))
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mapped, err := OpenMapped(path)
	if err != nil {
		t.Fatalf("OpenMapped: %v", err)
	}
	if mapped.Hash != hash {
		t.Errorf("OpenMapped hash %s, WriteFile hash %s", mapped.Hash.Short(), hash.Short())
	}
	if err := mapped.Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
	docs, err := mapped.ReadInt64List("docs")
	if err != nil {
		t.Fatalf("ReadInt64List: %v", err)
	}
	if err := mapped.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reads copy out of the mapping, so results outlive Close.
	if want := []int64{39, 40, 0}; !reflect.DeepEqual(docs[39], want) {
		t.Errorf("docs[39] = %v, want %v", docs[39], want)
	}

	empty := filepath.Join(t.TempDir(), "empty.duet")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenMapped(empty); err == nil {
		t.Error("OpenMapped accepted an empty file")
	}
}

// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package columnar

import (
	"errors"
	"fmt"
	"math"
)

// DType is the element type of a column. Values are stored in the
// column index.
type DType uint8

const (
	// Int64 holds one int64 per row.
	Int64 DType = 1

	// Int64List holds a variable-length int64 sequence per row.
	Int64List DType = 2
)

func (d DType) String() string {
	switch d {
	case Int64:
		return "int64"
	case Int64List:
		return "int64[]"
	default:
		return fmt.Sprintf("unknown(%d)", d)
	}
}

func (d DType) valid() bool {
	return d == Int64 || d == Int64List
}

// Column names and types one column.
type Column struct {
	Name string
	Type DType
}

// Schema is the ordered column list of a container.
type Schema []Column

// Validate checks that the schema has at least one column, that names
// are non-empty, unique and fit the index, and that types are known.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return errors.New("schema has no columns")
	}
	var errs []error
	seen := make(map[string]bool, len(s))
	for i, column := range s {
		switch {
		case column.Name == "":
			errs = append(errs, fmt.Errorf("column %d has an empty name", i))
		case len(column.Name) > math.MaxUint16:
			errs = append(errs, fmt.Errorf("column %d name is %d bytes, limit %d", i, len(column.Name), math.MaxUint16))
		case seen[column.Name]:
			errs = append(errs, fmt.Errorf("duplicate column %q", column.Name))
		}
		seen[column.Name] = true
		if !column.Type.valid() {
			errs = append(errs, fmt.Errorf("column %q has unknown type %d", column.Name, column.Type))
		}
	}
	return errors.Join(errs...)
}

// Index returns the position of the named column.
func (s Schema) Index(name string) (int, bool) {
	for i, column := range s {
		if column.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package columnar

import (
	"encoding/binary"
	"fmt"
)

func encodeInt64(values []int64) []byte {
	data := make([]byte, 8*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint64(data[8*i:], uint64(value))
	}
	return data
}

func decodeInt64(data []byte) []int64 {
	values := make([]int64, len(data)/8)
	for i := range values {
		values[i] = int64(binary.LittleEndian.Uint64(data[8*i:]))
	}
	return values
}

func encodeInt64List(lists [][]int64) []byte {
	var total int
	for _, list := range lists {
		total += len(list)
	}
	values := make([]int64, 0, len(lists)+1+total)
	offset := int64(0)
	values = append(values, offset)
	for _, list := range lists {
		offset += int64(len(list))
		values = append(values, offset)
	}
	for _, list := range lists {
		values = append(values, list...)
	}
	return encodeInt64(values)
}

// decodeInt64List splits data into rows+1 offsets and the values they
// index. Rows share one backing array.
func decodeInt64List(data []byte, rows int) ([][]int64, error) {
	all := decodeInt64(data)
	if len(all) < rows+1 {
		return nil, fmt.Errorf("list column holds %d words, need at least %d offsets", len(all), rows+1)
	}
	offsets, values := all[:rows+1], all[rows+1:]
	if offsets[0] != 0 {
		return nil, fmt.Errorf("first offset is %d, want 0", offsets[0])
	}
	if last := offsets[rows]; last != int64(len(values)) {
		return nil, fmt.Errorf("last offset is %d, column holds %d values", last, len(values))
	}
	lists := make([][]int64, rows)
	for row := range rows {
		start, end := offsets[row], offsets[row+1]
		if end < start || end > int64(len(values)) {
			return nil, fmt.Errorf("row %d: invalid offsets [%d, %d) over %d values", row, start, end, len(values))
		}
		lists[row] = values[start:end:end]
	}
	return lists, nil
}

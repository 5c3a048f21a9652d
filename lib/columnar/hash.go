// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package columnar

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest.
type Hash [32]byte

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText encodes the hash as hex, so JSON output carries a
// string rather than a byte array.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses a hex hash.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Short returns the first 12 hex characters, for log lines.
func (h Hash) Short() string {
	return hex.EncodeToString(h[:6])
}

// ParseHash parses a 64-character hex string.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing hash: %w", err)
	}
	if len(decoded) != len(hash) {
		return hash, fmt.Errorf("hash is %d bytes, want %d", len(decoded), len(hash))
	}
	copy(hash[:], decoded)
	return hash, nil
}

// domainKey is a BLAKE3 key. The same bytes hash differently in each
// domain. Keys are the ASCII domain name, zero-padded to 32 bytes.
type domainKey [32]byte

var (
	columnDomainKey = domainKey{
		'd', 'u', 'e', 't', 'p', 'r', 'e', 'p', '.', 'c', 'o', 'l', 'u', 'm', 'n', 'a',
		'r', '.', 'c', 'o', 'l', 'u', 'm', 'n', 0, 0, 0, 0, 0, 0, 0, 0,
	}

	containerDomainKey = domainKey{
		'd', 'u', 'e', 't', 'p', 'r', 'e', 'p', '.', 'c', 'o', 'l', 'u', 'm', 'n', 'a',
		'r', '.', 'c', 'o', 'n', 't', 'a', 'i', 'n', 'e', 'r', 0, 0, 0, 0, 0,
	}
)

// HashColumn returns the column-domain hash of uncompressed column
// bytes.
func HashColumn(data []byte) Hash {
	return keyedHash(columnDomainKey, data)
}

// HashContainer returns the container-domain hash of a Merkle root
// over column hashes.
func HashContainer(merkleRoot Hash) Hash {
	return keyedHash(containerDomainKey, merkleRoot[:])
}

// containerHash derives a container hash from its column hashes.
func containerHash(columns []Hash) Hash {
	return HashContainer(MerkleRoot(columnDomainKey, columns))
}

// MerkleRoot computes a binary Merkle tree over hashes. Adjacent pairs
// are concatenated and hashed with key; an odd node at the end of a
// level is promoted unchanged rather than duplicated.
//
// Panics if hashes is empty.
func MerkleRoot(key domainKey, hashes []Hash) Hash {
	if len(hashes) == 0 {
		panic("columnar.MerkleRoot: empty hash list")
	}

	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("columnar: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var combined [64]byte

	level := append([]Hash(nil), hashes...)
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			copy(combined[:32], level[i][:])
			copy(combined[32:], level[i+1][:])
			hasher.Reset()
			hasher.Write(combined[:])
			var parent Hash
			copy(parent[:], hasher.Sum(nil))
			next = append(next, parent)
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level[0]
}

func keyedHash(key domainKey, data []byte) Hash {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("columnar: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}

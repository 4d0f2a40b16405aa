package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	ConfigHash Hash
	InputHash  Hash
)

// Constructors
func NewConfigHash(data []byte) ConfigHash { return ConfigHash(NewHash(data)) }
func NewInputHash(data []byte) InputHash   { return InputHash(NewHash(data)) }

// String conversions
func (h ConfigHash) String() string { return Hash(h).String() }
func (h InputHash) String() string  { return Hash(h).String() }

// ComputeConfigHash fingerprints a configuration key/value map so a persisted
// record can be traced back to the exact settings that produced it.
func ComputeConfigHash(fields map[string]interface{}) ConfigHash {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("%v", fields[key]))
	}

	return NewConfigHash([]byte(data.String()))
}

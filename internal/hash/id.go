package hash

import "github.com/cespare/xxhash/v2"

// ColumnID folds the xxHash64 of the given name into a 32-bit column id.
func ColumnID(name string) uint32 {
	sum := xxhash.Sum64String(name)
	return uint32(sum ^ (sum >> 32))
}

package anneal

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"
)

// Fingerprint returns a stable hash of an assignment. Two runs that end on
// the same schedule share a fingerprint, which makes reproducibility easy to
// check across machines.
func Fingerprint(assignment []int) string {
	buf := make([]byte, 2*len(assignment))
	for i, slot := range assignment {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(slot))
	}
	return fmt.Sprintf("%016x", xxh3.Hash(buf))
}

package idset

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Key computes a deterministic SHA-256 digest from the set's evaluation id
// and membership, hex-encoded. Identical logical content always yields the
// same key across process restarts, so persisted rows stay addressable.
//
// Two id sets producing the same key are assumed, not proven, to have
// identical membership. The cache re-verifies only the row count on reuse;
// an accidental collision between equally-sized sets would pass undetected.
func (s *IDSet) Key() string {
	if s == nil {
		return ""
	}

	h := sha256.New()

	// Evaluation id separated from members by a domain separator to prevent
	// collisions between the two fields.
	h.Write([]byte("e:"))
	h.Write([]byte(s.evaluationID))
	h.Write([]byte("\nm:"))

	// Members are already sorted and deduplicated, so the digest is
	// independent of input order.
	var buf [8]byte
	for _, m := range s.members {
		binary.BigEndian.PutUint64(buf[:], uint64(m))
		h.Write(buf[:])
	}

	return hex.EncodeToString(h.Sum(nil))
}

package gantry

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"time"
)

// Decision is an immutable policy verdict. TTL governs how long the
// decision cache may serve it; a zero TTL means "do not cache".
type Decision struct {
	Allowed     bool
	Reason      string
	Obligations map[string]any
	ComputedAt  time.Time
	TTL         time.Duration
}

// Fingerprint identifies an authorization query. Two requests with equal
// fingerprints must receive the same Decision for the fingerprint's TTL.
type Fingerprint string

// ComputeFingerprint hashes the authorization query inputs into a stable
// cache key. Fields are length-delimited before hashing so that no two
// distinct input tuples collide by concatenation.
func ComputeFingerprint(policyID, policyVersion, operationID, identityKey, resourceKey, action string) Fingerprint {
	h := fnv.New64a()
	var lenBuf [8]byte
	for _, field := range []string{policyID, policyVersion, operationID, identityKey, resourceKey, action} {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(field)))
		h.Write(lenBuf[:])
		h.Write([]byte(field))
	}
	return Fingerprint(fmt.Sprintf("%016x", h.Sum64()))
}

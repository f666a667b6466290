// Package zerocopy implements the shared-memory transport a
// ZeroCopyGroup hands to its client and wrapper-bridge peers: a
// deterministic SysV IPC key derivation and the shared region itself.
// Grounded on original_source/media-proxy/include/mesh/multipoint_zc.h
// and src/mesh/multipoint_zc.cc.
package zerocopy

import (
	"github.com/OneOfOne/xxhash"
)

// GenerateSysVKey derives the stable 32-bit SysV IPC key clients and the
// proxy both compute from a group id, so they agree on the same shared
// region without a side channel. The original hashes the id with
// std::hash<std::string> (a 64-bit, implementation-defined hash) and
// folds it down with a Thomas Wang-style 64-to-32 mix; this port swaps
// std::hash for github.com/OneOfOne/xxhash (a real, portable 64-bit
// hash — std::hash's output isn't just unspecified across platforms,
// it's unspecified across *runs* on libstdc++, where its string
// specialization is randomized per process by default, so reusing it
// verbatim in Go would make the key unpredictable) and preserves the
// mixing sequence exactly, since that sequence (not the upstream hash)
// is the part of the wire contract that must match bit-for-bit on both
// the proxy and client sides.
func GenerateSysVKey(groupID string) uint32 {
	hash := xxhash.Checksum64([]byte(groupID))

	lower := uint32(hash)
	upper := uint32(hash >> 32)
	mixed := lower ^ upper

	mixed ^= mixed >> 16
	mixed *= 0x85ebca6b
	mixed ^= mixed >> 13
	mixed *= 0xc2b2ae35
	mixed ^= mixed >> 16

	return mixed
}

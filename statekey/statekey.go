// Package statekey implements the pure, deterministic construction of the
// 31-byte trie keys that index protocol state (spec §4.3). Three key shapes
// exist: A (simple component), B (service base record), and C (service
// storage/preimage entries, hashed and interleaved with the service id).
//
// Only the current, hashed-interleaving constructor is implemented; the
// legacy un-hashed interleaving variant named in spec §9 is intentionally
// not carried over.
package statekey

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"jamconform/protocol"
)

// Component ids for shape-A keys: 1..14 are the 14 required simple
// components and 15 is an optional fifteenth slot. 255 is reserved for the shape-B service-base marker and is never a valid
// component id.
const (
	ComponentAuthPools        uint8 = 1
	ComponentAuthQueue        uint8 = 2
	ComponentRecentHistory    uint8 = 3
	ComponentSafrole          uint8 = 4
	ComponentDisputes         uint8 = 5
	ComponentEntropy          uint8 = 6
	ComponentNextValidators   uint8 = 7
	ComponentCurrValidators   uint8 = 8
	ComponentPrevValidators   uint8 = 9
	ComponentReports          uint8 = 10
	ComponentTimeslot         uint8 = 11
	ComponentPrivilegedIdents uint8 = 12
	ComponentStatistics       uint8 = 13
	ComponentAccumulationQ    uint8 = 14
	ComponentAccumulationHist uint8 = 15

	// ServiceBaseMarker is the shape-B first byte; not a valid component id.
	ServiceBaseMarker uint8 = 255
)

// Prefixes for the shape-C specializations (spec §4.3). Encoded as raw
// little-endian uint32 bytes before hashing.
const (
	storagePrefix uint32 = 0xFFFFFFFF // u32::MAX
	blobPrefix    uint32 = 0xFFFFFFFE // u32::MAX - 1
)

// Component constructs a shape-A key: byte 0 is the component id, the
// remaining 30 bytes are zero.
func Component(componentID uint8) protocol.TrieKey {
	var k protocol.TrieKey
	k[0] = componentID
	return k
}

// ServiceBase constructs a shape-B key for a service account's base record.
func ServiceBase(serviceID protocol.ServiceId) protocol.TrieKey {
	var k protocol.TrieKey
	k[0] = ServiceBaseMarker
	interleaveServiceID(&k, serviceID)
	return k
}

// interleaveServiceID writes the little-endian bytes of serviceID into
// k[1], k[3], k[5], k[7], leaving the even indices (besides k[0]) at zero.
func interleaveServiceID(k *protocol.TrieKey, serviceID protocol.ServiceId) {
	var idBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], uint32(serviceID))
	k[1] = idBuf[0]
	k[3] = idBuf[1]
	k[5] = idBuf[2]
	k[7] = idBuf[3]
}

// shapeC constructs a shape-C key: hash prefix‖p, then interleave the
// service id's little-endian bytes with the hash's leading bytes.
//
//	result[0,2,4,6] = LE(service_id)
//	result[1,3,5,7] = hash[0:4]
//	result[8:31]    = hash[4:27]
func shapeC(serviceID protocol.ServiceId, prefix uint32, p []byte) protocol.TrieKey {
	var prefixBuf [4]byte
	binary.LittleEndian.PutUint32(prefixBuf[:], prefix)
	input := make([]byte, 0, 4+len(p))
	input = append(input, prefixBuf[:]...)
	input = append(input, p...)
	sum := blake2b.Sum256(input)

	var idBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], uint32(serviceID))

	var k protocol.TrieKey
	k[0] = idBuf[0]
	k[2] = idBuf[1]
	k[4] = idBuf[2]
	k[6] = idBuf[3]
	k[1] = sum[0]
	k[3] = sum[1]
	k[5] = sum[2]
	k[7] = sum[3]
	copy(k[8:31], sum[4:27])
	return k
}

// StorageKey constructs the shape-C key for a service's storage entry.
func StorageKey(serviceID protocol.ServiceId, storageKey []byte) protocol.TrieKey {
	return shapeC(serviceID, storagePrefix, storageKey)
}

// PreimageBlobKey constructs the shape-C key for a service's preimage blob,
// keyed by the 32-byte preimage hash.
func PreimageBlobKey(serviceID protocol.ServiceId, preimageHash protocol.Hash) protocol.TrieKey {
	return shapeC(serviceID, blobPrefix, preimageHash[:])
}

// PreimageLookupKey constructs the shape-C key for a service's
// preimage-lookup timestamp entry, keyed by (length, preimage hash).
func PreimageLookupKey(serviceID protocol.ServiceId, length uint32, preimageHash protocol.Hash) protocol.TrieKey {
	return shapeC(serviceID, length, preimageHash[:])
}

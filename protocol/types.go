// Package protocol implements the wire-framed conformance protocol shared by
// the fuzzer (driver) and the target (implementation under test): the
// length-prefixed frame codec, the tagged-union message codec, and the
// primitive types of the protocol's data model.
package protocol

import "fmt"

// MaxMessageSize is the largest payload, in bytes, a single frame may carry.
// Fixed per build, as required by §4.1 of the protocol specification.
const MaxMessageSize = 128 << 20 // 128 MiB

const (
	// HashSize is the width, in bytes, of Hash, StateRoot and HeaderHash.
	HashSize = 32
	// TrieKeySize is the width, in bytes, of a state-trie key.
	TrieKeySize = 31
)

// Hash is a 32-byte digest.
type Hash [HashSize]byte

// StateRoot is the Merkle root of a Merklization dictionary.
type StateRoot = Hash

// HeaderHash identifies a block header.
type HeaderHash = Hash

// TrieKey indexes one leaf of the Merklization dictionary.
type TrieKey [TrieKeySize]byte

// ServiceId identifies a protocol-level service account.
type ServiceId uint32

// TimeSlot is the protocol's discrete time unit.
type TimeSlot uint32

// Gas measures computational cost.
type Gas uint64

// Features is a bitfield of protocol features a peer supports.
type Features uint32

// Feature bits. Bits other than these are reserved: their semantics must be
// obtained from the protocol document before use (spec §9 open question).
const (
	FeatureFork     Features = 1 << 0
	FeatureAncestry Features = 1 << 1

	// ImplementedFeatures are the features this implementation understands.
	ImplementedFeatures = FeatureFork | FeatureAncestry
)

func (f Features) Has(bit Features) bool { return f&bit != 0 }

func (h Hash) String() string {
	return fmt.Sprintf("%x", [HashSize]byte(h))
}

func (k TrieKey) String() string {
	return fmt.Sprintf("%x", [TrieKeySize]byte(k))
}

// Version is a three-part semantic version as carried by PeerInfo.
type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// KeyValue is one entry of a wire State message.
type KeyValue struct {
	Key   TrieKey
	Value []byte
}

// AncestryItem records one historical block for ancestry seeding.
type AncestryItem struct {
	HeaderHash Hash
	Slot       TimeSlot
}

// Header is the portion of a block the conformance protocol itself
// interprets: the parent link and slot used for fork detection. Everything
// else about a header is opaque to this package — full header semantics
// belong to the external state-transition function (spec §1 non-goals).
type Header struct {
	ParentHash Hash
	Slot       TimeSlot
	// Extra carries the remainder of the header's encoded bytes verbatim;
	// this package round-trips it without interpreting it.
	Extra []byte
}

// Block is a proposed protocol message carrying a header and extrinsics. The
// extrinsics are an opaque blob: only the external STF interprets them.
type Block struct {
	Header     Header
	Extrinsics []byte
}

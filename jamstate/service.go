package jamstate

import "jamconform/protocol"

// ServiceAccountBase holds the shape-B fields of a service account: the
// fixed-width record addressed directly by statekey.ServiceBase, as opposed
// to the service's storage/preimage entries which live under shape-C keys.
type ServiceAccountBase struct {
	CodeHash      protocol.Hash
	Balance       uint64
	MinItemGas    protocol.Gas
	MinMemoGas    protocol.Gas
	TotalBytes    uint64
	TotalItems    uint32
	CreatedAt     protocol.TimeSlot
	ParentService protocol.ServiceId // 0 if the service has no parent
}

// PreimageLookupKey identifies a preimage-lookup timestamp entry by the hash
// and length of the preimage it tracks (spec §3, §4.3 shape C).
type PreimageLookupKey struct {
	Hash   protocol.Hash
	Length uint32
}

// ServiceAccount is the full structured record for one service: its base
// fields plus storage, preimage blobs, and preimage-lookup timestamps.
type ServiceAccount struct {
	Base ServiceAccountBase

	// Storage maps a service's arbitrary-length storage keys (as a string,
	// for map-key use) to their stored bytes.
	Storage map[string][]byte

	// Preimages maps a preimage's hash to its blob. The hash is always
	// blake2b_256(blob); it is never stored independently of the blob.
	Preimages map[protocol.Hash][]byte

	// PreimageLookups maps (hash, length) to the slot at which the lookup
	// was recorded.
	PreimageLookups map[PreimageLookupKey]protocol.TimeSlot
}

// NewServiceAccount returns an empty, ready-to-populate account.
func NewServiceAccount() *ServiceAccount {
	return &ServiceAccount{
		Storage:         make(map[string][]byte),
		Preimages:       make(map[protocol.Hash][]byte),
		PreimageLookups: make(map[PreimageLookupKey]protocol.TimeSlot),
	}
}

// Clone returns a deep copy, so callers can hold onto a ServiceAccount
// across mutations of the State it came from (used by target/ for its
// pending-import / rollback cache).
func (sa *ServiceAccount) Clone() *ServiceAccount {
	out := NewServiceAccount()
	out.Base = sa.Base
	for k, v := range sa.Storage {
		cp := make([]byte, len(v))
		copy(cp, v)
		out.Storage[k] = cp
	}
	for h, v := range sa.Preimages {
		cp := make([]byte, len(v))
		copy(cp, v)
		out.Preimages[h] = cp
	}
	for k, v := range sa.PreimageLookups {
		out.PreimageLookups[k] = v
	}
	return out
}

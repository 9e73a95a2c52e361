package protocol

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// HashHeader computes the block-identifying hash used for fork detection
// (spec §4.6 "block_hash = header_hash(block.header)"). Only the fields this
// package interprets (parent hash, slot, and the opaque Extra tail) feed the
// hash; full header semantics belong to the external STF.
func HashHeader(h Header) Hash {
	buf := make([]byte, 0, HashSize+4+len(h.Extra))
	buf = append(buf, h.ParentHash[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.Slot))
	buf = append(buf, h.Extra...)
	return blake2b.Sum256(buf)
}

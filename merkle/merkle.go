// Package merkle implements the Merklization dictionary: a
// {31-byte key → bytes} map with unique keys and a deterministic 32-byte
// state root.
//
// The exact hash and padding scheme for the root is protocol-defined by the
// JAM greypaper, which this package does not attempt to reproduce byte for
// byte (see DESIGN.md). It implements a concrete, internally consistent
// placeholder scheme instead — blake2b-256 over domain-separated leaf/node
// preimages, built as a level-by-level binary tree — so the rest of the
// system has a working, testable root function. Swapping in the
// authoritative greypaper bytes only requires changing hashLeaf and
// hashNode.
package merkle

import (
	"bytes"
	"sort"

	"golang.org/x/crypto/blake2b"

	"jamconform/protocol"
)

var (
	leafDomain  = []byte("leaf")
	nodeDomain  = []byte("node")
	emptyDomain = []byte("empty")
)

// Dictionary is a value type: no aliasing, no background mutation. Equality
// of two dictionaries' contents is guaranteed to imply equality of their
// roots, and vice versa (spec §4.4 invariant).
type Dictionary struct {
	entries map[protocol.TrieKey][]byte
}

// New returns an empty Merklization dictionary.
func New() *Dictionary {
	return &Dictionary{entries: make(map[protocol.TrieKey][]byte)}
}

// Put inserts or replaces the value for k.
func (d *Dictionary) Put(k protocol.TrieKey, v []byte) {
	cp := make([]byte, len(v))
	copy(cp, v)
	d.entries[k] = cp
}

// Remove deletes k, if present.
func (d *Dictionary) Remove(k protocol.TrieKey) {
	delete(d.entries, k)
}

// Get returns the value for k and whether it was present.
func (d *Dictionary) Get(k protocol.TrieKey) ([]byte, bool) {
	v, ok := d.entries[k]
	return v, ok
}

// Len returns the number of entries.
func (d *Dictionary) Len() int { return len(d.entries) }

// IterSorted returns all entries in ascending key order (unsigned
// lexicographic on the 31 key bytes), deterministically.
func (d *Dictionary) IterSorted() []protocol.KeyValue {
	out := make([]protocol.KeyValue, 0, len(d.entries))
	for k, v := range d.entries {
		out = append(out, protocol.KeyValue{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Key[:], out[j].Key[:]) < 0
	})
	return out
}

// Root computes the deterministic Merkle root over the sorted entries. It is
// idempotent and pure: calling it repeatedly without mutating the dictionary
// always yields the same 32-byte value.
func (d *Dictionary) Root() protocol.StateRoot {
	sorted := d.IterSorted()
	if len(sorted) == 0 {
		return blake2b.Sum256(emptyDomain)
	}
	level := make([][32]byte, len(sorted))
	for i, kv := range sorted {
		level[i] = hashLeaf(kv.Key, kv.Value)
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = hashNode(level[i], level[i+1])
		}
		level = next
	}
	return protocol.StateRoot(level[0])
}

func hashLeaf(k protocol.TrieKey, v []byte) [32]byte {
	buf := make([]byte, 0, len(leafDomain)+len(k)+len(v))
	buf = append(buf, leafDomain...)
	buf = append(buf, k[:]...)
	buf = append(buf, v...)
	return blake2b.Sum256(buf)
}

func hashNode(left, right [32]byte) [32]byte {
	buf := make([]byte, 0, len(nodeDomain)+64)
	buf = append(buf, nodeDomain...)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return blake2b.Sum256(buf)
}

// FromKeyValues builds a Dictionary from an ordered sequence of KeyValue
// pairs such as a wire State message, failing with protocol.ErrDuplicateKey
// if any key repeats (spec §4.5 to_wire/from_wire boundary).
func FromKeyValues(items []protocol.KeyValue) (*Dictionary, error) {
	d := New()
	for _, kv := range items {
		if _, exists := d.entries[kv.Key]; exists {
			return nil, protocol.ErrDuplicateKey
		}
		d.Put(kv.Key, kv.Value)
	}
	return d, nil
}

// Equal reports whether two dictionaries have the same root, which this
// package guarantees is equivalent to having the same contents.
func Equal(a, b *Dictionary) bool {
	return a.Root() == b.Root()
}

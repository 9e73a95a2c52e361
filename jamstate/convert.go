package jamstate

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"jamconform/merkle"
	"jamconform/protocol"
	"jamconform/statekey"
)

// Shape-C value kind tags (jamstate-internal; never transmitted as a
// separate wire field — see DESIGN.md "Shape-C round trip").
const (
	kindStorage byte = 0
	kindBlob    byte = 1
	kindLookup  byte = 2
)

// Flatten converts structured state into its Merklization dictionary (spec
// §4.5 flatten). The result never shares storage with s.
func Flatten(s *State) *merkle.Dictionary {
	d := merkle.New()

	for id := firstComponent; id <= lastComponent; id++ {
		if v, ok := s.Component(id); ok {
			d.Put(statekey.Component(id), v)
		}
	}

	for serviceID, sa := range s.Services {
		d.Put(statekey.ServiceBase(serviceID), encodeBase(sa.Base))

		for rawKey, value := range sa.Storage {
			d.Put(statekey.StorageKey(serviceID, []byte(rawKey)), encodeStorageValue([]byte(rawKey), value))
		}
		for hash, blob := range sa.Preimages {
			d.Put(statekey.PreimageBlobKey(serviceID, hash), encodeBlobValue(blob))
		}
		for key, ts := range sa.PreimageLookups {
			d.Put(statekey.PreimageLookupKey(serviceID, key.Length, key.Hash), encodeLookupValue(key, ts))
		}
	}

	return d
}

// Rebuild is the inverse of Flatten (spec §4.5 rebuild). It fails with
// protocol.ErrIncompleteState if any of the 14 required simple components
// (ids 1..14; id 15 is reserved/optional, see DESIGN.md) is absent, and with
// protocol.ErrInvalidFormat if an entry's key or value shape is malformed.
func Rebuild(d *merkle.Dictionary) (*State, error) {
	s := New()

	for _, kv := range d.IterSorted() {
		k := kv.Key
		switch {
		case isComponentKey(k):
			s.SetComponent(k[0], kv.Value)

		case isServiceBaseKey(k):
			base, err := decodeBase(kv.Value)
			if err != nil {
				return nil, err
			}
			s.Service(serviceIDFromBase(k)).Base = base

		default:
			zeroTail := true
			for _, b := range k[1:] {
				if b != 0 {
					zeroTail = false
					break
				}
			}
			if zeroTail {
				return nil, fmt.Errorf("%w: unknown component id %d", protocol.ErrInvalidFormat, k[0])
			}
			serviceID := serviceIDFromShapeC(k)
			if err := applyShapeC(s.Service(serviceID), kv.Value); err != nil {
				return nil, err
			}
		}
	}

	for id := firstComponent; id < reservedSlot15; id++ {
		if _, ok := s.Component(id); !ok {
			return nil, fmt.Errorf("%w: component %d", protocol.ErrIncompleteState, id)
		}
	}
	return s, nil
}

// ToWire flattens s and serializes it as the ordered KeyValue list used by
// the Initialize and State wire messages (spec §4.5 to_wire).
func ToWire(s *State) []protocol.KeyValue {
	return Flatten(s).IterSorted()
}

// FromWire is the inverse of ToWire (spec §4.5 from_wire). It fails with
// protocol.ErrDuplicateKey if kvs repeats a key, or with the errors Rebuild
// can return.
func FromWire(kvs []protocol.KeyValue) (*State, error) {
	d, err := merkle.FromKeyValues(kvs)
	if err != nil {
		return nil, err
	}
	return Rebuild(d)
}

func isComponentKey(k protocol.TrieKey) bool {
	if k[0] < firstComponent || k[0] > lastComponent {
		return false
	}
	for i := 1; i < len(k); i++ {
		if k[i] != 0 {
			return false
		}
	}
	return true
}

func isServiceBaseKey(k protocol.TrieKey) bool {
	if k[0] != statekey.ServiceBaseMarker {
		return false
	}
	for _, i := range []int{2, 4, 6} {
		if k[i] != 0 {
			return false
		}
	}
	for i := 8; i < len(k); i++ {
		if k[i] != 0 {
			return false
		}
	}
	return true
}

func serviceIDFromBase(k protocol.TrieKey) protocol.ServiceId {
	return protocol.ServiceId(binary.LittleEndian.Uint32([]byte{k[1], k[3], k[5], k[7]}))
}

func serviceIDFromShapeC(k protocol.TrieKey) protocol.ServiceId {
	return protocol.ServiceId(binary.LittleEndian.Uint32([]byte{k[0], k[2], k[4], k[6]}))
}

func applyShapeC(sa *ServiceAccount, value []byte) error {
	if len(value) < 1 {
		return fmt.Errorf("%w: empty shape-C value", protocol.ErrInvalidFormat)
	}
	switch value[0] {
	case kindStorage:
		rawKey, v, err := decodeStorageValue(value)
		if err != nil {
			return err
		}
		sa.Storage[string(rawKey)] = v
	case kindBlob:
		blob := append([]byte(nil), value[1:]...)
		sa.Preimages[blake2b.Sum256(blob)] = blob
	case kindLookup:
		key, ts, err := decodeLookupValue(value)
		if err != nil {
			return err
		}
		sa.PreimageLookups[key] = ts
	default:
		return fmt.Errorf("%w: unknown shape-C value kind %d", protocol.ErrInvalidFormat, value[0])
	}
	return nil
}

func encodeBase(b ServiceAccountBase) []byte {
	out := make([]byte, 0, 32+8+8+8+8+4+4+4)
	out = append(out, b.CodeHash[:]...)
	out = binary.LittleEndian.AppendUint64(out, b.Balance)
	out = binary.LittleEndian.AppendUint64(out, uint64(b.MinItemGas))
	out = binary.LittleEndian.AppendUint64(out, uint64(b.MinMemoGas))
	out = binary.LittleEndian.AppendUint64(out, b.TotalBytes)
	out = binary.LittleEndian.AppendUint32(out, b.TotalItems)
	out = binary.LittleEndian.AppendUint32(out, uint32(b.CreatedAt))
	out = binary.LittleEndian.AppendUint32(out, uint32(b.ParentService))
	return out
}

const baseWireLen = 32 + 8 + 8 + 8 + 8 + 4 + 4 + 4

func decodeBase(v []byte) (ServiceAccountBase, error) {
	if len(v) != baseWireLen {
		return ServiceAccountBase{}, fmt.Errorf("%w: service base record has %d bytes, want %d", protocol.ErrInvalidFormat, len(v), baseWireLen)
	}
	var b ServiceAccountBase
	copy(b.CodeHash[:], v[0:32])
	b.Balance = binary.LittleEndian.Uint64(v[32:40])
	b.MinItemGas = protocol.Gas(binary.LittleEndian.Uint64(v[40:48]))
	b.MinMemoGas = protocol.Gas(binary.LittleEndian.Uint64(v[48:56]))
	b.TotalBytes = binary.LittleEndian.Uint64(v[56:64])
	b.TotalItems = binary.LittleEndian.Uint32(v[64:68])
	b.CreatedAt = protocol.TimeSlot(binary.LittleEndian.Uint32(v[68:72]))
	b.ParentService = protocol.ServiceId(binary.LittleEndian.Uint32(v[72:76]))
	return b, nil
}

func encodeStorageValue(rawKey, value []byte) []byte {
	out := make([]byte, 0, 1+4+len(rawKey)+len(value))
	out = append(out, kindStorage)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(rawKey)))
	out = append(out, rawKey...)
	out = append(out, value...)
	return out
}

func decodeStorageValue(v []byte) (rawKey, value []byte, err error) {
	if len(v) < 1+4 {
		return nil, nil, fmt.Errorf("%w: truncated storage value", protocol.ErrInvalidFormat)
	}
	keyLen := binary.LittleEndian.Uint32(v[1:5])
	if uint32(len(v)-5) < keyLen {
		return nil, nil, fmt.Errorf("%w: storage value key length out of range", protocol.ErrInvalidFormat)
	}
	rawKey = append([]byte(nil), v[5:5+keyLen]...)
	value = append([]byte(nil), v[5+keyLen:]...)
	return rawKey, value, nil
}

func encodeBlobValue(blob []byte) []byte {
	out := make([]byte, 0, 1+len(blob))
	out = append(out, kindBlob)
	out = append(out, blob...)
	return out
}

func encodeLookupValue(key PreimageLookupKey, ts protocol.TimeSlot) []byte {
	out := make([]byte, 0, 1+32+4+4)
	out = append(out, kindLookup)
	out = append(out, key.Hash[:]...)
	out = binary.LittleEndian.AppendUint32(out, key.Length)
	out = binary.LittleEndian.AppendUint32(out, uint32(ts))
	return out
}

func decodeLookupValue(v []byte) (PreimageLookupKey, protocol.TimeSlot, error) {
	const wantLen = 1 + 32 + 4 + 4
	if len(v) != wantLen {
		return PreimageLookupKey{}, 0, fmt.Errorf("%w: lookup value has %d bytes, want %d", protocol.ErrInvalidFormat, len(v), wantLen)
	}
	var key PreimageLookupKey
	copy(key.Hash[:], v[1:33])
	key.Length = binary.LittleEndian.Uint32(v[33:37])
	ts := protocol.TimeSlot(binary.LittleEndian.Uint32(v[37:41]))
	return key, ts, nil
}

package statekey

import (
	"testing"

	"jamconform/protocol"
)

func TestComponentShape(t *testing.T) {
	k := Component(ComponentSafrole)
	if k[0] != ComponentSafrole {
		t.Fatalf("byte 0 = %d, want %d", k[0], ComponentSafrole)
	}
	for i := 1; i < len(k); i++ {
		if k[i] != 0 {
			t.Fatalf("byte %d = %d, want 0", i, k[i])
		}
	}
}

func TestServiceBaseShape(t *testing.T) {
	k := ServiceBase(protocol.ServiceId(0x11223344))
	if k[0] != ServiceBaseMarker {
		t.Fatalf("byte 0 = %d, want 255", k[0])
	}
	want := map[int]byte{1: 0x44, 3: 0x33, 5: 0x22, 7: 0x11}
	for i := 1; i < len(k); i++ {
		if b, ok := want[i]; ok {
			if k[i] != b {
				t.Fatalf("byte %d = %#x, want %#x", i, k[i], b)
			}
			continue
		}
		if k[i] != 0 {
			t.Fatalf("byte %d = %d, want 0", i, k[i])
		}
	}
}

func TestKeyShapePurity(t *testing.T) {
	a := StorageKey(7, []byte("a-key"))
	b := StorageKey(7, []byte("a-key"))
	if a != b {
		t.Fatalf("StorageKey not pure: %x != %x", a, b)
	}
}

func TestStorageKeyServiceIDBoundaries(t *testing.T) {
	ids := []protocol.ServiceId{0, 0xFFFFFFFE, 0xFFFFFFFF}
	seen := map[protocol.TrieKey]protocol.ServiceId{}
	for _, id := range ids {
		k := StorageKey(id, []byte("same-storage-key"))
		if prev, ok := seen[k]; ok {
			t.Fatalf("collision between service %d and %d", prev, id)
		}
		seen[k] = id
	}
}

func TestStorageKeyLengthBoundaries(t *testing.T) {
	lengths := []int{0, 1, 255, 1024}
	seen := map[protocol.TrieKey]int{}
	for _, n := range lengths {
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = byte(i)
		}
		k := StorageKey(42, buf)
		if prev, ok := seen[k]; ok {
			t.Fatalf("collision between length %d and %d", prev, n)
		}
		seen[k] = n
	}
}

func TestPreimageLookupKeyLengthField(t *testing.T) {
	h := protocol.Hash{1, 2, 3}
	matching := PreimageLookupKey(1, 100, h)
	mismatched := PreimageLookupKey(1, 200, h)
	if matching == mismatched {
		t.Fatalf("lookup keys for different lengths must differ")
	}
}

func TestShapesDoNotCollideAcrossKinds(t *testing.T) {
	comp := Component(ComponentSafrole)
	base := ServiceBase(4)
	storage := StorageKey(4, []byte("x"))
	blob := PreimageBlobKey(4, protocol.Hash{9})
	lookup := PreimageLookupKey(4, 9, protocol.Hash{9})
	keys := []protocol.TrieKey{comp, base, storage, blob, lookup}
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[i] == keys[j] {
				t.Fatalf("unexpected collision between key %d and %d", i, j)
			}
		}
	}
}

// FuzzShapeCPurity checks P4: equal inputs yield equal outputs, and the
// function never panics on arbitrary storage-key bytes.
func FuzzShapeCPurity(f *testing.F) {
	f.Add(uint32(0), []byte(""))
	f.Add(uint32(1), []byte("hello"))
	f.Add(uint32(0xFFFFFFFF), []byte{0, 1, 2, 3, 4, 5, 6, 7})
	f.Fuzz(func(t *testing.T, serviceID uint32, storage []byte) {
		a := StorageKey(protocol.ServiceId(serviceID), storage)
		b := StorageKey(protocol.ServiceId(serviceID), storage)
		if a != b {
			t.Fatalf("StorageKey is not a pure function")
		}
	})
}

package jamstate

import (
	"errors"
	"reflect"
	"testing"

	"golang.org/x/crypto/blake2b"

	"jamconform/protocol"
	"jamconform/statekey"
)

func sampleState() *State {
	s := New()
	for id := firstComponent; id <= lastComponent; id++ {
		s.SetComponent(id, []byte{byte(id), byte(id), byte(id)})
	}

	sa := s.Service(7)
	sa.Base = ServiceAccountBase{
		CodeHash:      protocol.Hash{1, 2, 3},
		Balance:       1_000_000,
		MinItemGas:    10,
		MinMemoGas:    20,
		TotalBytes:    4096,
		TotalItems:    3,
		CreatedAt:     99,
		ParentService: 0,
	}
	sa.Storage["alpha"] = []byte("alpha-value")
	sa.Storage[""] = []byte("empty-key-value")
	blob := []byte("hello preimage world")
	h := blake2b.Sum256(blob)
	sa.Preimages[h] = blob
	sa.PreimageLookups[PreimageLookupKey{Hash: h, Length: uint32(len(blob))}] = 42

	other := s.Service(0xFFFFFFFF)
	other.Base.Balance = 7

	return s
}

func TestRebuildFlattenRoundTrip(t *testing.T) {
	s := sampleState()
	rebuilt, err := Rebuild(Flatten(s))
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if !reflect.DeepEqual(rebuilt.Components, s.Components) {
		t.Fatalf("components did not round-trip")
	}
	if len(rebuilt.Services) != len(s.Services) {
		t.Fatalf("service count mismatch: got %d, want %d", len(rebuilt.Services), len(s.Services))
	}
	for id, sa := range s.Services {
		rsa, ok := rebuilt.Services[id]
		if !ok {
			t.Fatalf("service %d missing after rebuild", id)
		}
		if rsa.Base != sa.Base {
			t.Fatalf("service %d base mismatch: got %+v, want %+v", id, rsa.Base, sa.Base)
		}
		if len(rsa.Storage) != len(sa.Storage) {
			t.Fatalf("service %d storage count mismatch", id)
		}
		for k, v := range sa.Storage {
			if string(rsa.Storage[k]) != string(v) {
				t.Fatalf("service %d storage[%q] mismatch", id, k)
			}
		}
		for h, v := range sa.Preimages {
			if string(rsa.Preimages[h]) != string(v) {
				t.Fatalf("service %d preimage %x mismatch", id, h)
			}
		}
		for lk, ts := range sa.PreimageLookups {
			if rsa.PreimageLookups[lk] != ts {
				t.Fatalf("service %d lookup %+v mismatch", id, lk)
			}
		}
	}
}

func TestToWireFromWireRoundTrip(t *testing.T) {
	s := sampleState()
	kvs := ToWire(s)
	rebuilt, err := FromWire(kvs)
	if err != nil {
		t.Fatalf("FromWire: %v", err)
	}
	if Flatten(s).Root() != Flatten(rebuilt).Root() {
		t.Fatalf("dictionary root changed across ToWire/FromWire")
	}
}

func TestFromWireDuplicateKey(t *testing.T) {
	kv := protocol.KeyValue{Key: statekey.Component(statekey.ComponentSafrole), Value: []byte("a")}
	_, err := FromWire([]protocol.KeyValue{kv, kv})
	if !errors.Is(err, protocol.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestRebuildMissingRequiredComponent(t *testing.T) {
	s := sampleState()
	// Drop one required component (id 15, AccumulationHist, is optional and
	// deliberately left out of this check).
	s.Components[statekey.ComponentSafrole] = nil

	_, err := Rebuild(Flatten(s))
	if !errors.Is(err, protocol.ErrIncompleteState) {
		t.Fatalf("expected ErrIncompleteState, got %v", err)
	}
}

func TestRebuildToleratesMissingOptionalSlot15(t *testing.T) {
	s := sampleState()
	s.Components[statekey.ComponentAccumulationHist] = nil

	if _, err := Rebuild(Flatten(s)); err != nil {
		t.Fatalf("unexpected error when slot 15 is absent: %v", err)
	}
}

func TestRebuildMalformedServiceBase(t *testing.T) {
	d := Flatten(sampleState())
	d.Put(statekey.ServiceBase(999), []byte("too short"))

	_, err := Rebuild(d)
	if !errors.Is(err, protocol.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestRebuildMalformedShapeCKind(t *testing.T) {
	d := Flatten(sampleState())
	d.Put(statekey.StorageKey(999, []byte("k")), []byte{0xFF})

	_, err := Rebuild(d)
	if !errors.Is(err, protocol.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestFlattenOmitsUnsetComponents(t *testing.T) {
	s := New()
	s.SetComponent(statekey.ComponentSafrole, []byte("only one"))
	d := Flatten(s)
	if d.Len() != 1 {
		t.Fatalf("expected exactly 1 entry, got %d", d.Len())
	}
}

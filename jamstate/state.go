// Package jamstate holds the structured protocol state used by the target
// and the generator provider: 14 required simple components, one reserved
// fifteenth, and a services map (spec §3, §4.5).
//
// The simple components are opaque byte blobs to this package — the codec
// for "arbitrary protocol types" (their internal structure) is out of scope
// (spec §1). jamstate only knows how to place them at the right trie key and
// recover them unchanged; it never interprets their contents.
package jamstate

import (
	"jamconform/protocol"
	"jamconform/statekey"
)

// firstComponent and lastComponent bound the shape-A id range (spec §4.3).
const (
	firstComponent  = statekey.ComponentAuthPools
	lastComponent   = statekey.ComponentAccumulationHist
	numComponents   = int(lastComponent)
	reservedSlot15  = statekey.ComponentAccumulationHist // present-if-supplied, never required
)

// State is the full structured protocol state.
type State struct {
	// Components holds the 14 required (ids 1..14) plus 1 optional (id 15)
	// simple components, indexed by component id; Components[0] is unused.
	Components [numComponents + 1][]byte

	Services map[protocol.ServiceId]*ServiceAccount
}

// New returns an empty State with no components and no services.
func New() *State {
	return &State{Services: make(map[protocol.ServiceId]*ServiceAccount)}
}

// SetComponent stores the raw bytes for a simple component. It panics if id
// is outside 1..15, which would be a programming error in a caller, not a
// malformed-input condition (use the converter's Rebuild for untrusted
// wire data).
func (s *State) SetComponent(id uint8, value []byte) {
	if id < firstComponent || id > lastComponent {
		panic("jamstate: component id out of range")
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.Components[id] = cp
}

// Component returns the raw bytes for a simple component and whether it was
// set.
func (s *State) Component(id uint8) ([]byte, bool) {
	if id < firstComponent || id > lastComponent {
		return nil, false
	}
	v := s.Components[id]
	return v, v != nil
}

// Service returns the account for id, creating it if absent.
func (s *State) Service(id protocol.ServiceId) *ServiceAccount {
	sa, ok := s.Services[id]
	if !ok {
		sa = NewServiceAccount()
		s.Services[id] = sa
	}
	return sa
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	out := New()
	out.Components = s.Components
	for i, c := range s.Components {
		if c != nil {
			out.Components[i] = append([]byte(nil), c...)
		}
	}
	for id, sa := range s.Services {
		out.Services[id] = sa.Clone()
	}
	return out
}

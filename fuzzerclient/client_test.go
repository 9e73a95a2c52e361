package fuzzerclient

import (
	"net"
	"testing"

	"jamconform/jamstate"
	"jamconform/protocol"
	"jamconform/statekey"
	"jamconform/target"
)

type stubSTF struct{}

func (stubSTF) Apply(state *jamstate.State, _ protocol.StateRoot, block protocol.Block) (*jamstate.State, error) {
	return state.Clone(), nil
}

func pipedClientAndTarget(t *testing.T) *Client {
	t.Helper()
	clientConn, targetConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close() })

	sess := target.New(stubSTF{}, target.Identity{AppName: "test-target"}, nil)
	go func() {
		target.Serve(targetConn, sess)
		targetConn.Close()
	}()

	return New(clientConn, 12345, nil)
}

func sampleKeyVals(t *testing.T) []protocol.KeyValue {
	t.Helper()
	s := jamstate.New()
	for id := uint8(1); id <= statekey.ComponentAccumulationHist; id++ {
		s.SetComponent(id, []byte{id})
	}
	return jamstate.ToWire(s)
}

func TestClientFullLifecycle(t *testing.T) {
	c := pipedClientAndTarget(t)

	if err := c.Handshake(Identity{FuzzVersion: 1, FuzzFeatures: 0x03, AppName: "jamzig-fuzzer"}); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if c.Phase() != PhaseHandshakeComplete {
		t.Fatalf("phase = %v, want HandshakeComplete", c.Phase())
	}
	if c.NegotiatedFeatures() != protocol.ImplementedFeatures {
		t.Fatalf("negotiated = %#x, want %#x", c.NegotiatedFeatures(), protocol.ImplementedFeatures)
	}

	genesisHeader := protocol.Header{Slot: 0}
	root, err := c.SetState(genesisHeader, sampleKeyVals(t), nil)
	if err != nil {
		t.Fatalf("set_state: %v", err)
	}
	if root == (protocol.StateRoot{}) {
		t.Fatalf("expected non-zero genesis root")
	}
	if c.Phase() != PhaseStateInitialized {
		t.Fatalf("phase = %v, want StateInitialized", c.Phase())
	}

	genesisHash := protocol.HashHeader(genesisHeader)
	block := protocol.Block{Header: protocol.Header{ParentHash: genesisHash, Slot: 1}}
	outcome, err := c.SendBlock(block)
	if err != nil {
		t.Fatalf("send_block: %v", err)
	}
	if !outcome.Success {
		t.Fatalf("expected success, got error %q", outcome.Message)
	}

	items, err := c.GetState(protocol.HashHeader(block.Header))
	if err != nil {
		t.Fatalf("get_state: %v", err)
	}
	if len(items) == 0 {
		t.Fatalf("expected a non-empty state dump")
	}

	if err := c.Kill(); err != nil {
		t.Fatalf("kill: %v", err)
	}
}

func TestCompareStateRoots(t *testing.T) {
	a := protocol.StateRoot{1, 2, 3}
	b := protocol.StateRoot{1, 2, 3}
	c := protocol.StateRoot{1, 2, 4}
	if !CompareStateRoots(a, b) {
		t.Fatalf("expected equal roots to compare equal")
	}
	if CompareStateRoots(a, c) {
		t.Fatalf("expected differing roots to compare unequal")
	}
}

func TestSendBlockBeforeStateInitializedFails(t *testing.T) {
	c := pipedClientAndTarget(t)
	if err := c.Handshake(Identity{FuzzVersion: 1}); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	_, err := c.SendBlock(protocol.Block{})
	if err != protocol.ErrStateNotReady {
		t.Fatalf("expected ErrStateNotReady, got %v", err)
	}
}

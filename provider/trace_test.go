package provider

import (
	"encoding/hex"
	"net"
	"testing"

	"jamconform/fuzzerclient"
	"jamconform/internal/testutil"
	"jamconform/jamstate"
	"jamconform/protocol"
	"jamconform/statekey"
	"jamconform/target"
)

func sampleTraceState(stamp byte) []protocol.KeyValue {
	s := jamstate.New()
	for id := uint8(1); id <= statekey.ComponentAccumulationHist; id++ {
		s.SetComponent(id, []byte{id, stamp})
	}
	return jamstate.ToWire(s)
}

func TestLoadTraceFileRoundTrip(t *testing.T) {
	sandbox, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	t.Cleanup(func() { sandbox.Cleanup() })

	pre := sampleTraceState(0)
	post := sampleTraceState(1)

	content := `{"transitions":[{"pre_state":[` + encodeKVsJSON(pre) + `],"block":{"parent_hash":"` +
		hex.EncodeToString(make([]byte, 32)) + `","slot":1,"extra":"","extrinsics":""},"post_state":[` +
		encodeKVsJSON(post) + `]}]}`

	path, err := sandbox.WriteTraceFile("trace.json", []byte(content))
	if err != nil {
		t.Fatalf("write trace file: %v", err)
	}

	transitions, err := LoadTraceFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(transitions))
	}
	if len(transitions[0].PreState) != len(pre) {
		t.Fatalf("pre_state length mismatch")
	}
}

func encodeKVsJSON(kvs []protocol.KeyValue) string {
	out := ""
	for i, kv := range kvs {
		if i > 0 {
			out += ","
		}
		out += `{"key":"` + hex.EncodeToString(kv.Key[:]) + `","value":"` + hex.EncodeToString(kv.Value) + `"}`
	}
	return out
}

func TestTraceReplayProviderSuccess(t *testing.T) {
	sess := target.New(echoSTF{}, target.Identity{AppName: "target"}, nil)
	clientConn, targetConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close() })
	go func() {
		target.Serve(targetConn, sess)
		targetConn.Close()
	}()
	client := fuzzerclient.New(clientConn, 1, nil)
	if err := client.Handshake(fuzzerclient.Identity{FuzzVersion: 1, FuzzFeatures: protocol.ImplementedFeatures}); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	pre := genesis()
	transitions := make([]Transition, 0, 3)
	ref := pre
	prevHash := protocol.HashHeader(protocol.Header{})
	for i := 1; i <= 3; i++ {
		block := protocol.Block{Header: protocol.Header{ParentHash: prevHash, Slot: protocol.TimeSlot(i)}}
		next, err := echoSTF{}.Apply(ref, protocol.StateRoot{}, block)
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		transitions = append(transitions, Transition{
			PreState:  jamstate.ToWire(ref),
			Block:     block,
			PostState: jamstate.ToWire(next),
		})
		ref = next
		prevHash = protocol.HashHeader(block.Header)
	}

	p := NewTraceReplayProvider(1, transitions, nil)
	result := p.Run(client)
	if !result.Success {
		t.Fatalf("expected success, got err=%q details=%q", result.Err, result.ErrDetails)
	}
	if result.BlocksProcessed != 3 {
		t.Fatalf("blocks_processed = %d, want 3", result.BlocksProcessed)
	}
}

func TestTraceReplayProviderEmpty(t *testing.T) {
	p := NewTraceReplayProvider(1, nil, nil)
	result := p.Run(nil)
	if !result.Success || result.BlocksProcessed != 0 {
		t.Fatalf("expected trivially successful empty replay, got %+v", result)
	}
}

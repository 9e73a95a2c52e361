package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"jamconform/merkle"
	"jamconform/protocol"
)

func TestWriteSuccessReport(t *testing.T) {
	fr := FuzzResult{Seed: 42, BlocksProcessed: 10, Success: true}
	var buf bytes.Buffer
	if err := Write(&buf, fr, 10, "tiny"); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["version"] != "1.0" {
		t.Fatalf("version = %v, want 1.0", out["version"])
	}
	results := out["results"].(map[string]any)
	if len(results["state_mismatches"].([]any)) != 0 {
		t.Fatalf("expected no mismatches in a success report")
	}
	if len(results["protocol_violations"].([]any)) != 0 {
		t.Fatalf("expected no violations in a success report")
	}
}

func TestWriteMismatchReport(t *testing.T) {
	local := merkle.New()
	local.Put(protocol.TrieKey{1}, []byte("a"))
	target := merkle.New()
	target.Put(protocol.TrieKey{1}, []byte("b"))

	fr := FuzzResult{
		Seed:            7,
		BlocksProcessed: 3,
		Mismatch: &Mismatch{
			BlockNumber:        2,
			ReportedStateRoot:  protocol.StateRoot{0xAA},
			LocalDictionary:    local,
			TargetDictionary:   target,
			TargetComputedRoot: protocol.StateRoot{0xBB},
		},
	}

	var buf bytes.Buffer
	if err := Write(&buf, fr, 5, "full"); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	results := out["results"].(map[string]any)
	mismatches := results["state_mismatches"].([]any)
	if len(mismatches) != 1 {
		t.Fatalf("expected exactly 1 mismatch, got %d", len(mismatches))
	}
	m := mismatches[0].(map[string]any)
	if m["block_number"].(float64) != 2 {
		t.Fatalf("block_number = %v, want 2", m["block_number"])
	}
	if m["reported_state_root"].(string)[:2] != "aa" {
		t.Fatalf("unexpected reported_state_root: %v", m["reported_state_root"])
	}
	localDict := m["local_dictionary"].([]any)
	if len(localDict) != 1 {
		t.Fatalf("expected 1 local dictionary entry, got %d", len(localDict))
	}
}

func TestWriteProtocolViolation(t *testing.T) {
	fr := FuzzResult{Seed: 1, BlocksProcessed: 0, Err: "InitialStateRootMismatch"}
	var buf bytes.Buffer
	if err := Write(&buf, fr, 1, "tiny"); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	results := out["results"].(map[string]any)
	violations := results["protocol_violations"].([]any)
	if len(violations) != 1 || violations[0] != "InitialStateRootMismatch" {
		t.Fatalf("unexpected violations: %v", violations)
	}
}

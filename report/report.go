// Package report builds the fuzzer's end-of-run artifacts: the in-memory
// FuzzResult produced by a session runner (spec §4.8) and the JSON report
// layout a caller writes to disk (spec §6).
package report

import (
	"encoding/hex"
	"encoding/json"
	"io"

	"jamconform/merkle"
	"jamconform/protocol"
)

// Mismatch captures everything needed to diagnose a state-root divergence
// (spec §4.8, §8 scenario 5): the offending block, the root the target
// reported, and both sides' full dictionaries.
type Mismatch struct {
	BlockNumber         int
	Block               protocol.Block
	ReportedStateRoot    protocol.StateRoot
	LocalDictionary      *merkle.Dictionary
	TargetDictionary     *merkle.Dictionary
	TargetComputedRoot   protocol.StateRoot
}

// FuzzResult is the terminal summary a provider's run(fuzzer) loop produces
// (spec §4.8). Err is one of the error-kind names of spec §7
// ("InitialStateRootMismatch", "BlockImportFailed", ...); it is empty when
// Success is true.
type FuzzResult struct {
	Seed            uint64
	BlocksProcessed int
	Mismatch        *Mismatch
	Success         bool
	Err             string
	ErrDetails      string
}

// doc mirrors the JSON report layout of spec §6 exactly; it exists only at
// the marshaling boundary so FuzzResult itself stays a plain Go value.
type doc struct {
	Version    string     `json:"version"`
	TestConfig testConfig `json:"test_config"`
	Results    results    `json:"results"`
}

type testConfig struct {
	Seed       uint64 `json:"seed"`
	Blocks     int    `json:"blocks"`
	ParamsType string `json:"params_type"`
}

type results struct {
	BlocksProcessed    int           `json:"blocks_processed"`
	StateMismatches    []mismatchDoc `json:"state_mismatches"`
	ProtocolViolations []string      `json:"protocol_violations"`
}

type mismatchDoc struct {
	BlockNumber        int        `json:"block_number"`
	ReportedStateRoot  string     `json:"reported_state_root"`
	LocalDictionary    [][2]string `json:"local_dictionary"`
	TargetDictionary   [][2]string `json:"target_dictionary"`
	TargetComputedRoot string     `json:"target_computed_root"`
}

// Write serializes fr as the §6 report JSON, indented, to w.
func Write(w io.Writer, fr FuzzResult, blocks int, paramsType string) error {
	d := doc{
		Version: "1.0",
		TestConfig: testConfig{
			Seed:       fr.Seed,
			Blocks:     blocks,
			ParamsType: paramsType,
		},
		Results: results{
			BlocksProcessed:    fr.BlocksProcessed,
			StateMismatches:    []mismatchDoc{},
			ProtocolViolations: []string{},
		},
	}
	if fr.Mismatch != nil {
		d.Results.StateMismatches = append(d.Results.StateMismatches, toMismatchDoc(*fr.Mismatch))
	} else if fr.Err != "" {
		d.Results.ProtocolViolations = append(d.Results.ProtocolViolations, fr.Err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

func toMismatchDoc(m Mismatch) mismatchDoc {
	return mismatchDoc{
		BlockNumber:        m.BlockNumber,
		ReportedStateRoot:  hex.EncodeToString(m.ReportedStateRoot[:]),
		LocalDictionary:    sortedHexPairs(m.LocalDictionary),
		TargetDictionary:   sortedHexPairs(m.TargetDictionary),
		TargetComputedRoot: hex.EncodeToString(m.TargetComputedRoot[:]),
	}
}

func sortedHexPairs(d *merkle.Dictionary) [][2]string {
	if d == nil {
		return [][2]string{}
	}
	items := d.IterSorted()
	out := make([][2]string, len(items))
	for i, kv := range items {
		out[i] = [2]string{hex.EncodeToString(kv.Key[:]), hex.EncodeToString(kv.Value)}
	}
	return out
}

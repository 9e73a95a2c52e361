package provider

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"jamconform/fuzzerclient"
	"jamconform/merkle"
	"jamconform/protocol"
	"jamconform/report"
)

// Transition is one pre-recorded (pre_state, block, post_state) step of a
// trace (spec §4.8 "Trace-replay provider").
type Transition struct {
	PreState  []protocol.KeyValue
	Block     protocol.Block
	PostState []protocol.KeyValue
}

// TraceReplayProvider replays a pre-recorded sequence of transitions,
// treating each transition's own recorded post-state root as the oracle
// instead of a live reference state machine.
type TraceReplayProvider struct {
	seed        uint64
	transitions []Transition
	log         *logrus.Entry
	shouldStop  func() bool
}

// NewTraceReplayProvider wraps an already-loaded transition sequence.
func NewTraceReplayProvider(seed uint64, transitions []Transition, log *logrus.Entry) *TraceReplayProvider {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &TraceReplayProvider{seed: seed, transitions: transitions, log: log}
}

// WithShutdownCheck installs a cooperative-shutdown predicate, polled
// between transitions (spec §5).
func (t *TraceReplayProvider) WithShutdownCheck(fn func() bool) *TraceReplayProvider {
	t.shouldStop = fn
	return t
}

// Run implements the trace-replay half of spec §4.8: behaves like the
// generator provider's loop but uses each transition's recorded root as the
// oracle rather than a live STF call.
func (t *TraceReplayProvider) Run(client *fuzzerclient.Client) report.FuzzResult {
	if len(t.transitions) == 0 {
		return report.FuzzResult{Seed: t.seed, Success: true}
	}

	first := t.transitions[0]
	localRoot, err := rootOf(first.PreState)
	if err != nil {
		return fail(t.seed, 0, "IOError", err)
	}

	genesisHeader := protocol.Header{}
	targetRoot, err := client.SetState(genesisHeader, first.PreState, nil)
	if err != nil {
		return fail(t.seed, 0, "IOError", err)
	}
	if !fuzzerclient.CompareStateRoots(targetRoot, localRoot) {
		return fail(t.seed, 0, "InitialStateRootMismatch", fmt.Errorf("local %x, target %x", localRoot, targetRoot))
	}

	processed := 0
	for i, tr := range t.transitions {
		if t.shouldStop != nil && t.shouldStop() {
			t.log.Info("trace replay stopped by cooperative shutdown check")
			break
		}

		outcome, err := client.SendBlock(tr.Block)
		if err != nil {
			return fail(t.seed, processed, "IOError", err)
		}
		if !outcome.Success {
			return report.FuzzResult{Seed: t.seed, BlocksProcessed: processed, Err: "BlockImportFailed", ErrDetails: outcome.Message}
		}

		expectedRoot, err := rootOf(tr.PostState)
		if err != nil {
			return fail(t.seed, processed, "IOError", err)
		}
		processed++

		if !fuzzerclient.CompareStateRoots(expectedRoot, outcome.Root) {
			items, gerr := client.GetState(protocol.HashHeader(tr.Block.Header))
			if gerr != nil {
				return fail(t.seed, processed, "IOError", gerr)
			}
			targetDict, derr := merkle.FromKeyValues(items)
			if derr != nil {
				return fail(t.seed, processed, "IOError", derr)
			}
			localDict, derr := merkle.FromKeyValues(tr.PostState)
			if derr != nil {
				return fail(t.seed, processed, "IOError", derr)
			}
			return report.FuzzResult{
				Seed:            t.seed,
				BlocksProcessed: processed,
				Err:             "StateRootMismatch",
				Mismatch: &report.Mismatch{
					BlockNumber:        i,
					Block:              tr.Block,
					ReportedStateRoot:  outcome.Root,
					LocalDictionary:    localDict,
					TargetDictionary:   targetDict,
					TargetComputedRoot: targetDict.Root(),
				},
			}
		}
	}

	return report.FuzzResult{Seed: t.seed, BlocksProcessed: processed, Success: true}
}

func rootOf(kvs []protocol.KeyValue) (protocol.StateRoot, error) {
	d, err := merkle.FromKeyValues(kvs)
	if err != nil {
		return protocol.StateRoot{}, err
	}
	return d.Root(), nil
}

// --- trace file format -----------------------------------------------------
//
// Trace files are JSON; a ".zst" extension selects zstd decompression
// (github.com/klauspost/compress/zstd), so large recorded trace corpora can
// be shipped compressed without the loader needing to know ahead of time.

type traceFile struct {
	Transitions []traceTransition `json:"transitions"`
}

type traceTransition struct {
	PreState  []traceKV `json:"pre_state"`
	Block     traceBlock `json:"block"`
	PostState []traceKV `json:"post_state"`
}

type traceKV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type traceBlock struct {
	ParentHash string `json:"parent_hash"`
	Slot       uint32 `json:"slot"`
	Extra      string `json:"extra"`
	Extrinsics string `json:"extrinsics"`
}

// LoadTraceFile reads a recorded transition sequence from path.
func LoadTraceFile(path string) ([]Transition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("provider: open trace file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == ".zst" {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("provider: open zstd trace stream: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	var tf traceFile
	if err := json.NewDecoder(r).Decode(&tf); err != nil {
		return nil, fmt.Errorf("provider: decode trace file: %w", err)
	}

	out := make([]Transition, len(tf.Transitions))
	for i, t := range tf.Transitions {
		pre, err := decodeKVs(t.PreState)
		if err != nil {
			return nil, fmt.Errorf("provider: transition %d pre_state: %w", i, err)
		}
		post, err := decodeKVs(t.PostState)
		if err != nil {
			return nil, fmt.Errorf("provider: transition %d post_state: %w", i, err)
		}
		block, err := decodeBlock(t.Block)
		if err != nil {
			return nil, fmt.Errorf("provider: transition %d block: %w", i, err)
		}
		out[i] = Transition{PreState: pre, Block: block, PostState: post}
	}
	return out, nil
}

func decodeKVs(kvs []traceKV) ([]protocol.KeyValue, error) {
	out := make([]protocol.KeyValue, len(kvs))
	for i, kv := range kvs {
		keyBytes, err := hex.DecodeString(kv.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d key is not valid hex", protocol.ErrInvalidFormat, i)
		}
		if len(keyBytes) != protocol.TrieKeySize {
			return nil, fmt.Errorf("%w: entry %d key has %d bytes, want %d", protocol.ErrInvalidFormat, i, len(keyBytes), protocol.TrieKeySize)
		}
		value, err := hex.DecodeString(kv.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d value is not valid hex", protocol.ErrInvalidFormat, i)
		}
		var key protocol.TrieKey
		copy(key[:], keyBytes)
		out[i] = protocol.KeyValue{Key: key, Value: value}
	}
	return out, nil
}

func decodeBlock(b traceBlock) (protocol.Block, error) {
	parentBytes, err := hex.DecodeString(b.ParentHash)
	if err != nil || len(parentBytes) != protocol.HashSize {
		return protocol.Block{}, fmt.Errorf("%w: invalid parent_hash", protocol.ErrInvalidFormat)
	}
	extra, err := hex.DecodeString(b.Extra)
	if err != nil {
		return protocol.Block{}, fmt.Errorf("%w: invalid extra", protocol.ErrInvalidFormat)
	}
	extrinsics, err := hex.DecodeString(b.Extrinsics)
	if err != nil {
		return protocol.Block{}, fmt.Errorf("%w: invalid extrinsics", protocol.ErrInvalidFormat)
	}
	var parent protocol.Hash
	copy(parent[:], parentBytes)
	return protocol.Block{
		Header:     protocol.Header{ParentHash: parent, Slot: protocol.TimeSlot(b.Slot), Extra: extra},
		Extrinsics: extrinsics,
	}, nil
}

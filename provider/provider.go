// Package provider implements the pluggable block sources of spec §4.8: a
// generator that drives its own reference state, and a trace replayer that
// reads pre-recorded transitions. Both drive a fuzzerclient.Client and
// produce a report.FuzzResult.
package provider

import (
	"fmt"
	"math/rand"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"jamconform/fuzzerclient"
	"jamconform/jamstate"
	"jamconform/merkle"
	"jamconform/params"
	"jamconform/protocol"
	"jamconform/report"
	"jamconform/target"
)

// Provider is a pluggable source of (block, expected_state_root) pairs
// (spec §2 item 8).
type Provider interface {
	Run(client *fuzzerclient.Client) report.FuzzResult
}

// GeneratorProvider owns a reference structured state and drives the
// fuzzer's deterministic PRNG to synthesize a block sequence, applying the
// same reference STF the target runs so the two can be compared block by
// block (spec §4.8 "Generator provider").
type GeneratorProvider struct {
	seed      uint64
	numBlocks int
	params    params.Params
	stf       target.STF
	ref       *jamstate.State
	log       *logrus.Entry
	shouldStop func() bool
}

// NewGeneratorProvider builds a generator seeded from genesis. stf is the
// same reference state-transition function the target is expected to run;
// this provider applies it to each block to compute the local reference root.
func NewGeneratorProvider(seed uint64, numBlocks int, p params.Params, stf target.STF, genesis *jamstate.State, log *logrus.Entry) *GeneratorProvider {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &GeneratorProvider{seed: seed, numBlocks: numBlocks, params: p, stf: stf, ref: genesis, log: log}
}

// WithShutdownCheck installs a cooperative-shutdown predicate, polled
// between blocks (spec §5 "Cancellation / timeout").
func (g *GeneratorProvider) WithShutdownCheck(fn func() bool) *GeneratorProvider {
	g.shouldStop = fn
	return g
}

func fail(seed uint64, processed int, kind string, err error) report.FuzzResult {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return report.FuzzResult{Seed: seed, BlocksProcessed: processed, Err: kind, ErrDetails: details}
}

// Run implements the numbered steps of spec §4.8.
func (g *GeneratorProvider) Run(client *fuzzerclient.Client) report.FuzzResult {
	genesisHeader := protocol.Header{Slot: 0}
	keyvals := jamstate.ToWire(g.ref)
	localRoot := jamstate.Flatten(g.ref).Root()

	targetRoot, err := client.SetState(genesisHeader, keyvals, nil)
	if err != nil {
		return fail(g.seed, 0, "IOError", err)
	}
	if !fuzzerclient.CompareStateRoots(targetRoot, localRoot) {
		return fail(g.seed, 0, "InitialStateRootMismatch", fmt.Errorf("local %x, target %x", localRoot, targetRoot))
	}

	prevHash := protocol.HashHeader(genesisHeader)
	processed := 0

	for i := 0; i < g.numBlocks; i++ {
		if g.shouldStop != nil && g.shouldStop() {
			g.log.Info("generator stopped by cooperative shutdown check")
			break
		}

		slot := protocol.TimeSlot(i + 1)
		block := buildBlock(client.Rand(), prevHash, slot)

		outcome, err := client.SendBlock(block)
		if err != nil {
			return fail(g.seed, processed, "IOError", err)
		}
		if !outcome.Success {
			g.log.WithFields(logrus.Fields{"block": i, "reason": outcome.Message}).Warn("target rejected block")
			return report.FuzzResult{Seed: g.seed, BlocksProcessed: processed, Err: "BlockImportFailed", ErrDetails: outcome.Message}
		}

		newRef, err := g.stf.Apply(g.ref, localRoot, block)
		if err != nil {
			return fail(g.seed, processed, "IOError", err)
		}
		localDict := jamstate.Flatten(newRef)
		localRoot = localDict.Root()
		processed++

		if !fuzzerclient.CompareStateRoots(localRoot, outcome.Root) {
			items, gerr := client.GetState(protocol.HashHeader(block.Header))
			if gerr != nil {
				return fail(g.seed, processed, "IOError", gerr)
			}
			targetDict, derr := merkle.FromKeyValues(items)
			if derr != nil {
				return fail(g.seed, processed, "IOError", derr)
			}
			return report.FuzzResult{
				Seed:            g.seed,
				BlocksProcessed: processed,
				Err:             "StateRootMismatch",
				Mismatch: &report.Mismatch{
					BlockNumber:        i,
					Block:              block,
					ReportedStateRoot:  outcome.Root,
					LocalDictionary:    localDict,
					TargetDictionary:   targetDict,
					TargetComputedRoot: targetDict.Root(),
				},
			}
		}

		g.ref = newRef
		prevHash = protocol.HashHeader(block.Header)
	}

	return report.FuzzResult{Seed: g.seed, BlocksProcessed: processed, Success: true}
}

// buildBlock synthesizes a deterministic candidate block. The real STF's
// extrinsics format is out of scope (spec §1); this generator only needs
// extrinsics bytes that its own reference stf.Apply can interpret
// consistently, so it stamps a pseudo-random gas amount below 1,000,000,
// encoded as a 32-byte big-endian uint256.
func buildBlock(rng *rand.Rand, parent protocol.Hash, slot protocol.TimeSlot) protocol.Block {
	gas := uint256.NewInt(rng.Uint64() % 1_000_000)
	extrinsics := gas.Bytes32()
	return protocol.Block{
		Header:     protocol.Header{ParentHash: parent, Slot: slot},
		Extrinsics: extrinsics[:],
	}
}

// Command jamconform-fuzzer is the driver side of the conformance protocol
// (spec §6 CLI surface): it dials a target's socket, drives a block
// provider against it for a fixed block budget or until a trace file is
// exhausted, and writes the resulting report as JSON.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jamconform/fuzzerclient"
	"jamconform/jamstate"
	"jamconform/params"
	"jamconform/pkg/config"
	"jamconform/protocol"
	"jamconform/provider"
	"jamconform/report"
	"jamconform/session"
	"jamconform/statekey"
)

// referenceSTF is the fuzzer's own copy of the placeholder transition
// function it expects the target to run; the real JAM STF is out of scope
// (spec §1), so both sides of this standalone binary share this stand-in.
type referenceSTF struct{}

func (referenceSTF) Apply(state *jamstate.State, _ protocol.StateRoot, _ protocol.Block) (*jamstate.State, error) {
	return state.Clone(), nil
}

func genesisState() *jamstate.State {
	s := jamstate.New()
	for id := uint8(1); id <= statekey.ComponentAccumulationHist; id++ {
		s.SetComponent(id, []byte{id})
	}
	return s
}

func main() {
	var socket string
	var seed uint64
	var blocks int
	var output string
	var verbose bool
	var paramsName string
	var tracePath string

	root := &cobra.Command{
		Use:   "jamconform-fuzzer",
		Short: "Drive a conformance-testing session against a target over a local socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, cfgErr := config.LoadFromEnv()
			if cfgErr != nil {
				return fmt.Errorf("jamconform-fuzzer: load config: %w", cfgErr)
			}
			if !cmd.Flags().Changed("socket") && appCfg.Fuzzer.Socket != "" {
				socket = appCfg.Fuzzer.Socket
			}
			if !cmd.Flags().Changed("seed") && appCfg.Fuzzer.Seed != 0 {
				seed = appCfg.Fuzzer.Seed
			}
			if !cmd.Flags().Changed("blocks") && appCfg.Fuzzer.Blocks != 0 {
				blocks = appCfg.Fuzzer.Blocks
			}
			if !cmd.Flags().Changed("output") && appCfg.Fuzzer.Output != "" {
				output = appCfg.Fuzzer.Output
			}
			if !cmd.Flags().Changed("verbose") && appCfg.Fuzzer.Verbose {
				verbose = true
			}
			if !cmd.Flags().Changed("params") && appCfg.Fuzzer.Params != "" {
				paramsName = appCfg.Fuzzer.Params
			}
			if socket == "" {
				return fmt.Errorf("jamconform-fuzzer: --socket is required (or fuzzer.socket in config)")
			}
			return run(socket, seed, blocks, output, verbose, paramsName, tracePath, appCfg.Logging.Level)
		},
	}
	root.Flags().StringVar(&socket, "socket", "", "path to the target's local endpoint socket (required, or fuzzer.socket in config)")
	root.Flags().Uint64Var(&seed, "seed", 1, "PRNG seed for the generator provider")
	root.Flags().IntVar(&blocks, "blocks", 10, "number of blocks to generate (ignored with --trace)")
	root.Flags().StringVar(&output, "output", "report.json", "path to write the JSON report")
	root.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	root.Flags().StringVar(&paramsName, "params", "tiny", "parameter profile: tiny or full")
	root.Flags().StringVar(&tracePath, "trace", "", "replay a recorded trace file instead of generating blocks")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(socket string, seed uint64, blocks int, output string, verbose bool, paramsName, tracePath, loggingLevel string) error {
	logger := logrus.New()
	switch {
	case verbose:
		logger.SetLevel(logrus.DebugLevel)
	case loggingLevel != "":
		if lvl, err := logrus.ParseLevel(loggingLevel); err == nil {
			logger.SetLevel(lvl)
		}
	}
	log := logrus.NewEntry(logger)

	p, err := params.ByName(paramsName)
	if err != nil {
		return fmt.Errorf("jamconform-fuzzer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	var shutdownRequested bool
	group.Go(func() error {
		select {
		case <-sigCh:
			log.Warn("shutdown requested, stopping after the current block")
			shutdownRequested = true
			cancel()
		case <-ctx.Done():
		}
		return nil
	})
	defer func() {
		cancel()
		signal.Stop(sigCh)
		_ = group.Wait()
	}()

	var prov provider.Provider
	if tracePath != "" {
		transitions, err := provider.LoadTraceFile(tracePath)
		if err != nil {
			return fmt.Errorf("jamconform-fuzzer: load trace: %w", err)
		}
		tp := provider.NewTraceReplayProvider(seed, transitions, log)
		tp.WithShutdownCheck(func() bool { return shutdownRequested })
		prov = tp
		blocks = len(transitions)
	} else {
		gp := provider.NewGeneratorProvider(seed, blocks, p, referenceSTF{}, genesisState(), log)
		gp.WithShutdownCheck(func() bool { return shutdownRequested })
		prov = gp
	}

	cfg := session.Config{
		Network:     "unix",
		Socket:      socket,
		DialTimeout: 10 * time.Second,
		Seed:        seed,
		Identity: fuzzerclient.Identity{
			FuzzVersion:  1,
			FuzzFeatures: protocol.ImplementedFeatures,
			JamVersion:   protocol.Version{Major: 0, Minor: 1, Patch: 0},
			AppVersion:   protocol.Version{Major: 0, Minor: 1, Patch: 0},
			AppName:      "jamconform-fuzzer",
		},
		Provider: prov,
		Log:      log,
	}

	result, err := session.Run(cfg)
	if err != nil {
		return fmt.Errorf("jamconform-fuzzer: %w", err)
	}

	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("jamconform-fuzzer: create report: %w", err)
	}
	if err := report.Write(out, result, blocks, p.Name); err != nil {
		out.Close()
		return fmt.Errorf("jamconform-fuzzer: write report: %w", err)
	}
	out.Close()

	if code := exitCodeFor(result); code != 0 {
		os.Exit(code)
	}
	return nil
}

// exitCodeFor maps a FuzzResult's outcome to the documented exit codes: 0
// on clean success, 1 on a state-root mismatch, 2 on a transport or codec
// failure, 3 on a block the target rejected.
func exitCodeFor(r report.FuzzResult) int {
	if r.Success {
		return 0
	}
	switch r.Err {
	case "StateRootMismatch", "InitialStateRootMismatch":
		return 1
	case "BlockImportFailed":
		return 3
	default:
		return 2
	}
}

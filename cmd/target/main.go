// Command jamconform-target is the server side of the conformance protocol
// (spec §6 CLI surface): it binds a local socket, serves exactly one fuzzer
// session to completion, and exits.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"jamconform/jamstate"
	"jamconform/pkg/config"
	"jamconform/protocol"
	"jamconform/target"
)

// passthroughSTF is a placeholder for the real state-transition function,
// which spec §1 treats as an external collaborator out of this core's
// scope. A conformant binary replaces it with the implementation under
// test; this one simply round-trips the state so the protocol machinery
// itself is exercisable standalone.
type passthroughSTF struct{}

func (passthroughSTF) Apply(state *jamstate.State, _ protocol.StateRoot, _ protocol.Block) (*jamstate.State, error) {
	return state.Clone(), nil
}

func main() {
	var socket string
	var verbose bool
	var traceScope string

	root := &cobra.Command{
		Use:   "jamconform-target",
		Short: "Serve one conformance-testing fuzzer session over a local socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgErr := config.LoadFromEnv()
			if cfgErr != nil {
				return fmt.Errorf("jamconform-target: load config: %w", cfgErr)
			}
			if !cmd.Flags().Changed("socket") && cfg.Target.Socket != "" {
				socket = cfg.Target.Socket
			}
			if !cmd.Flags().Changed("verbose") && cfg.Target.Verbose {
				verbose = true
			}
			if !cmd.Flags().Changed("trace-scope") && cfg.Target.TraceScope != "" {
				traceScope = cfg.Target.TraceScope
			}
			if socket == "" {
				return fmt.Errorf("jamconform-target: --socket is required (or target.socket in config)")
			}
			return run(socket, verbose, traceScope, cfg.Logging.Level)
		},
	}
	root.Flags().StringVar(&socket, "socket", "", "path to the local endpoint socket (required, or target.socket in config)")
	root.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	root.Flags().StringVar(&traceScope, "trace-scope", "", "only emit per-message log lines tagged with this scope")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// scopeFilterFormatter wraps a base formatter and silences any entry whose
// "scope" field doesn't match the configured trace scope. An entry with no
// "scope" field (session-lifecycle lines outside the per-message handlers)
// is never filtered.
type scopeFilterFormatter struct {
	base  logrus.Formatter
	scope string
}

func (f scopeFilterFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if scope, ok := entry.Data["scope"]; ok && scope != f.scope {
		return nil, nil
	}
	return f.base.Format(entry)
}

func run(socket string, verbose bool, traceScope string, loggingLevel string) error {
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

	if traceScope != "" {
		logger.SetFormatter(scopeFilterFormatter{base: logger.Formatter, scope: traceScope})
		log.WithField("trace_scope", traceScope).Debug("log lines restricted to this scope")
	}

	// The server binds a local endpoint path and removes a stale entry left
	// behind by a prior run, but only when it is actually a socket (spec §6).
	if fi, err := os.Lstat(socket); err == nil && fi.Mode()&os.ModeSocket != 0 {
		if err := os.Remove(socket); err != nil {
			return fmt.Errorf("jamconform-target: remove stale endpoint: %w", err)
		}
	}

	ln, err := net.Listen("unix", socket)
	if err != nil {
		return fmt.Errorf("jamconform-target: listen on %s: %w", socket, err)
	}
	defer ln.Close()

	log.WithField("socket", socket).Info("listening for the fuzzer")
	conn, err := ln.Accept()
	if err != nil {
		return fmt.Errorf("jamconform-target: accept: %w", err)
	}
	defer conn.Close()

	sess := target.New(passthroughSTF{}, target.Identity{
		JamVersion: protocol.Version{Major: 0, Minor: 1, Patch: 0},
		AppVersion: protocol.Version{Major: 0, Minor: 1, Patch: 0},
		AppName:    "jamconform-target",
	}, log)

	return target.Serve(conn, sess)
}

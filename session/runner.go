// Package session binds a block provider to a fuzzer client: dial, shake
// hands, hand control to the provider's run loop, and return the resulting
// FuzzResult (spec §2 item 9, §4.8).
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"jamconform/fuzzerclient"
	"jamconform/provider"
	"jamconform/report"
)

// Config describes one fuzzing session end to end.
type Config struct {
	Network     string // "unix" for the local IPC transport of spec §6
	Socket      string
	DialTimeout time.Duration
	Seed        uint64
	Identity    fuzzerclient.Identity
	Provider    provider.Provider
	Log         *logrus.Entry
}

// Run dials the target, performs the handshake, runs the provider to
// completion, and sends Kill before returning. The returned error is only
// set for connection-level failures that happen before a provider ever gets
// to run; provider-level outcomes (mismatches, import failures) are carried
// in the returned FuzzResult instead.
func Run(cfg Config) (report.FuzzResult, error) {
	runID := uuid.New()
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("session_id", runID.String())

	client, err := fuzzerclient.Dial(cfg.Network, cfg.Socket, cfg.DialTimeout, cfg.Seed, log)
	if err != nil {
		return report.FuzzResult{}, err
	}
	defer client.Close()

	if err := client.Handshake(cfg.Identity); err != nil {
		return report.FuzzResult{}, err
	}

	log.WithFields(logrus.Fields{
		"negotiated_features": client.NegotiatedFeatures(),
		"seed":                cfg.Seed,
	}).Info("session ready, handing off to provider")

	result := cfg.Provider.Run(client)
	result.Seed = cfg.Seed

	if result.Success {
		log.WithField("blocks_processed", result.BlocksProcessed).Info("session completed with no divergence")
	} else {
		log.WithFields(logrus.Fields{
			"blocks_processed": result.BlocksProcessed,
			"err":              result.Err,
		}).Warn("session ended with a divergence or failure")
	}

	_ = client.Kill()
	return result, nil
}

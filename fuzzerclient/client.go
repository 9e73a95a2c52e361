// Package fuzzerclient implements the driver side of the conformance
// protocol (spec §4.7): handshake, set_state, per-block send_block, and
// post-mismatch get_state, each transitioning the client's phase on the
// expected response or failing on an unexpected variant.
package fuzzerclient

import (
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"jamconform/protocol"
)

// Phase is the fuzzer client's lifecycle stage (spec §3).
type Phase int

const (
	PhaseInitial Phase = iota
	PhaseConnected
	PhaseHandshakeComplete
	PhaseStateInitialized
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "Initial"
	case PhaseConnected:
		return "Connected"
	case PhaseHandshakeComplete:
		return "HandshakeComplete"
	case PhaseStateInitialized:
		return "StateInitialized"
	default:
		return "Unknown"
	}
}

// Identity is the fuzzer's own protocol/app identity, sent in the PeerInfo
// handshake request.
type Identity struct {
	FuzzVersion  uint8
	FuzzFeatures protocol.Features
	JamVersion   protocol.Version
	AppVersion   protocol.Version
	AppName      string
}

// ImportOutcome is the result of send_block: either a new state root or a
// target-reported import error (spec §4.7 "{ Success(root) | ImportError(msg) }").
type ImportOutcome struct {
	Success bool
	Root    protocol.StateRoot
	Message string
}

// Client drives one target session over a byte stream. It is not safe for
// concurrent use: the protocol is strictly request/response, one exchange in
// flight at a time (spec §5).
type Client struct {
	conn  io.ReadWriteCloser
	log   *logrus.Entry
	phase Phase

	remote Identity
	rng    *rand.Rand
}

// Dial opens a connection to a local socket endpoint and wraps it as a
// Client, grounded on the connection_pool.go dial-with-timeout pattern. The
// transport is a local IPC stream (spec §6); network is typically "unix".
func Dial(network, address string, timeout time.Duration, seed uint64, log *logrus.Entry) (*Client, error) {
	conn, err := net.DialTimeout(network, address, timeout)
	if err != nil {
		return nil, fmt.Errorf("fuzzerclient: dial %s %s: %w", network, address, err)
	}
	return New(conn, seed, log), nil
}

// New wraps an already-open stream (any io.ReadWriteCloser, including
// net.Conn or an in-process pipe for tests) as a Client in PhaseConnected.
func New(conn io.ReadWriteCloser, seed uint64, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{conn: conn, log: log, phase: PhaseConnected, rng: rand.New(rand.NewSource(int64(seed)))}
}

// Rand returns the client's deterministic PRNG, seeded at construction, for
// use by block providers that need reproducible randomness (spec §3).
func (c *Client) Rand() *rand.Rand { return c.rng }

// Phase reports the client's current lifecycle stage.
func (c *Client) Phase() Phase { return c.phase }

// Close closes the underlying stream.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) roundTrip(req protocol.Message) (protocol.Message, error) {
	if err := protocol.WriteFrame(c.conn, protocol.EncodeMessage(req)); err != nil {
		return nil, err
	}
	payload, err := protocol.ReadFrame(c.conn)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeMessage(payload)
}

// Handshake sends PeerInfo and expects PeerInfo back (spec §4.7 handshake()).
func (c *Client) Handshake(self Identity) error {
	resp, err := c.roundTrip(protocol.PeerInfoMsg{
		FuzzVersion:  self.FuzzVersion,
		FuzzFeatures: self.FuzzFeatures,
		JamVersion:   self.JamVersion,
		AppVersion:   self.AppVersion,
		AppName:      self.AppName,
	})
	if err != nil {
		return err
	}
	reply, ok := resp.(protocol.PeerInfoMsg)
	if !ok {
		return protocol.ErrUnexpectedHandshakeResponse
	}
	c.remote = Identity{
		FuzzVersion:  reply.FuzzVersion,
		FuzzFeatures: reply.FuzzFeatures,
		JamVersion:   reply.JamVersion,
		AppVersion:   reply.AppVersion,
		AppName:      reply.AppName,
	}
	c.phase = PhaseHandshakeComplete
	c.log.WithFields(logrus.Fields{
		"remote_app":     reply.AppName,
		"remote_version": reply.AppVersion.String(),
		"features":       reply.FuzzFeatures,
	}).Info("handshake complete")
	return nil
}

// NegotiatedFeatures returns the target's reported feature bits from the
// handshake reply.
func (c *Client) NegotiatedFeatures() protocol.Features { return c.remote.FuzzFeatures }

// SetState sends Initialize and expects StateRoot back (spec §4.7
// set_state(header, keyvals)).
func (c *Client) SetState(header protocol.Header, keyvals []protocol.KeyValue, ancestry []protocol.AncestryItem) (protocol.StateRoot, error) {
	if c.phase != PhaseHandshakeComplete && c.phase != PhaseStateInitialized {
		return protocol.StateRoot{}, protocol.ErrHandshakeNotComplete
	}
	resp, err := c.roundTrip(protocol.InitializeMsg{Header: header, KeyVals: keyvals, Ancestry: ancestry})
	if err != nil {
		return protocol.StateRoot{}, err
	}
	root, ok := resp.(protocol.StateRootMsg)
	if !ok {
		return protocol.StateRoot{}, protocol.ErrUnexpectedMessage
	}
	c.phase = PhaseStateInitialized
	return root.Root, nil
}

// SendBlock submits a block for import (spec §4.7 send_block(block)).
func (c *Client) SendBlock(block protocol.Block) (ImportOutcome, error) {
	if c.phase != PhaseStateInitialized {
		return ImportOutcome{}, protocol.ErrStateNotReady
	}
	resp, err := c.roundTrip(protocol.ImportBlockMsg{Block: block})
	if err != nil {
		return ImportOutcome{}, err
	}
	switch m := resp.(type) {
	case protocol.StateRootMsg:
		return ImportOutcome{Success: true, Root: m.Root}, nil
	case protocol.ErrorMsg:
		return ImportOutcome{Success: false, Message: m.Message}, nil
	default:
		return ImportOutcome{}, protocol.ErrUnexpectedMessage
	}
}

// GetState requests the target's full state (spec §4.7
// get_state(header_hash)).
func (c *Client) GetState(headerHash protocol.HeaderHash) ([]protocol.KeyValue, error) {
	if c.phase != PhaseStateInitialized {
		return nil, protocol.ErrStateNotReady
	}
	resp, err := c.roundTrip(protocol.GetStateMsg{HeaderHash: headerHash})
	if err != nil {
		return nil, err
	}
	state, ok := resp.(protocol.StateMsg)
	if !ok {
		return nil, protocol.ErrUnexpectedMessage
	}
	return state.Items, nil
}

// Kill sends a Kill message and expects no response (spec §4.6 on(Kill)).
func (c *Client) Kill() error {
	return protocol.WriteFrame(c.conn, protocol.EncodeMessage(protocol.KillMsg{}))
}

// CompareStateRoots is a byte-wise comparison (spec §4.7
// compare_state_roots(a,b) = (a == b)).
func CompareStateRoots(a, b protocol.StateRoot) bool { return a == b }

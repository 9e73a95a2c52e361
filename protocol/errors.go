package protocol

import "errors"

// Transport and codec errors (spec §7). These terminate the connection; none
// of them are retried.
var (
	ErrUnexpectedEndOfStream = errors.New("protocol: unexpected end of stream")
	ErrMessageTooLarge       = errors.New("protocol: message exceeds MaxMessageSize")
	ErrInvalidFormat         = errors.New("protocol: invalid message format")
	ErrUnknownMessage        = errors.New("protocol: unknown message tag")
	ErrDuplicateKey          = errors.New("protocol: duplicate key in State message")
	ErrIncompleteState       = errors.New("protocol: missing required state component")
)

// Protocol-phase errors (spec §7). The target surfaces these as a dropped
// connection; the fuzzer client surfaces them as a returned error.
var (
	ErrHandshakeNotComplete         = errors.New("protocol: handshake not complete")
	ErrStateNotReady                = errors.New("protocol: state not initialized")
	ErrUnexpectedMessage            = errors.New("protocol: unexpected message for current phase")
	ErrUnexpectedHandshakeResponse  = errors.New("protocol: unexpected handshake response")
)

// ErrBlockImportFailed is delivered as a wire Error message rather than
// terminating the connection: the session stays alive so a later (possibly
// sibling) block can still be imported (spec §4.6, §7).
var ErrBlockImportFailed = errors.New("protocol: block import failed")

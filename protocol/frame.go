package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WriteFrame emits one length-prefixed record: a 4-byte little-endian
// unsigned length followed by exactly len(payload) bytes (spec §4.1).
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(payload))
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return wrapShort(err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return wrapShort(err)
	}
	return nil
}

// ReadFrame reads exactly one length-prefixed record. A short read at any
// point is reported as ErrUnexpectedEndOfStream; an oversize length prefix is
// reported as ErrMessageTooLarge without attempting to read the payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, wrapShort(err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxMessageSize {
		return nil, fmt.Errorf("%w: declared %d bytes", ErrMessageTooLarge, n)
	}
	if n == 0 {
		return []byte{}, nil
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, wrapShort(err)
	}
	return payload, nil
}

// wrapShort normalizes the various ways a short read/write can present
// itself (io.EOF, io.ErrUnexpectedEOF, or a wrapped net error) into the
// single ErrUnexpectedEndOfStream sentinel.
func wrapShort(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrUnexpectedEndOfStream
	}
	return err
}

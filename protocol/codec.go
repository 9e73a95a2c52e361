package protocol

import (
	"encoding/binary"
	"fmt"
)

// codecWriter accumulates the canonical byte encoding of a Message payload:
// fixed-width little-endian integers and length-prefixed UTF-8 strings /
// blobs, field by field.
type codecWriter struct {
	buf []byte
}

func (w *codecWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *codecWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *codecWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *codecWriter) raw(b []byte)   { w.buf = append(w.buf, b...) }
func (w *codecWriter) blob(b []byte)  { w.u32(uint32(len(b))); w.raw(b) }
func (w *codecWriter) str(s string)   { w.blob([]byte(s)) }
func (w *codecWriter) hash(h Hash)    { w.raw(h[:]) }
func (w *codecWriter) key(k TrieKey)  { w.raw(k[:]) }
func (w *codecWriter) version(v Version) {
	w.u8(v.Major)
	w.u8(v.Minor)
	w.u8(v.Patch)
}
func (w *codecWriter) header(h Header) {
	w.hash(h.ParentHash)
	w.u32(uint32(h.Slot))
	w.blob(h.Extra)
}
func (w *codecWriter) block(b Block) {
	w.header(b.Header)
	w.blob(b.Extrinsics)
}
func (w *codecWriter) keyValues(items []KeyValue) {
	w.u32(uint32(len(items)))
	for _, kv := range items {
		w.key(kv.Key)
		w.blob(kv.Value)
	}
}
func (w *codecWriter) ancestry(items []AncestryItem) {
	w.u32(uint32(len(items)))
	for _, a := range items {
		w.hash(a.HeaderHash)
		w.u32(uint32(a.Slot))
	}
}

// codecReader is the dual of codecWriter: it consumes bytes and fails with
// ErrInvalidFormat on any underrun, matching §4.2's "every payload element
// decodes completely" requirement.
type codecReader struct {
	buf []byte
	pos int
}

func (r *codecReader) remaining() int { return len(r.buf) - r.pos }

func (r *codecReader) need(n int) error {
	if r.remaining() < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrInvalidFormat, n, r.remaining())
	}
	return nil
}

func (r *codecReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *codecReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *codecReader) raw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+n])
	r.pos += n
	return b, nil
}

func (r *codecReader) blob() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	return r.raw(int(n))
}

func (r *codecReader) str() (string, error) {
	b, err := r.blob()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *codecReader) hash() (Hash, error) {
	b, err := r.raw(HashSize)
	if err != nil {
		return Hash{}, err
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

func (r *codecReader) key() (TrieKey, error) {
	b, err := r.raw(TrieKeySize)
	if err != nil {
		return TrieKey{}, err
	}
	var k TrieKey
	copy(k[:], b)
	return k, nil
}

func (r *codecReader) version() (Version, error) {
	major, err := r.u8()
	if err != nil {
		return Version{}, err
	}
	minor, err := r.u8()
	if err != nil {
		return Version{}, err
	}
	patch, err := r.u8()
	if err != nil {
		return Version{}, err
	}
	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

func (r *codecReader) header() (Header, error) {
	parent, err := r.hash()
	if err != nil {
		return Header{}, err
	}
	slot, err := r.u32()
	if err != nil {
		return Header{}, err
	}
	extra, err := r.blob()
	if err != nil {
		return Header{}, err
	}
	return Header{ParentHash: parent, Slot: TimeSlot(slot), Extra: extra}, nil
}

func (r *codecReader) block() (Block, error) {
	h, err := r.header()
	if err != nil {
		return Block{}, err
	}
	ext, err := r.blob()
	if err != nil {
		return Block{}, err
	}
	return Block{Header: h, Extrinsics: ext}, nil
}

func (r *codecReader) keyValues() ([]KeyValue, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	items := make([]KeyValue, 0, n)
	for i := uint32(0); i < n; i++ {
		k, err := r.key()
		if err != nil {
			return nil, err
		}
		v, err := r.blob()
		if err != nil {
			return nil, err
		}
		items = append(items, KeyValue{Key: k, Value: v})
	}
	return items, nil
}

func (r *codecReader) ancestry() ([]AncestryItem, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	items := make([]AncestryItem, 0, n)
	for i := uint32(0); i < n; i++ {
		h, err := r.hash()
		if err != nil {
			return nil, err
		}
		slot, err := r.u32()
		if err != nil {
			return nil, err
		}
		items = append(items, AncestryItem{HeaderHash: h, Slot: TimeSlot(slot)})
	}
	return items, nil
}

// EncodeMessage renders m as a tag byte followed by its payload in the
// protocol's canonical byte order (spec §4.2).
func EncodeMessage(m Message) []byte {
	w := &codecWriter{buf: []byte{byte(m.Tag())}}
	switch msg := m.(type) {
	case PeerInfoMsg:
		w.u8(msg.FuzzVersion)
		w.u32(uint32(msg.FuzzFeatures))
		w.version(msg.JamVersion)
		w.version(msg.AppVersion)
		w.str(msg.AppName)
	case InitializeMsg:
		w.header(msg.Header)
		w.keyValues(msg.KeyVals)
		w.ancestry(msg.Ancestry)
	case StateRootMsg:
		w.hash(msg.Root)
	case ImportBlockMsg:
		w.block(msg.Block)
	case GetStateMsg:
		w.hash(msg.HeaderHash)
	case StateMsg:
		w.keyValues(msg.Items)
	case ErrorMsg:
		w.str(msg.Message)
	case KillMsg:
		// empty payload
	default:
		panic(fmt.Sprintf("protocol: EncodeMessage: unhandled variant %T", m))
	}
	return w.buf
}

// DecodeMessage is the inverse of EncodeMessage: it verifies the tag is
// known, decodes every payload element, and fails with ErrInvalidFormat if
// any bytes remain afterward (spec §4.2).
func DecodeMessage(b []byte) (Message, error) {
	if len(b) < 1 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidFormat)
	}
	tag := MessageTag(b[0])
	r := &codecReader{buf: b, pos: 1}

	var msg Message
	var err error
	switch tag {
	case TagPeerInfo:
		var m PeerInfoMsg
		var fv uint8
		var ff uint32
		if fv, err = r.u8(); err != nil {
			return nil, err
		}
		if ff, err = r.u32(); err != nil {
			return nil, err
		}
		m.FuzzVersion = fv
		m.FuzzFeatures = Features(ff)
		if m.JamVersion, err = r.version(); err != nil {
			return nil, err
		}
		if m.AppVersion, err = r.version(); err != nil {
			return nil, err
		}
		if m.AppName, err = r.str(); err != nil {
			return nil, err
		}
		msg = m
	case TagInitialize:
		var m InitializeMsg
		if m.Header, err = r.header(); err != nil {
			return nil, err
		}
		if m.KeyVals, err = r.keyValues(); err != nil {
			return nil, err
		}
		if m.Ancestry, err = r.ancestry(); err != nil {
			return nil, err
		}
		msg = m
	case TagStateRoot:
		var m StateRootMsg
		if m.Root, err = r.hash(); err != nil {
			return nil, err
		}
		msg = m
	case TagImportBlock:
		var m ImportBlockMsg
		if m.Block, err = r.block(); err != nil {
			return nil, err
		}
		msg = m
	case TagGetState:
		var m GetStateMsg
		if m.HeaderHash, err = r.hash(); err != nil {
			return nil, err
		}
		msg = m
	case TagState:
		var m StateMsg
		if m.Items, err = r.keyValues(); err != nil {
			return nil, err
		}
		msg = m
	case TagError:
		var m ErrorMsg
		if m.Message, err = r.str(); err != nil {
			return nil, err
		}
		msg = m
	case TagKill:
		msg = KillMsg{}
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownMessage, tag)
	}

	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidFormat, r.remaining())
	}
	return msg, nil
}

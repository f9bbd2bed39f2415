// Package codec provides lossless compression and decompression of canonical
// context payloads. It is a pure transformation: all I/O belongs to callers.
package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ulikunitz/xz/lzma"

	"github.com/ctxkeep/ctxkeep/internal/payload"
)

// Encoding is the one-byte header that tells Decompress how the blob was
// produced. It is stored as the first byte of every blob so dispatch never
// depends on out-of-band state.
type Encoding byte

const (
	// EncodingRaw stores the canonical bytes as-is (small payloads).
	EncodingRaw Encoding = 0x00

	// EncodingLZMA stores an LZMA stream of the canonical bytes.
	EncodingLZMA Encoding = 0x01
)

// DefaultThresholdBytes is the raw size below which compression is skipped.
// Tiny conversations compress poorly and the raw passthrough keeps them
// byte-inspectable.
const DefaultThresholdBytes = 512

// ErrCorrupt is wrapped by every decompression failure. Callers match it with
// errors.Is and must treat the record as a data-integrity incident.
var ErrCorrupt = errors.New("corrupt or truncated payload blob")

// Codec compresses and decompresses canonical context payloads.
type Codec struct {
	threshold int
}

// New creates a Codec. thresholdBytes <= 0 selects DefaultThresholdBytes.
func New(thresholdBytes int) *Codec {
	if thresholdBytes <= 0 {
		thresholdBytes = DefaultThresholdBytes
	}
	return &Codec{threshold: thresholdBytes}
}

// Compress encodes the payload into a self-describing blob and reports the
// raw (canonical, uncompressed) size in bytes.
func (c *Codec) Compress(p *payload.ContextPayload) (blob []byte, rawSize int, err error) {
	raw, err := p.Canonical()
	if err != nil {
		return nil, 0, fmt.Errorf("encode payload: %w", err)
	}

	if len(raw) < c.threshold {
		out := make([]byte, 1+len(raw))
		out[0] = byte(EncodingRaw)
		copy(out[1:], raw)
		return out, len(raw), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(EncodingLZMA))
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, 0, fmt.Errorf("lzma writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, 0, fmt.Errorf("lzma write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, 0, fmt.Errorf("lzma close: %w", err)
	}

	return buf.Bytes(), len(raw), nil
}

// Decompress decodes a blob produced by Compress. A truncated or mangled blob
// fails with an error wrapping ErrCorrupt; it never returns a partial payload.
func (c *Codec) Decompress(blob []byte) (*payload.ContextPayload, error) {
	if len(blob) < 1 {
		return nil, fmt.Errorf("%w: empty blob", ErrCorrupt)
	}

	var raw []byte
	switch Encoding(blob[0]) {
	case EncodingRaw:
		raw = blob[1:]
	case EncodingLZMA:
		r, err := lzma.NewReader(bytes.NewReader(blob[1:]))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		raw = buf.Bytes()
	default:
		return nil, fmt.Errorf("%w: unknown encoding 0x%02x", ErrCorrupt, blob[0])
	}

	p, err := payload.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return p, nil
}

// AlgorithmName reports the human-readable algorithm recorded in snapshot
// compression metadata.
func AlgorithmName(blob []byte) string {
	if len(blob) > 0 && Encoding(blob[0]) == EncodingLZMA {
		return "lzma"
	}
	return "none"
}

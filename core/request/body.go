package request

import (
	"io"
	"strings"

	"github.com/pkg/errors"
)

// PartDecoder consumes raw multipart body bytes and yields named field values
// and file parts. It is a collaborator: constructed outside this module and
// only fed here. Close signals end of body.
type PartDecoder interface {
	io.WriteCloser
}

// DecoderFactory builds a PartDecoder for a multipart Content-Type value.
type DecoderFactory func(contentType string) (PartDecoder, error)

// Body is the request body sink. It runs in one of two mutually exclusive
// modes, chosen when the first body byte arrives: a raw byte buffer, or a live
// multipart decoder when CONTENT_TYPE declares multipart and a factory is
// configured.
type Body struct {
	raw     []byte
	decoder PartDecoder
	factory DecoderFactory
	params  Params
	started bool
}

// NewBody creates a body sink bound to the connection's parameter map. The
// factory may be nil, in which case multipart bodies are buffered raw like any
// other body.
func NewBody(params Params, factory DecoderFactory) *Body {
	return &Body{params: params, factory: factory}
}

// Write appends body bytes, selecting the sink mode on the first call.
func (b *Body) Write(p []byte) (int, error) {
	if !b.started {
		b.started = true
		ct := b.params.Get(ParamContentType)
		if b.factory != nil && strings.HasPrefix(ct, "multipart/") {
			dec, err := b.factory(ct)
			if err != nil {
				return 0, errors.Wrap(err, "multipart decoder")
			}
			b.decoder = dec
		}
	}
	if b.decoder != nil {
		return b.decoder.Write(p)
	}
	b.raw = append(b.raw, p...)
	return len(p), nil
}

// Close finalizes a multipart decoder. Raw-mode bodies need no finalization.
func (b *Body) Close() error {
	if b.decoder != nil {
		return b.decoder.Close()
	}
	return nil
}

// Bytes returns the accumulated raw body. Nil in multipart mode.
func (b *Body) Bytes() []byte {
	return b.raw
}

// Multipart reports whether the body was routed to a part decoder.
func (b *Body) Multipart() bool {
	return b.decoder != nil
}

// Decoder returns the live part decoder, or nil in raw mode.
func (b *Body) Decoder() PartDecoder {
	return b.decoder
}

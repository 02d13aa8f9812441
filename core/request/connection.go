package request

import (
	"io"
	"strconv"
)

// Connection is the capability interface every protocol backend implements.
// Code above this layer (rendering, routing, sessions) programs only against
// Connection and never learns which wire protocol delivered the request.
type Connection interface {
	// Params returns the mutable meta-variable map for the active request.
	Params() Params

	// Body returns the request body sink.
	Body() *Body

	// SetStatus records the response status line. Calls after the header
	// block has been flushed have no effect.
	SetStatus(code int, message string)

	// WriteHeaderLine appends one header line to the response header
	// accumulator. Nothing is sent until the block is flushed.
	WriteHeaderLine(line string)

	// PushHeaderBytes flushes the status line, accumulated headers and the
	// blank terminator, exactly once per request. Repeated calls are no-ops.
	PushHeaderBytes() error

	// WriteBodyBytes writes raw body bytes, flushing the header block first
	// if that has not happened yet. Headers always precede body.
	WriteBodyBytes(b []byte) (int, error)
}

// Renderer is the response-generation collaborator. It consumes the
// Connection capability and produces status, headers and body for one request.
type Renderer interface {
	Render(c Connection) error
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(c Connection) error

// Render implements Renderer.
func (f RendererFunc) Render(c Connection) error { return f(c) }

// StatusStyle selects how the status line is rendered when the header block
// is flushed.
type StatusStyle int

const (
	// StyleHTTP renders "HTTP/1.1 <code> <message>" for the standalone
	// HTTP backend.
	StyleHTTP StatusStyle = iota
	// StyleCGI renders "Status: <code> <message>" for FastCGI responders,
	// whose front-end web server builds the real status line.
	StyleCGI
)

// Reply assembles the status line and header block for one response and
// guarantees the block is written to the sink exactly once, before any body
// bytes. Both backends embed a Reply; only the sink and style differ.
type Reply struct {
	sink       io.Writer
	style      StatusStyle
	statusCode int
	statusText string
	headers    []byte
	flushed    bool
}

// NewReply creates a reply writing to sink, with a 200 OK default status.
func NewReply(sink io.Writer, style StatusStyle) Reply {
	return Reply{sink: sink, style: style, statusCode: 200, statusText: "OK"}
}

// Reset rearms the reply for the next request on the same connection.
func (r *Reply) Reset() {
	r.statusCode = 200
	r.statusText = "OK"
	r.headers = r.headers[:0]
	r.flushed = false
}

// SetStatus records the response status. No effect once flushed.
func (r *Reply) SetStatus(code int, message string) {
	if r.flushed {
		return
	}
	r.statusCode = code
	r.statusText = message
}

// WriteHeaderLine accumulates one header line.
func (r *Reply) WriteHeaderLine(line string) {
	if r.flushed {
		return
	}
	r.headers = append(r.headers, line...)
	r.headers = append(r.headers, '\r', '\n')
}

// PushHeaderBytes writes the status line, headers and blank terminator as one
// block. The block is assembled in a single buffer so it reaches the sink in
// one write. Only the first call does anything.
func (r *Reply) PushHeaderBytes() error {
	if r.flushed {
		return nil
	}
	r.flushed = true

	block := make([]byte, 0, len(r.headers)+48)
	if r.style == StyleCGI {
		block = append(block, "Status: "...)
	} else {
		block = append(block, "HTTP/1.1 "...)
	}
	block = strconv.AppendInt(block, int64(r.statusCode), 10)
	block = append(block, ' ')
	block = append(block, r.statusText...)
	block = append(block, '\r', '\n')
	block = append(block, r.headers...)
	block = append(block, '\r', '\n')

	_, err := r.sink.Write(block)
	return err
}

// WriteBodyBytes writes body bytes, flushing the header block first.
func (r *Reply) WriteBodyBytes(b []byte) (int, error) {
	if err := r.PushHeaderBytes(); err != nil {
		return 0, err
	}
	return r.sink.Write(b)
}

// Status returns the recorded status code and message.
func (r *Reply) Status() (int, string) {
	return r.statusCode, r.statusText
}

// Flushed reports whether the header block has been sent.
func (r *Reply) Flushed() bool {
	return r.flushed
}

package httpd

import (
	"io"
	"net"
	"strings"
	"time"

	"github.com/fastgate/fastgate/core"
	"github.com/fastgate/fastgate/core/pools"
	"github.com/fastgate/fastgate/core/request"
)

// Parser states
const (
	stateRequestLine = iota
	stateHeaders
	stateBody
	stateComplete
	stateFailed
)

// zeroReadLimit caps consecutive (0, nil) reads within one fill.
const zeroReadLimit = 100

// parser is the incremental HTTP/1.x scanner for one connection. Bytes are
// read in chunks and appended to the working buffer; offset marks the portion
// already classified into meta-variables or body. Bytes before offset are
// final, bytes at or after it are rescanned as more data arrives. No byte is
// ever lost or double-counted across read boundaries, including a CR/LF pair
// split across two reads.
type parser struct {
	conn    net.Conn
	timeout time.Duration
	pool    *pools.BytePool

	buf    []byte
	offset int
	state  int

	params  request.Params
	body    *request.Body
	lastKey string // last header meta-key written, for continuation lines
}

func newParser(conn net.Conn, timeout time.Duration, pool *pools.BytePool) *parser {
	if timeout <= 0 {
		timeout = core.DefaultReadTimeout
	}
	return &parser{
		conn:    conn,
		timeout: timeout,
		pool:    pool,
		state:   stateRequestLine,
	}
}

// reset rearms the parser for the next request on a kept-alive connection.
// Unclassified bytes already in the working buffer are retained.
func (p *parser) reset(params request.Params, body *request.Body) {
	p.buf = append(p.buf[:0], p.buf[p.offset:]...)
	p.offset = 0
	p.state = stateRequestLine
	p.params = params
	p.body = body
	p.lastKey = ""
}

// parse runs the state machine until one complete request has been classified
// into the parameter map and body sink. It returns io.EOF when the peer
// closed the connection before sending the first byte of a request, which is
// the normal end of a keep-alive session, and a hard error for anything
// malformed, truncated or timed out.
func (p *parser) parse(params request.Params, body *request.Body) error {
	p.reset(params, body)

	for p.state == stateRequestLine || p.state == stateHeaders {
		seg, ok, err := p.nextSegment()
		if err != nil {
			p.state = stateFailed
			return err
		}
		if !ok {
			if err := p.fill(); err != nil {
				if err == core.ErrShortRead && p.state == stateRequestLine && len(p.buf) == 0 {
					// Peer closed between requests: normal end of
					// a keep-alive session, nothing to fail.
					return io.EOF
				}
				p.state = stateFailed
				return err
			}
			continue
		}
		if err := p.classify(seg); err != nil {
			p.state = stateFailed
			return err
		}
	}

	if err := p.readBody(); err != nil {
		p.state = stateFailed
		return err
	}
	p.state = stateComplete
	return nil
}

// nextSegment scans forward from offset for the next CR LF boundary. It
// returns the segment between the previous boundary and this one, or ok=false
// when the buffer is exhausted before a boundary is found. An LF not preceded
// by a CR fails the scan.
func (p *parser) nextSegment() ([]byte, bool, error) {
	for i := p.offset; i < len(p.buf); i++ {
		if p.buf[i] != '\n' {
			continue
		}
		if i == p.offset || p.buf[i-1] != '\r' {
			return nil, false, core.ErrMalformedRequest
		}
		seg := p.buf[p.offset : i-1]
		p.offset = i + 1
		return seg, true, nil
	}
	return nil, false, nil
}

// fill performs one bounded read and appends whatever arrived to the working
// buffer. A deadline expiry or EOF is a hard failure for this connection.
func (p *parser) fill() error {
	chunk := p.pool.Get(core.ReadChunkSize)
	defer p.pool.Put(chunk)

	if err := p.conn.SetReadDeadline(time.Now().Add(p.timeout)); err != nil {
		return core.ErrShortRead
	}
	// A Conn may legally return (0, nil), but only a bounded number of
	// times per fill: the deadline is re-armed each call, so an unbounded
	// retry here would never hit it.
	for i := 0; i < zeroReadLimit; i++ {
		n, err := p.conn.Read(chunk)
		if n > 0 {
			p.buf = append(p.buf, chunk[:n]...)
			return nil
		}
		if err == nil {
			continue
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return core.ErrReadTimeout
		}
		return core.ErrShortRead
	}
	return core.ErrShortRead
}

// classify routes one header-phase segment: request line, blank terminator,
// continuation line, or header line.
func (p *parser) classify(seg []byte) error {
	if p.state == stateRequestLine {
		if err := p.parseRequestLine(seg); err != nil {
			return err
		}
		p.state = stateHeaders
		return nil
	}

	if len(seg) == 0 {
		p.state = stateBody
		return nil
	}

	if seg[0] == ' ' || seg[0] == '\t' {
		// Continuation of the previous header value.
		if p.lastKey == "" || !p.params.Append(p.lastKey, strings.TrimSpace(string(seg))) {
			return core.ErrMalformedRequest
		}
		return nil
	}

	colon := -1
	for i, c := range seg {
		if c == ':' {
			colon = i
			break
		}
	}
	if colon <= 0 {
		return core.ErrMalformedRequest
	}
	key := request.MetaKey(string(seg[:colon]))
	value := strings.TrimLeft(string(seg[colon+1:]), " \t")
	p.params.Set(key, value)
	p.lastKey = key
	return nil
}

// parseRequestLine tokenizes "METHOD target PROTOCOL" scalar by scalar so any
// run of whitespace separates the fields, and splits the target into path and
// query at the first '?'.
func (p *parser) parseRequestLine(seg []byte) error {
	var tokens []string
	i := 0
	for i < len(seg) {
		for i < len(seg) && (seg[i] == ' ' || seg[i] == '\t') {
			i++
		}
		start := i
		for i < len(seg) && seg[i] != ' ' && seg[i] != '\t' {
			i++
		}
		if i > start {
			tokens = append(tokens, string(seg[start:i]))
		}
	}
	if len(tokens) != 3 {
		return core.ErrMalformedRequest
	}

	target := tokens[1]
	query := ""
	if q := strings.IndexByte(target, '?'); q != -1 {
		query = target[q+1:]
		target = target[:q]
	}

	p.params.Set(request.ParamRequestMethod, tokens[0])
	p.params.Set(request.ParamPathInfo, target)
	p.params.Set(request.ParamQueryString, query)
	p.params.Set(request.ParamServerProtocol, tokens[2])
	return nil
}

// readBody credits bytes already in the working buffer toward the declared
// content length, then reads exactly the remainder into the body sink.
func (p *parser) readBody() error {
	want := p.params.ContentLength()
	if want <= 0 {
		return nil
	}

	if avail := len(p.buf) - p.offset; avail > 0 {
		n := avail
		if n > want {
			n = want
		}
		if _, err := p.body.Write(p.buf[p.offset : p.offset+n]); err != nil {
			return err
		}
		p.offset += n
		want -= n
	}

	for want > 0 {
		size := core.ReadChunkSize
		if size > want {
			size = want
		}
		chunk := p.pool.Get(size)
		if err := p.conn.SetReadDeadline(time.Now().Add(p.timeout)); err != nil {
			p.pool.Put(chunk)
			return core.ErrShortRead
		}
		n, err := p.conn.Read(chunk)
		if n > 0 {
			if _, werr := p.body.Write(chunk[:n]); werr != nil {
				p.pool.Put(chunk)
				return werr
			}
			want -= n
		}
		p.pool.Put(chunk)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return core.ErrReadTimeout
			}
			if want > 0 {
				return core.ErrShortRead
			}
		}
	}
	return p.body.Close()
}

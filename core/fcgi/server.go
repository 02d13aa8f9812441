package fcgi

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fastgate/fastgate/core"
	"github.com/fastgate/fastgate/core/listen"
	"github.com/fastgate/fastgate/core/request"
)

// Meta-variables recording FastCGI request metadata.
const (
	ParamRole  = "FCGI_ROLE"
	ParamFlags = "FCGI_FLAGS"
	ParamData  = "FCGI_DATA"
)

// Server is the FastCGI protocol backend.
type Server struct {
	Renderer    request.Renderer
	Decoder     request.DecoderFactory
	ReadTimeout time.Duration
	Stats       *core.BackendStats
	Log         logrus.FieldLogger
}

// NewServer wires a FastCGI backend.
func NewServer(renderer request.Renderer, decoder request.DecoderFactory, log logrus.FieldLogger) *Server {
	return &Server{
		Renderer:    renderer,
		Decoder:     decoder,
		ReadTimeout: core.DefaultReadTimeout,
		Stats:       core.NewBackendStats(),
		Log:         log,
	}
}

// Serve runs the accept loop on ln until the listener is closed.
func (s *Server) Serve(ln net.Listener) error {
	return listen.Serve(ln, s.handleConn, s.Log)
}

// fcgiConn implements request.Connection for one FastCGI request. Its reply
// sink is the STDOUT record stream, so headers and body reach the front-end
// framed and in order.
type fcgiConn struct {
	request.Reply
	params request.Params
	body   *request.Body
}

func (c *fcgiConn) Params() request.Params { return c.params }
func (c *fcgiConn) Body() *request.Body    { return c.body }

// deadlineReader bounds every read from the front-end connection. A deadline
// expiry surfaces as a net.Error timeout from Read and fails the connection.
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
		return 0, err
	}
	return r.conn.Read(p)
}

// handleConn owns one accepted connection: decode records until the
// zero-length STDIN arrives, run the request, write END_REQUEST, close. Any
// short read or timeout closes the connection without END_REQUEST.
func (s *Server) handleConn(nc net.Conn) {
	defer nc.Close()
	s.Stats.Accepted.Inc()

	log := s.Log.WithField("remote", nc.RemoteAddr().String())
	out := newConn(nc)
	src := &deadlineReader{conn: nc, timeout: s.ReadTimeout}

	var (
		reqID  uint16
		active bool
		params request.Params
		body   *request.Body
	)

	var rec record
	for {
		if err := rec.read(src); err != nil {
			if err != io.EOF || active {
				s.Stats.Failed.Inc()
				log.WithError(err).Debug("connection dropped mid-stream")
			}
			return
		}

		// BEGIN_REQUEST is exempt from the id filter: a BEGIN for any
		// other id while a request is active must still be answered
		// with a cant-multiplex END_REQUEST, not dropped.
		if !active {
			if rec.h.Type != typeBeginRequest {
				// Records for ids we never began are ignored.
				continue
			}
		} else if rec.h.ID != reqID && rec.h.Type != typeBeginRequest {
			continue
		}

		switch rec.h.Type {
		case typeBeginRequest:
			if active {
				// One multiplexed request per connection.
				_ = out.writeEndRequest(rec.h.ID, 0, statusCantMultiplex)
				continue
			}
			var br beginRequest
			if err := br.read(rec.content()); err != nil {
				s.Stats.Failed.Inc()
				log.WithError(err).Debug("bad BEGIN_REQUEST")
				return
			}
			if br.role != RoleResponder {
				_ = out.writeEndRequest(rec.h.ID, 0, statusUnknownRole)
				return
			}
			reqID = rec.h.ID
			active = true
			params = make(request.Params)
			body = request.NewBody(params, s.Decoder)
			params.Set(ParamRole, strconv.Itoa(int(br.role)))
			params.Set(ParamFlags, strconv.Itoa(int(br.flags)))

		case typeParams:
			// A zero-length PARAMS record only signals end of
			// parameters.
			if len(rec.content()) > 0 {
				if err := decodePairs(rec.content(), params); err != nil {
					s.Stats.Failed.Inc()
					log.WithError(err).Debug("bad PARAMS record")
					return
				}
			}

		case typeStdin:
			content := rec.content()
			if len(content) > 0 {
				if _, err := body.Write(content); err != nil {
					s.Stats.Failed.Inc()
					log.WithError(err).Debug("body sink failed")
					return
				}
				continue
			}
			// Zero-length STDIN: end of body, run the request.
			if err := body.Close(); err != nil {
				s.Stats.Failed.Inc()
				log.WithError(err).Debug("body finalize failed")
				return
			}
			s.execute(out, reqID, params, body, log)
			return

		case typeData:
			params.Set(ParamData, params.Get(ParamData)+string(rec.content()))

		case typeStdinStream:
			// Extension: 4-byte big-endian count of raw bytes that
			// follow outside record framing.
			content := rec.content()
			if len(content) != 4 {
				s.Stats.Failed.Inc()
				log.Debug("bad STDIN_STREAM length prefix")
				return
			}
			n := binary.BigEndian.Uint32(content)
			if _, err := io.CopyN(body, src, int64(n)); err != nil {
				s.Stats.Failed.Inc()
				log.WithError(err).Debug("short STDIN_STREAM payload")
				return
			}

		case typeAbortRequest:
			_ = out.writeEndRequest(reqID, 1, statusRequestComplete)
			return

		default:
			log.WithField("type", rec.h.Type.String()).Warn("unhandled record type")
		}
	}
}

// execute renders the request onto the STDOUT stream, then finishes the
// connection with END_REQUEST.
func (s *Server) execute(out *conn, reqID uint16, params request.Params, body *request.Body, log logrus.FieldLogger) {
	stdout := newWriter(out, typeStdout, reqID)

	fc := &fcgiConn{
		Reply:  request.NewReply(stdout, request.StyleCGI),
		params: params,
		body:   body,
	}

	appStatus := 0
	if err := s.Renderer.Render(fc); err != nil {
		log.WithError(err).WithField("path", params.Get(request.ParamPathInfo)).Error("render failed")
		if !fc.Flushed() {
			fc.SetStatus(500, "Internal Server Error")
		}
		appStatus = 1
	}

	// Headers always go out, even for a bodyless response.
	if err := fc.PushHeaderBytes(); err != nil {
		s.Stats.Failed.Inc()
		return
	}
	if err := stdout.Close(); err != nil {
		s.Stats.Failed.Inc()
		return
	}
	if err := out.writeEndRequest(reqID, appStatus, statusRequestComplete); err != nil {
		s.Stats.Failed.Inc()
		return
	}
	s.Stats.Served.Inc()
}

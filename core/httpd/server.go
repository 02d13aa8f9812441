// Package httpd is the standalone HTTP/1.x protocol backend. It owns the
// incremental parser, the path resolver and the keep-alive worker loop, and
// exposes each parsed request through the request.Connection capability.
package httpd

import (
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fastgate/fastgate/core"
	"github.com/fastgate/fastgate/core/listen"
	"github.com/fastgate/fastgate/core/pools"
	"github.com/fastgate/fastgate/core/request"
)

// Server is the standalone HTTP backend.
type Server struct {
	DocRoot     string
	TemplateExt string
	Renderer    request.Renderer
	Decoder     request.DecoderFactory
	ReadTimeout time.Duration
	Stats       *core.BackendStats
	Log         logrus.FieldLogger

	resolver Resolver
	pool     *pools.BytePool
}

// NewServer wires an HTTP backend. Renderer handles template resources;
// decoder may be nil when multipart bodies should be buffered raw.
func NewServer(docRoot, templateExt string, renderer request.Renderer, decoder request.DecoderFactory, log logrus.FieldLogger) *Server {
	if templateExt == "" {
		templateExt = core.DefaultTemplateExt
	}
	return &Server{
		DocRoot:     docRoot,
		TemplateExt: templateExt,
		Renderer:    renderer,
		Decoder:     decoder,
		ReadTimeout: core.DefaultReadTimeout,
		Stats:       core.NewBackendStats(),
		Log:         log,
		resolver:    Resolver{Root: docRoot, Ext: templateExt},
		pool:        pools.NewBytePool(),
	}
}

// Serve runs the accept loop on ln until the listener is closed.
func (s *Server) Serve(ln net.Listener) error {
	return listen.Serve(ln, s.handleConn, s.Log)
}

// httpConn implements request.Connection for the standalone backend. One
// instance serves one request; keep-alive builds a fresh one per iteration.
type httpConn struct {
	request.Reply
	params request.Params
	body   *request.Body
}

func (c *httpConn) Params() request.Params { return c.params }
func (c *httpConn) Body() *request.Body    { return c.body }

// handleConn owns one accepted connection for its lifetime: parse, resolve,
// respond, and loop while the request declared HTTP/1.1.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	s.Stats.Accepted.Inc()

	log := s.Log.WithField("remote", conn.RemoteAddr().String())
	p := newParser(conn, s.ReadTimeout, s.pool)

	for {
		params := make(request.Params)
		body := request.NewBody(params, s.Decoder)
		s.fillAddrs(params, conn)

		if err := p.parse(params, body); err != nil {
			if err != io.EOF {
				s.Stats.Failed.Inc()
				log.WithError(err).Debug("request discarded")
			}
			return
		}

		c := &httpConn{
			Reply:  request.NewReply(conn, request.StyleHTTP),
			params: params,
			body:   body,
		}
		s.respond(c, log)
		s.Stats.Served.Inc()

		if params.Get(request.ParamServerProtocol) != "HTTP/1.1" {
			return
		}
	}
}

// fillAddrs populates the socket meta-variables from the accepted
// connection's peer and local addresses.
func (s *Server) fillAddrs(params request.Params, conn net.Conn) {
	if host, port, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil {
		params.Set(request.ParamRemoteAddr, host)
		params.Set(request.ParamRemotePort, port)
	}
	if host, port, err := net.SplitHostPort(conn.LocalAddr().String()); err == nil {
		params.Set(request.ParamServerAddr, host)
		params.Set(request.ParamServerPort, port)
	}
}

// respond resolves the request path and produces exactly one response.
func (s *Server) respond(c *httpConn, log logrus.FieldLogger) {
	reqPath := c.params.Get(request.ParamPathInfo)
	res := s.resolver.Resolve(reqPath)

	switch res.Kind {
	case ResolveTemplate:
		c.params.Set("SCRIPT_FILENAME", res.File)
		if err := s.Renderer.Render(c); err != nil {
			log.WithError(err).WithField("path", reqPath).Error("render failed")
			if !c.Flushed() {
				s.plainText(c, 500, "internal error rendering "+reqPath+"\n")
				return
			}
		}
		// The renderer may have produced headers without a body.
		_ = c.PushHeaderBytes()

	case ResolveStatic:
		s.serveStatic(c, res, log)

	case ResolveNotFound:
		s.plainText(c, 404, "not found: "+reqPath+"\n")
	}
}

// serveStatic writes a plain file's bytes with a Content-Type derived from
// its extension.
func (s *Server) serveStatic(c *httpConn, res Resolution, log logrus.FieldLogger) {
	data, err := os.ReadFile(res.File)
	if err != nil {
		log.WithError(err).WithField("file", res.File).Error("static read failed")
		s.plainText(c, 500, "internal error\n")
		return
	}
	c.SetStatus(200, "OK")
	c.WriteHeaderLine("Content-Type: " + res.ContentType)
	c.WriteHeaderLine("Content-Length: " + strconv.Itoa(len(data)))
	_, _ = c.WriteBodyBytes(data)
}

// plainText emits a small text response, used for 404 and error bodies.
func (s *Server) plainText(c *httpConn, code int, body string) {
	c.SetStatus(code, statusText(code))
	c.WriteHeaderLine("Content-Type: text/plain")
	c.WriteHeaderLine("Content-Length: " + strconv.Itoa(len(body)))
	_, _ = c.WriteBodyBytes([]byte(body))
}

func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	default:
		return "Error"
	}
}

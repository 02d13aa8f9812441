package fcgi

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fastgate/fastgate/core/listen"
	"github.com/fastgate/fastgate/core/request"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type captured struct {
	params request.Params
	body   []byte
}

// startServer runs a FastCGI backend whose renderer echoes "ok" and reports
// what it saw on the returned channel.
func startServer(t *testing.T) (string, <-chan captured) {
	t.Helper()
	seen := make(chan captured, 1)

	renderer := request.RendererFunc(func(c request.Connection) error {
		seen <- captured{params: c.Params(), body: c.Body().Bytes()}
		c.SetStatus(200, "OK")
		c.WriteHeaderLine("Content-Type: text/plain")
		c.WriteHeaderLine("Content-Length: 2")
		_, err := c.WriteBodyBytes([]byte("ok"))
		return err
	})

	srv := NewServer(renderer, nil, quietLogger())
	srv.ReadTimeout = 2 * time.Second

	ln, err := listen.Listen("tcp", "127.0.0.1:0", 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go srv.Serve(ln)

	return ln.Addr().String(), seen
}

func beginContent(role uint16, flags uint8) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint16(b, role)
	b[2] = flags
	return b
}

func pair(name, value string) []byte {
	b := make([]byte, 8)
	n := encodeSize(b, uint32(len(name)))
	n += encodeSize(b[n:], uint32(len(value)))
	out := append([]byte{}, b[:n]...)
	out = append(out, name...)
	out = append(out, value...)
	return out
}

// readReply drains the connection, returning the concatenated STDOUT stream
// and the END_REQUEST content. ok=false when the connection closed without
// END_REQUEST.
func readReply(t *testing.T, nc net.Conn) (stdout []byte, endReq []byte, ok bool) {
	t.Helper()
	nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var rec record
		if err := rec.read(nc); err != nil {
			return stdout, nil, false
		}
		switch rec.h.Type {
		case typeStdout:
			stdout = append(stdout, rec.content()...)
		case typeEndRequest:
			out := append([]byte{}, rec.content()...)
			return stdout, out, true
		}
	}
}

func TestFastCGIRequestLifecycle(t *testing.T) {
	addr, seen := startServer(t)

	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	c := newConn(nc)

	c.writeRecord(typeBeginRequest, 5, beginContent(RoleResponder, 0))

	var params bytes.Buffer
	params.Write(pair("PATH_INFO", "/a/b/"))
	params.Write(pair("REQUEST_METHOD", "POST"))
	params.Write(pair("CONTENT_LENGTH", "5"))
	c.writeRecord(typeParams, 5, params.Bytes())
	c.writeRecord(typeParams, 5, nil)

	c.writeRecord(typeStdin, 5, []byte("hello"))
	c.writeRecord(typeStdin, 5, nil)

	stdout, endReq, ok := readReply(t, nc)
	if !ok {
		t.Fatal("connection closed without END_REQUEST")
	}

	got := <-seen
	if got.params.Get("PATH_INFO") != "/a/b/" {
		t.Errorf("Expected PATH_INFO=/a/b/, got %q", got.params.Get("PATH_INFO"))
	}
	if got.params.Get(ParamRole) != strconv.Itoa(int(RoleResponder)) {
		t.Errorf("Expected FCGI_ROLE=1, got %q", got.params.Get(ParamRole))
	}
	if string(got.body) != "hello" {
		t.Errorf("Expected body hello, got %q", got.body)
	}

	want := "Status: 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 2\r\n\r\nok"
	if string(stdout) != want {
		t.Errorf("Expected stdout %q, got %q", want, stdout)
	}

	if len(endReq) != 8 {
		t.Fatalf("Expected 8-byte END_REQUEST content, got %d", len(endReq))
	}
	if binary.BigEndian.Uint32(endReq) != 0 {
		t.Errorf("Expected app status 0, got %d", binary.BigEndian.Uint32(endReq))
	}
	if endReq[4] != statusRequestComplete {
		t.Errorf("Expected request-complete protocol status, got %d", endReq[4])
	}

	// One request per connection: the server closes after END_REQUEST.
	buf := make([]byte, 1)
	if _, err := nc.Read(buf); err != io.EOF {
		t.Errorf("Expected EOF after END_REQUEST, got %v", err)
	}
}

func TestStreamingStdinExtension(t *testing.T) {
	addr, seen := startServer(t)

	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	c := newConn(nc)

	c.writeRecord(typeBeginRequest, 1, beginContent(RoleResponder, 0))
	c.writeRecord(typeParams, 1, nil)

	// A zero-count stretch contributes nothing and does not end the body.
	c.writeRecord(typeStdinStream, 1, make([]byte, 4))

	// 4-byte big-endian length prefix, then that many raw unframed bytes.
	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, 10)
	c.writeRecord(typeStdinStream, 1, prefix)
	if _, err := nc.Write([]byte("0123456789")); err != nil {
		t.Fatal(err)
	}

	// Normal framing resumes: end of body.
	c.writeRecord(typeStdin, 1, nil)

	if _, _, ok := readReply(t, nc); !ok {
		t.Fatal("connection closed without END_REQUEST")
	}

	got := <-seen
	if string(got.body) != "0123456789" {
		t.Errorf("Expected 10 raw bytes in body, got %q", got.body)
	}
}

func TestUnknownRoleRejected(t *testing.T) {
	addr, _ := startServer(t)

	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	c := newConn(nc)

	c.writeRecord(typeBeginRequest, 2, beginContent(RoleFilter, 0))

	_, endReq, ok := readReply(t, nc)
	if !ok {
		t.Fatal("connection closed without END_REQUEST")
	}
	if endReq[4] != statusUnknownRole {
		t.Errorf("Expected unknown-role status, got %d", endReq[4])
	}
}

func TestRecordsForOtherIDsIgnored(t *testing.T) {
	addr, seen := startServer(t)

	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	c := newConn(nc)

	c.writeRecord(typeBeginRequest, 9, beginContent(RoleResponder, 0))
	c.writeRecord(typeParams, 9, nil)
	// Stray records for an id that was never begun.
	c.writeRecord(typeStdin, 4, []byte("noise"))
	c.writeRecord(typeStdin, 9, []byte("real"))
	c.writeRecord(typeStdin, 9, nil)

	if _, _, ok := readReply(t, nc); !ok {
		t.Fatal("connection closed without END_REQUEST")
	}
	got := <-seen
	if string(got.body) != "real" {
		t.Errorf("Expected stray-id record to be ignored, body %q", got.body)
	}
}

func TestSecondBeginRequestRefused(t *testing.T) {
	addr, seen := startServer(t)

	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	c := newConn(nc)

	c.writeRecord(typeBeginRequest, 1, beginContent(RoleResponder, 0))
	// An attempt to multiplex a second request over the same connection.
	c.writeRecord(typeBeginRequest, 2, beginContent(RoleResponder, 0))

	// The refusal arrives immediately, addressed to the second id.
	nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	var rec record
	if err := rec.read(nc); err != nil {
		t.Fatalf("Expected END_REQUEST for the refused request, got %v", err)
	}
	if rec.h.Type != typeEndRequest || rec.h.ID != 2 {
		t.Fatalf("Expected END_REQUEST for id 2, got %v for id %d", rec.h.Type, rec.h.ID)
	}
	if rec.content()[4] != statusCantMultiplex {
		t.Errorf("Expected cant-multiplex status, got %d", rec.content()[4])
	}

	// The original request is unaffected and completes normally.
	c.writeRecord(typeParams, 1, nil)
	c.writeRecord(typeStdin, 1, nil)

	_, endReq, ok := readReply(t, nc)
	if !ok {
		t.Fatal("connection closed without END_REQUEST")
	}
	if endReq[4] != statusRequestComplete {
		t.Errorf("Expected request-complete protocol status, got %d", endReq[4])
	}
	<-seen
}

func TestTruncatedRecordDropsConnection(t *testing.T) {
	addr, _ := startServer(t)

	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	c := newConn(nc)

	c.writeRecord(typeBeginRequest, 6, beginContent(RoleResponder, 0))
	// A record header promising more content than is ever sent.
	header := []byte{1, byte(typeStdin), 0, 6, 0xff, 0xff, 0, 0}
	if _, err := nc.Write(header); err != nil {
		t.Fatal(err)
	}
	half := make([]byte, 100)
	nc.Write(half)
	// Half-close so the server sees EOF mid-record.
	nc.(*net.TCPConn).CloseWrite()

	if _, _, ok := readReply(t, nc); ok {
		t.Error("Expected connection drop without END_REQUEST")
	}
}

package fcgi

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
)

type header struct {
	Version       uint8
	Type          recType
	ID            uint16
	ContentLength uint16
	PaddingLength uint8
	Reserved      uint8
}

// Shared padding source. Padding bytes are opaque to the front-end, so the
// contents never matter and concurrent writers need no coordination.
var pad [maxPad]byte

func (h *header) init(recType recType, reqID uint16, contentLength int) {
	h.Version = version
	h.Type = recType
	h.ID = reqID
	h.ContentLength = uint16(contentLength)
	h.PaddingLength = uint8(-contentLength & 7)
}

type record struct {
	h   header
	buf [maxWrite + maxPad]byte
}

// read decodes one fixed header and drains the record's content plus padding
// so the stream is positioned at the next header.
func (rec *record) read(r io.Reader) (err error) {
	if err = binary.Read(r, binary.BigEndian, &rec.h); err != nil {
		return err
	}

	n := int(rec.h.ContentLength) + int(rec.h.PaddingLength)
	if _, err = io.ReadFull(r, rec.buf[:n]); err != nil {
		return err
	}

	return nil
}

func (rec *record) content() []byte {
	return rec.buf[:rec.h.ContentLength]
}

// beginRequest is the content of a BEGIN_REQUEST record: role (network
// order), flags, and five reserved bytes.
type beginRequest struct {
	role  uint16
	flags uint8
}

func (br *beginRequest) read(content []byte) error {
	if len(content) != 8 {
		return errors.New("fcgi: invalid BEGIN_REQUEST content length")
	}
	br.role = binary.BigEndian.Uint16(content)
	br.flags = content[2]
	return nil
}

// conn serializes record writes onto one front-end connection. The scratch
// buffer and header are reused across records.
type conn struct {
	mutex sync.Mutex
	rwc   io.ReadWriteCloser

	buf bytes.Buffer
	h   header
}

func newConn(rwc io.ReadWriteCloser) *conn {
	return &conn{
		rwc: rwc,
	}
}

func (c *conn) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.rwc.Close()
}

// writeRecord writes and sends a single record.
func (c *conn) writeRecord(recType recType, reqID uint16, b []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.buf.Reset()

	c.h.init(recType, reqID, len(b))

	if err := binary.Write(&c.buf, binary.BigEndian, c.h); err != nil {
		return err
	}

	if _, err := c.buf.Write(b); err != nil {
		return err
	}

	if _, err := c.buf.Write(pad[:c.h.PaddingLength]); err != nil {
		return err
	}

	_, err := c.rwc.Write(c.buf.Bytes())

	return err
}

// writeEndRequest finishes a request: 4-byte application status, 1-byte
// protocol status, 3 reserved bytes.
func (c *conn) writeEndRequest(reqID uint16, appStatus int, protocolStatus uint8) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b, uint32(appStatus))
	b[4] = protocolStatus

	return c.writeRecord(typeEndRequest, reqID, b)
}

// bufWriter encapsulates bufio.Writer but also closes the underlying stream
type bufWriter struct {
	closer io.Closer
	*bufio.Writer
}

func (w *bufWriter) Close() error {
	if err := w.Writer.Flush(); err != nil {
		_ = w.closer.Close()

		return err
	}

	return w.closer.Close()
}

// streamWriter abstracts out the separation of a stream into discrete
// records. It only writes maxWrite bytes at a time.
type streamWriter struct {
	c       *conn
	recType recType
	reqID   uint16
}

func newWriter(c *conn, recType recType, reqID uint16) *bufWriter {
	s := &streamWriter{
		c:       c,
		recType: recType,
		reqID:   reqID,
	}

	w := bufio.NewWriterSize(s, maxWrite)

	return &bufWriter{s, w}
}

func (w *streamWriter) Write(p []byte) (int, error) {
	nn := 0

	for len(p) > 0 {
		n := len(p)
		if n > maxWrite {
			n = maxWrite
		}

		if err := w.c.writeRecord(w.recType, w.reqID, p[:n]); err != nil {
			return nn, err
		}

		nn += n
		p = p[n:]
	}

	return nn, nil
}

// Close ends the stream with a zero-length record.
func (w *streamWriter) Close() error {
	return w.c.writeRecord(w.recType, w.reqID, nil)
}

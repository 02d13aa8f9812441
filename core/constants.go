package core

import (
	"errors"
	"time"
)

// Defaults shared by both protocol backends.
const (
	// ReadChunkSize is how many bytes a worker pulls from its socket per
	// read while scanning for a complete request.
	ReadChunkSize = 2048

	// DefaultReadTimeout bounds every blocking read; a connection that
	// stays silent past it is treated as dead.
	DefaultReadTimeout = 10 * time.Second

	// DefaultTemplateExt is the extension of dynamic template resources,
	// without the dot.
	DefaultTemplateExt = "tpl"
)

// Error definitions
var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrReadTimeout      = errors.New("read timed out")
	ErrShortRead        = errors.New("connection closed mid-request")
)

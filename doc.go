/*
Package fastgate provides a protocol-agnostic request ingestion layer for Go.

Fastgate turns raw byte streams arriving over TCP sockets or unix sockets into a
normalized, CGI-style request representation. Two independent wire protocols are
supported behind one capability abstraction: plain HTTP/1.x on a listening
socket, and FastCGI (a binary, length-framed protocol) on a socket or pipe.
Everything built above the capability layer never needs to know which wire
protocol delivered the request.

Features

  - Incremental HTTP/1.x parsing with exact buffer bookkeeping across partial
    reads, header continuation lines, and sequential keep-alive
  - Byte-exact FastCGI record framing: BEGIN_REQUEST, PARAMS (1- and 4-byte
    length coding), STDIN, DATA, END_REQUEST, plus a streaming-STDIN extension
  - One shared Connection capability interface implemented by both backends
  - Filesystem path resolution for template resources, directory indexes, and
    static files
  - Goroutine-per-connection workers with deadline-bounded reads; no locks in
    the request path
  - Collaborator interfaces for response rendering, multipart decoding, and
    session storage

Quick Start

Basic usage example:

	package main

	import (
	    "github.com/fastgate/fastgate/app"
	    "github.com/fastgate/fastgate/config"
	)

	func main() {
	    cfg := config.New()
	    application := app.New(cfg)
	    application.Run()
	}

Modules

The framework is organized into several modules:

  - app: Application lifecycle management
  - config: Configuration loading and management
  - core/request: Connection capability and meta-variable normalization
  - core/httpd: Standalone HTTP/1.x backend and path resolver
  - core/fcgi: FastCGI backend
  - core/listen: Socket/pipe binding and the accept loop
  - core/session: Session store collaborator interface
  - core/pools: Buffer pooling

For more information, see https://github.com/fastgate/fastgate
*/
package fastgate

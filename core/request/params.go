package request

import "strings"

// Standard meta-variable keys populated by both protocol backends.
const (
	ParamRequestMethod  = "REQUEST_METHOD"
	ParamPathInfo       = "PATH_INFO"
	ParamQueryString    = "QUERY_STRING"
	ParamServerProtocol = "SERVER_PROTOCOL"
	ParamContentLength  = "CONTENT_LENGTH"
	ParamContentType    = "CONTENT_TYPE"
	ParamRemoteAddr     = "REMOTE_ADDR"
	ParamRemotePort     = "REMOTE_PORT"
	ParamServerAddr     = "SERVER_ADDR"
	ParamServerPort     = "SERVER_PORT"
)

// Params maps normalized meta-variable names to their values. Keys are unique;
// insertion order is irrelevant. A Params map is exclusively owned by the
// worker processing its connection, so no synchronization is needed.
type Params map[string]string

// Get returns the value for key, or "" when absent.
func (p Params) Get(key string) string {
	return p[key]
}

// Set inserts or overwrites a meta-variable. Last write wins.
func (p Params) Set(key, value string) {
	p[key] = value
}

// Append space-joins extra onto an existing value, used for header
// continuation lines. A missing key is reported to the caller.
func (p Params) Append(key, extra string) bool {
	v, ok := p[key]
	if !ok {
		return false
	}
	p[key] = v + " " + extra
	return true
}

// ContentLength parses CONTENT_LENGTH, returning 0 for absent, empty or
// non-numeric values.
func (p Params) ContentLength() int {
	v := p[ParamContentLength]
	n := 0
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// headerKeys maps the common HTTP header names (lowercased) to their
// meta-variable keys. Content-Length and Content-Type deliberately lack the
// HTTP_ prefix, matching the CGI convention.
var headerKeys = map[string]string{
	"host":            "HTTP_HOST",
	"connection":      "HTTP_CONNECTION",
	"keep-alive":      "HTTP_KEEP_ALIVE",
	"user-agent":      "HTTP_USER_AGENT",
	"referer":         "HTTP_REFERER",
	"referrer":        "HTTP_REFERER",
	"accept":          "HTTP_ACCEPT",
	"content-length":  ParamContentLength,
	"content-type":    ParamContentType,
	"cookie":          "HTTP_COOKIE",
	"accept-language": "HTTP_ACCEPT_LANGUAGE",
	"accept-encoding": "HTTP_ACCEPT_ENCODING",
	"accept-charset":  "HTTP_ACCEPT_CHARSET",
	"authorization":   "HTTP_AUTHORIZATION",
}

// MetaKey normalizes an HTTP header name to its meta-variable key: the static
// table for the common headers, otherwise uppercase, '-' replaced with '_',
// prefixed with HTTP_.
func MetaKey(header string) string {
	if key, ok := headerKeys[strings.ToLower(header)]; ok {
		return key
	}
	b := []byte(strings.ToUpper(header))
	for i := range b {
		if b[i] == '-' {
			b[i] = '_'
		}
	}
	return "HTTP_" + string(b)
}

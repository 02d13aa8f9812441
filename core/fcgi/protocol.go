// Package fcgi is the FastCGI protocol backend: a byte-exact implementation
// of the FastCGI record framing consumed from a front-end web server, plus a
// proprietary streaming-STDIN extension. Each accepted connection carries
// exactly one logical request, exposed through the request.Connection
// capability.
package fcgi

type recType uint8

const version uint8 = 1

const (
	typeBeginRequest    recType = 1
	typeAbortRequest    recType = 2
	typeEndRequest      recType = 3
	typeParams          recType = 4
	typeStdin           recType = 5
	typeStdout          recType = 6
	typeStderr          recType = 7
	typeData            recType = 8
	typeGetValues       recType = 9
	typeGetValuesResult recType = 10
	typeUnknownType     recType = 11

	// typeStdinStream is the streaming-STDIN extension: the record content
	// is a 4-byte big-endian count of raw, unframed body bytes that follow
	// directly on the wire, outside record framing.
	typeStdinStream recType = 80
)

// String implements fmt.Stringer
func (t recType) String() string {
	switch t {
	case typeBeginRequest:
		return "FCGI_BEGIN_REQUEST"

	case typeAbortRequest:
		return "FCGI_ABORT_REQUEST"

	case typeEndRequest:
		return "FCGI_END_REQUEST"

	case typeParams:
		return "FCGI_PARAMS"

	case typeStdin:
		return "FCGI_STDIN"

	case typeStdout:
		return "FCGI_STDOUT"

	case typeStderr:
		return "FCGI_STDERR"

	case typeData:
		return "FCGI_DATA"

	case typeGetValues:
		return "FCGI_GET_VALUES"

	case typeGetValuesResult:
		return "FCGI_GET_VALUES_RESULT"

	case typeStdinStream:
		return "FCGI_STDIN_STREAM"

	case typeUnknownType:
		fallthrough

	default:
		return "FCGI_UNKNOWN_TYPE"
	}
}

// GoString implements fmt.GoStringer
func (t recType) GoString() string {
	return t.String()
}

const (
	maxWrite = 65535 // maximum record body
	maxPad   = 255
)

const (
	RoleResponder uint16 = iota + 1
	RoleAuthorizer
	RoleFilter
)

const (
	statusRequestComplete = iota
	statusCantMultiplex
	statusOverloaded
	statusUnknownRole
)

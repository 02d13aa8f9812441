package fcgi

import (
	"encoding/binary"

	"github.com/fastgate/fastgate/core"
	"github.com/fastgate/fastgate/core/request"
)

// readSize decodes one name/value length: a single byte when the high bit is
// clear (0-127), otherwise four bytes with the high bit masked off, most
// significant first, forming a 31-bit length.
func readSize(s []byte) (uint32, int) {
	if len(s) == 0 {
		return 0, 0
	}

	size, n := uint32(s[0]), 1

	if size&(1<<7) != 0 {
		if len(s) < 4 {
			return 0, 0
		}

		n = 4
		size = binary.BigEndian.Uint32(s)
		size &^= 1 << 31
	}

	return size, n
}

// encodeSize is the inverse of readSize, kept for the encode path and for
// round-trip tests.
func encodeSize(b []byte, size uint32) int {
	if size > 127 {
		size |= 1 << 31
		binary.BigEndian.PutUint32(b, size)

		return 4
	}

	b[0] = byte(size)

	return 1
}

// decodePairs decodes a PARAMS record's content: name length, value length,
// name bytes, value bytes, repeated until the content is exhausted. Each pair
// is inserted into params; last write wins on duplicate keys. Truncated
// content is malformed.
func decodePairs(content []byte, params request.Params) error {
	for len(content) > 0 {
		nameLen, n := readSize(content)
		if n == 0 {
			return core.ErrMalformedRequest
		}
		content = content[n:]

		valueLen, n := readSize(content)
		if n == 0 {
			return core.ErrMalformedRequest
		}
		content = content[n:]

		if uint32(len(content)) < nameLen+valueLen {
			return core.ErrMalformedRequest
		}

		name := string(content[:nameLen])
		value := string(content[nameLen : nameLen+valueLen])
		content = content[nameLen+valueLen:]

		params.Set(name, value)
	}
	return nil
}

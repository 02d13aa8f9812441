// Package session defines the session-store collaborator interface. The
// ingestion core never touches session data itself; a store implementation is
// constructed by the embedding application and handed to its renderer.
package session

import "time"

// Record is one stored session: opaque data plus expiry metadata.
type Record struct {
	Data          []byte
	LastAccess    time.Time
	ExpireMinutes int
}

// Store is keyed load/commit of opaque session data. The compound key encodes
// the session id together with whatever namespace the application uses.
type Store interface {
	// Load returns the record for key, with ok=false when absent.
	Load(key string) (rec Record, ok bool, err error)

	// Commit writes data under key, stamping it with now and the sliding
	// expiry window in minutes.
	Commit(key string, data []byte, now time.Time, expireMinutes int) error
}

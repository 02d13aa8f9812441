package core

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// BackendStats counts connection outcomes for one protocol backend. Counters
// are striped (xsync) because every connection worker bumps them.
type BackendStats struct {
	Accepted *xsync.Counter
	Served   *xsync.Counter
	Failed   *xsync.Counter
}

// NewBackendStats creates a zeroed counter set.
func NewBackendStats() *BackendStats {
	return &BackendStats{
		Accepted: xsync.NewCounter(),
		Served:   xsync.NewCounter(),
		Failed:   xsync.NewCounter(),
	}
}

// StatsSnapshot is a point-in-time view of one backend's counters.
type StatsSnapshot struct {
	Accepted int64 `json:"accepted"`
	Served   int64 `json:"served"`
	Failed   int64 `json:"failed"`
}

// Snapshot reads the counters.
func (s *BackendStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Accepted: s.Accepted.Value(),
		Served:   s.Served.Value(),
		Failed:   s.Failed.Value(),
	}
}

// ServerStats aggregates both backends.
type ServerStats struct {
	HTTP    *BackendStats
	FastCGI *BackendStats
}

// NewServerStats creates counter sets for both backends.
func NewServerStats() *ServerStats {
	return &ServerStats{
		HTTP:    NewBackendStats(),
		FastCGI: NewBackendStats(),
	}
}

// Text returns server statistics as human-readable text.
func (s *ServerStats) Text() string {
	h := s.HTTP.Snapshot()
	f := s.FastCGI.Snapshot()
	return fmt.Sprintf(`Server Statistics
=================

HTTP:
  Accepted: %d
  Served:   %d
  Failed:   %d

FastCGI:
  Accepted: %d
  Served:   %d
  Failed:   %d
`,
		h.Accepted, h.Served, h.Failed,
		f.Accepted, f.Served, f.Failed,
	)
}

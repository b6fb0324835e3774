package core

import "sync/atomic"

// Stats are connection counters shared between a server and the health API.
type Stats struct {
	Live       atomic.Int64
	Accepted   atomic.Int64
	Finished   atomic.Int64
	Failed     atomic.Int64
	Iterations atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Live       int64 `json:"live"`
	Accepted   int64 `json:"accepted"`
	Finished   int64 `json:"finished"`
	Failed     int64 `json:"failed"`
	Iterations int64 `json:"iterations"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Live:       s.Live.Load(),
		Accepted:   s.Accepted.Load(),
		Finished:   s.Finished.Load(),
		Failed:     s.Failed.Load(),
		Iterations: s.Iterations.Load(),
	}
}

// Package stats tallies what happened during an ingestion run.
//
// Counters are atomic so the producer and every worker can update them
// without coordination. Per-level and per-service counts are kept for
// written records only.
package stats

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/armash/log-ingestor/internal/types"
)

// Stats is safe for concurrent use. The zero value is ready to use.
type Stats struct {
	linesRead atomic.Int64
	parsed    atomic.Int64
	malformed atomic.Int64
	filtered  atomic.Int64
	written   atomic.Int64

	mu       sync.Mutex
	levels   map[string]int64
	services map[string]int64
}

// Count is a key with the number of written records carrying it.
type Count struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

func (s *Stats) IncLinesRead() { s.linesRead.Add(1) }
func (s *Stats) IncParsed()    { s.parsed.Add(1) }
func (s *Stats) IncMalformed() { s.malformed.Add(1) }
func (s *Stats) IncFiltered()  { s.filtered.Add(1) }

// ObserveWritten records that rec reached the sink.
func (s *Stats) ObserveWritten(rec types.Record) {
	s.written.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.levels == nil {
		s.levels = make(map[string]int64)
		s.services = make(map[string]int64)
	}
	s.levels[rec.Level]++
	s.services[rec.Service]++
}

func (s *Stats) LinesRead() int64 { return s.linesRead.Load() }
func (s *Stats) Parsed() int64    { return s.parsed.Load() }
func (s *Stats) Malformed() int64 { return s.malformed.Load() }
func (s *Stats) Filtered() int64  { return s.filtered.Load() }
func (s *Stats) Written() int64   { return s.written.Load() }

// Levels returns written-record counts per level, highest count first.
func (s *Stats) Levels() []Count {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedCounts(s.levels)
}

// Services returns written-record counts per service, highest count first.
func (s *Stats) Services() []Count {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedCounts(s.services)
}

func sortedCounts(m map[string]int64) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// LogValue implements slog.LogValuer.
func (s *Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("lines_read", s.LinesRead()),
		slog.Int64("parsed", s.Parsed()),
		slog.Int64("malformed", s.Malformed()),
		slog.Int64("filtered", s.Filtered()),
		slog.Int64("written", s.Written()),
	)
}

type statsJSON struct {
	LinesRead int64   `json:"lines_read"`
	Parsed    int64   `json:"parsed"`
	Malformed int64   `json:"malformed"`
	Filtered  int64   `json:"filtered"`
	Written   int64   `json:"written"`
	Levels    []Count `json:"levels"`
	Services  []Count `json:"services"`
}

// MarshalJSON implements json.Marshaler.
func (s *Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(statsJSON{
		LinesRead: s.LinesRead(),
		Parsed:    s.Parsed(),
		Malformed: s.Malformed(),
		Filtered:  s.Filtered(),
		Written:   s.Written(),
		Levels:    s.Levels(),
		Services:  s.Services(),
	})
}

package stats

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/armash/log-ingestor/internal/types"
)

func TestStats_Counters(t *testing.T) {
	var s Stats
	s.IncLinesRead()
	s.IncLinesRead()
	s.IncLinesRead()
	s.IncParsed()
	s.IncParsed()
	s.IncMalformed()
	s.IncFiltered()
	s.ObserveWritten(types.Record{Level: "INFO", Service: "auth"})

	require.Equal(t, int64(3), s.LinesRead())
	require.Equal(t, int64(2), s.Parsed())
	require.Equal(t, int64(1), s.Malformed())
	require.Equal(t, int64(1), s.Filtered())
	require.Equal(t, int64(1), s.Written())
}

func TestStats_LevelsAndServicesSorted(t *testing.T) {
	var s Stats
	for _, r := range []types.Record{
		{Level: "INFO", Service: "auth"},
		{Level: "ERROR", Service: "db"},
		{Level: "INFO", Service: "db"},
		{Level: "WARN", Service: "api"},
		{Level: "INFO", Service: "db"},
	} {
		s.ObserveWritten(r)
	}

	require.Equal(t, []Count{{"INFO", 3}, {"ERROR", 1}, {"WARN", 1}}, s.Levels())
	require.Equal(t, []Count{{"db", 3}, {"api", 1}, {"auth", 1}}, s.Services())
}

func TestStats_EmptyListings(t *testing.T) {
	var s Stats
	require.Empty(t, s.Levels())
	require.NotNil(t, s.Services())
}

func TestStats_ConcurrentObserve(t *testing.T) {
	var s Stats
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				s.ObserveWritten(types.Record{Level: "INFO", Service: "svc"})
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1000), s.Written())
	require.Equal(t, []Count{{"INFO", 1000}}, s.Levels())
}

func TestStats_MarshalJSON(t *testing.T) {
	var s Stats
	s.IncLinesRead()
	s.IncParsed()
	s.ObserveWritten(types.Record{Level: "INFO", Service: "auth"})

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `{
		"lines_read": 1, "parsed": 1, "malformed": 0, "filtered": 0, "written": 1,
		"levels": [{"key": "INFO", "count": 1}],
		"services": [{"key": "auth", "count": 1}]
	}`, string(data))
}

func TestStats_LogValue(t *testing.T) {
	var s Stats
	s.IncMalformed()

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("done", "stats", &s)
	require.Contains(t, buf.String(), "stats.malformed=1")
	require.Contains(t, buf.String(), "stats.written=0")
}

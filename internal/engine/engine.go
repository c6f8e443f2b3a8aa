package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/armash/log-ingestor/internal/ingest"
	"github.com/armash/log-ingestor/internal/metrics"
	"github.com/armash/log-ingestor/internal/query"
	"github.com/armash/log-ingestor/internal/queue"
	"github.com/armash/log-ingestor/internal/stats"
	"github.com/armash/log-ingestor/internal/types"
)

// ErrSourceUnavailable is returned by Run when the input cannot be opened.
var ErrSourceUnavailable = errors.New("input source unavailable")

type Options struct {
	RunID   string
	File    string
	Workers int
	Filters query.Filters
}

// Deps are the collaborators shared by the producer and the workers.
// Logger, Metrics and Stats are created when nil.
type Deps struct {
	Sink    Writer
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Stats   *stats.Stats
}

// Result describes a finished run.
type Result struct {
	RunID      string
	File       string
	Workers    int
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      *stats.Stats
}

func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RatePerSec returns written records per second. It reports false for runs
// shorter than a second.
func (r Result) RatePerSec() (float64, bool) {
	secs := r.Duration().Seconds()
	if secs < 1 {
		return 0, false
	}
	return float64(r.Stats.Written()) / secs, true
}

// Run ingests opts.File: each line is parsed on the calling goroutine and
// valid records are fanned out to opts.Workers workers that write to
// deps.Sink. Run returns once every worker has exited, including when the
// input cannot be opened. Cancelling ctx stops reading new lines; records
// already queued are still written.
func Run(ctx context.Context, opts Options, deps Deps) (Result, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Stats == nil {
		deps.Stats = &stats.Stats{}
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	logger := deps.Logger.With("run_id", opts.RunID)
	m := deps.Metrics
	st := deps.Stats

	q := queue.New[types.Record]()
	pool := NewPool(opts.Workers).OnWrite(func(_ int, rec types.Record) {
		st.ObserveWritten(rec)
		m.RecordsWritten.WithLabelValues(rec.Level).Inc()
		m.QueueDepth.Set(float64(q.Len()))
	})

	res := Result{
		RunID:     opts.RunID,
		File:      opts.File,
		Workers:   pool.Size(),
		StartedAt: time.Now(),
		Stats:     st,
	}

	logger.Info("starting workers", "workers", pool.Size(), "file", opts.File)
	m.Workers.Set(float64(pool.Size()))
	pool.Start(q, deps.Sink)

	err := produce(ctx, opts, q, logger, m, st)

	q.MarkFinished()
	pool.Wait()
	m.Workers.Set(0)
	res.FinishedAt = time.Now()

	if err != nil {
		return res, err
	}
	logger.Info("ingestion complete", "stats", st, "elapsed", res.Duration())
	return res, nil
}

func produce(ctx context.Context, opts Options, q *queue.Queue[types.Record], logger *slog.Logger, m *metrics.Metrics, st *stats.Stats) error {
	rc, err := ingest.Open(opts.File)
	if err != nil {
		logger.Error("unable to open log file", "path", opts.File, "error", err)
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer rc.Close()

	err = ingest.Scan(ctx, rc, func(line string) {
		st.IncLinesRead()
		m.LinesRead.Inc()

		rec, err := ingest.ParseLine(line)
		if err != nil {
			logger.Warn("skipping malformed line", "line", line)
			st.IncMalformed()
			m.LinesMalformed.Inc()
			return
		}
		st.IncParsed()

		if !opts.Filters.Matches(rec) {
			st.IncFiltered()
			return
		}

		q.Push(rec)
		m.RecordsQueued.Inc()
		m.QueueDepth.Set(float64(q.Len()))
	})
	if err != nil {
		logger.Error("failed reading log file", "path", opts.File, "error", err)
		return fmt.Errorf("read %s: %w", opts.File, err)
	}
	if ctx.Err() != nil {
		logger.Warn("stopped reading early", "reason", context.Cause(ctx))
	}
	return nil
}

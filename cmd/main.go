package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/armash/log-ingestor/internal/config"
	"github.com/armash/log-ingestor/internal/engine"
	"github.com/armash/log-ingestor/internal/metrics"
	"github.com/armash/log-ingestor/internal/query"
	"github.com/armash/log-ingestor/internal/server"
	"github.com/armash/log-ingestor/internal/sink"
	"github.com/armash/log-ingestor/internal/snapshot"
	"github.com/armash/log-ingestor/internal/stats"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) (string, bool)) int {
	fs := flag.NewFlagSet("ingestor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to JSON config file")
	file := fs.String("file", config.DefaultLogFile, "path to log file (.gz and .zst are decompressed)")
	workers := fs.Int("workers", config.DefaultWorkers, "number of concurrent workers (minimum 1)")
	output := fs.String("output", "", "append records to this file instead of stdout")
	level := fs.String("level", "", "only forward records with this level")
	service := fs.String("service", "", "only forward records from this service")
	q := fs.String("query", "", `filter expression, e.g. 'level=ERROR service=auth message~"timed out"'`)
	metricsAddr := fs.String("metrics-addr", "", "serve /health, /metrics and /stats on this address during the run")
	summary := fs.String("summary", "", "write a JSON run summary to this path")
	logLevel := fs.String("log-level", config.DefaultLogLevel, "diagnostic log level (debug, info, warn, error)")
	logJSON := fs.Bool("log-json", false, "emit diagnostics as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	layers := []*config.Config{config.Defaults()}
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "failed to load config: %v\n", err)
			return 2
		}
		layers = append(layers, cfg)
	}
	layers = append(layers, config.FromEnv(getenv))

	// Flags only override lower layers when given explicitly.
	var flagLayer config.Config
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "file":
			flagLayer.File = file
		case "workers":
			flagLayer.Workers = workers
		case "output":
			flagLayer.Output = output
		case "level":
			flagLayer.Level = level
		case "service":
			flagLayer.Service = service
		case "query":
			flagLayer.Query = q
		case "metrics-addr":
			flagLayer.MetricsAddr = metricsAddr
		case "summary":
			flagLayer.Summary = summary
		case "log-level":
			flagLayer.LogLevel = logLevel
		case "log-json":
			flagLayer.LogJSON = logJSON
		}
	})
	settings := config.Merge(append(layers, &flagLayer)...).Resolve()

	logger, err := newLogger(stderr, settings.LogLevel, settings.LogJSON)
	if err != nil {
		fmt.Fprintf(stderr, "invalid --log-level: %v\n", err)
		return 2
	}

	filters, err := buildFilters(settings)
	if err != nil {
		logger.Error("invalid filter", "error", err)
		return 2
	}

	runID := uuid.NewString()
	st := &stats.Stats{}
	m := metrics.New()

	if settings.MetricsAddr != "" {
		srvCtx, cancelSrv := context.WithCancel(ctx)
		srvDone := make(chan struct{})
		go func() {
			defer close(srvDone)
			if err := server.New(runID, st, m).Start(srvCtx, settings.MetricsAddr, nil); err != nil {
				logger.Error("metrics server stopped", "run_id", runID, "addr", settings.MetricsAddr, "error", err)
			}
		}()
		defer func() {
			cancelSrv()
			<-srvDone
		}()
	}

	out := sink.New(settings.Output, stdout, logger)
	res, runErr := engine.Run(ctx, engine.Options{
		RunID:   runID,
		File:    settings.File,
		Workers: settings.Workers,
		Filters: filters,
	}, engine.Deps{
		Sink:    out,
		Logger:  logger,
		Metrics: m,
		Stats:   st,
	})

	if err := out.Close(); err != nil {
		logger.Error("failed to close output", "run_id", runID, "error", err)
	}
	if err := out.Err(); err != nil {
		logger.Warn("output write failed", "run_id", runID, "error", err)
	}

	if settings.Summary != "" {
		if err := snapshot.Write(settings.Summary, snapshot.FromResult(res, out.Path(), runErr)); err != nil {
			logger.Error("failed to write summary", "run_id", runID, "path", settings.Summary, "error", err)
		}
	}

	if runErr != nil {
		return 1
	}
	fmt.Fprintln(stdout, "Ingestion complete.")
	return 0
}

func newLogger(w io.Writer, level string, asJSON bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func buildFilters(s config.Settings) (query.Filters, error) {
	filters := query.Filters{Level: s.Level, Service: s.Service}
	if s.Query == "" {
		return filters, nil
	}
	parsed, err := query.Parse(s.Query)
	if err != nil {
		return query.Filters{}, err
	}
	return query.Merge(filters, parsed)
}

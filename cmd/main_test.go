package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRun_ConsoleOutput(t *testing.T) {
	in := writeFile(t, "app.log", "2024-01-01 10:00:00 INFO auth user logged in\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-file", in, "-workers", "1"}, &stdout, &stderr, noEnv)
	require.Equal(t, 0, code, stderr.String())
	require.Equal(t,
		"[2024-01-01 10:00:00] INFO auth user logged in (worker 0)\nIngestion complete.\n",
		stdout.String())
}

func TestRun_MalformedLine(t *testing.T) {
	in := writeFile(t, "app.log", "bad line\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-file", in}, &stdout, &stderr, noEnv)
	require.Equal(t, 0, code)
	require.Equal(t, "Ingestion complete.\n", stdout.String())
	require.Equal(t, 1, strings.Count(stderr.String(), "skipping malformed line"))
}

func TestRun_FileOutputFromEnv(t *testing.T) {
	in := writeFile(t, "app.log",
		"2024-01-01 10:00:00 INFO auth a\n"+
			"2024-01-01 10:00:01 WARN api b\n"+
			"2024-01-01 10:00:02 ERROR db c\n")
	out := filepath.Join(t.TempDir(), "out.log")
	env := map[string]string{
		"LOG_FILE_PATH":    in,
		"WORKER_COUNT":     "3",
		"OUTPUT_FILE_PATH": out,
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), nil, &stdout, &stderr, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.Equal(t, 0, code, stderr.String())
	require.Equal(t, "Ingestion complete.\n", stdout.String())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		"[2024-01-01 10:00:00] INFO auth a",
		"[2024-01-01 10:00:01] WARN api b",
		"[2024-01-01 10:00:02] ERROR db c",
	}, strings.Split(strings.TrimSuffix(string(data), "\n"), "\n"))
	require.Contains(t, stderr.String(), "workers=3")
}

func TestRun_ZeroWorkersClamped(t *testing.T) {
	in := writeFile(t, "app.log", "2024-01-01 10:00:00 INFO auth a\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-file", in, "-workers", "0"}, &stdout, &stderr, noEnv)
	require.Equal(t, 0, code)
	require.Contains(t, stderr.String(), "workers=1")
	require.Contains(t, stdout.String(), "(worker 0)")
}

func TestRun_SourceUnavailable(t *testing.T) {
	summary := filepath.Join(t.TempDir(), "summary.json")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-file", filepath.Join(t.TempDir(), "missing.log"),
		"-workers", "4",
		"-summary", summary,
	}, &stdout, &stderr, noEnv)
	require.Equal(t, 1, code)
	require.Empty(t, stdout.String())
	require.Contains(t, stderr.String(), "unable to open log file")

	data, err := os.ReadFile(summary)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Contains(t, got["error"], "input source unavailable")
}

func TestRun_ConfigFileAndFlagPrecedence(t *testing.T) {
	in := writeFile(t, "app.log",
		"2024-01-01 10:00:00 INFO auth a\n"+
			"2024-01-01 10:00:01 ERROR auth b\n"+
			"2024-01-01 10:00:02 ERROR db c\n")
	cfg := writeFile(t, "config.json", `{"file": "`+in+`", "workers": 2, "level": "ERROR", "logJSON": true}`)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", cfg, "-workers", "1", "-query", "service=auth"}, &stdout, &stderr, noEnv)
	require.Equal(t, 0, code, stderr.String())
	require.Equal(t, "[2024-01-01 10:00:01] ERROR auth b (worker 0)\nIngestion complete.\n", stdout.String())
	require.Contains(t, stderr.String(), `"workers":1`)
}

func TestRun_InvalidArguments(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 2, run(context.Background(), []string{"-query", "host=a"}, &stdout, &stderr, noEnv))
	require.Equal(t, 2, run(context.Background(), []string{"-log-level", "loud"}, &stdout, &stderr, noEnv))
	require.Equal(t, 2, run(context.Background(), []string{"-config", filepath.Join(t.TempDir(), "nope.json")}, &stdout, &stderr, noEnv))
	require.Equal(t, 2, run(context.Background(), []string{"-level", "ERROR", "-query", "level=INFO"}, &stdout, &stderr, noEnv))
	require.Equal(t, 2, run(context.Background(), []string{"-no-such-flag"}, &stdout, &stderr, noEnv))
	require.Empty(t, stdout.String())
}

func TestRun_MetricsServer(t *testing.T) {
	in := writeFile(t, "app.log", "2024-01-01 10:00:00 INFO auth a\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-file", in, "-metrics-addr", "127.0.0.1:0"}, &stdout, &stderr, noEnv)
	require.Equal(t, 0, code, stderr.String())
	require.NotContains(t, stderr.String(), "metrics server stopped")
}

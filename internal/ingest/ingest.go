package ingest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/armash/log-ingestor/internal/types"
)

// ErrMalformedLine is returned by ParseLine when a line has fewer than four tokens.
var ErrMalformedLine = errors.New("malformed line: expected <date> <time> <level> <service> [message]")

// ParseLine parses a line of the form "<date> <time> <level> <service> [message...]".
// Tokens are separated by runs of ASCII whitespace. The message is the rest of
// the line after the service token, minus one leading space if present.
func ParseLine(line string) (types.Record, error) {
	var tokens [4]string
	pos := 0
	for i := range tokens {
		for pos < len(line) && isSpace(line[pos]) {
			pos++
		}
		start := pos
		for pos < len(line) && !isSpace(line[pos]) {
			pos++
		}
		if start == pos {
			return types.Record{}, ErrMalformedLine
		}
		tokens[i] = line[start:pos]
	}

	rest := strings.TrimPrefix(line[pos:], " ")

	return types.Record{
		Timestamp: tokens[0] + " " + tokens[1],
		Level:     tokens[2],
		Service:   tokens[3],
		Message:   rest,
	}, nil
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Open opens a log file for reading. Files ending in .gz or .zst are
// decompressed transparently.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &decompressor{Reader: zr, closeFn: zr.Close, file: f}, nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &decompressor{Reader: zr, closeFn: func() error { zr.Close(); return nil }, file: f}, nil
	}
	return f, nil
}

type decompressor struct {
	io.Reader
	closeFn func() error
	file    *os.File
}

func (d *decompressor) Close() error {
	err := d.closeFn()
	if ferr := d.file.Close(); err == nil {
		err = ferr
	}
	return err
}

// Scan reads r line-by-line and calls fn with each line, without its line
// terminator. It stops early when ctx is cancelled.
func Scan(ctx context.Context, r io.Reader, fn func(line string)) error {
	reader := bufio.NewReader(r)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			fn(strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

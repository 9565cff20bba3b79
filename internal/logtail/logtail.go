// Package logtail implements bounded log reads (C8, spec §4.8): the READ
// command returns up to n bytes from a group's redirected stdout/stderr log
// file at a client-chosen offset, plus the file's current size.
//
// There is no close teacher analogue for this component — the teacher
// buffers PTY output in memory rather than reading an on-disk file on
// demand — so the offset/seek semantics here are written directly against
// the original test suite's expectations (original_source/python/tests.py,
// TestRead: test_read_eof_0/1, test_read_sof, test_read_fsize).
package logtail

import (
	"fmt"
	"io"
	"os"
)

// ErrNoRedirection is returned when the requested stream has no
// configured log file for the group (spec §4.8: "If the group has no
// redirection for the requested stream, reply error").
var ErrNoRedirection = fmt.Errorf("logtail: stream has no log redirection")

// Result is the data a READ command replies with (spec §6's READ row).
type Result struct {
	Log   []byte
	FSize int64
}

// Read opens path, computes the effective read window from offset per
// spec §4.8's rule — negative offset seeks from EOF (clamped to 0),
// non-negative offset clamps to file size — reads up to maxBytes (itself
// capped by serverCap, spec's "recommended 1 MiB"), and returns the bytes
// read plus the file's current size.
func Read(path string, offset int64, maxBytes int, serverCap int) (Result, error) {
	if path == "" {
		return Result{}, ErrNoRedirection
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("logtail: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("logtail: stat %s: %w", path, err)
	}
	fsize := info.Size()

	var pos int64
	if offset < 0 {
		pos = fsize + offset
		if pos < 0 {
			pos = 0
		}
	} else {
		pos = offset
		if pos > fsize {
			pos = fsize
		}
	}

	if maxBytes <= 0 || maxBytes > serverCap {
		maxBytes = serverCap
	}

	if _, err := f.Seek(pos, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("logtail: seek %s: %w", path, err)
	}

	buf := make([]byte, maxBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Result{}, fmt.Errorf("logtail: read %s: %w", path, err)
	}

	return Result{Log: buf[:n], FSize: fsize}, nil
}

// Package jsonl reads line-delimited JSON transcripts.
//
// LineReader splits an io.Reader into lines without ever holding more than one
// line (bounded by a maximum size) in memory. Decoder builds on it: each line is
// decoded as exactly one JSON value, and malformed or oversized lines are
// skipped instead of aborting the stream. Transcripts are living files that may
// be read mid-write, so a single corrupt line must never stop a scan.
package jsonl

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"iter"
)

const (
	// DefaultMaxLineSize bounds a single line. Longer lines are skipped.
	DefaultMaxLineSize = 10 * 1024 * 1024 // 10MB

	readBufferSize = 64 * 1024
)

// LineReader yields lines from an underlying reader with "\n" or "\r\n"
// terminators stripped. A line that arrives across several reads is
// reassembled before it is returned.
type LineReader struct {
	r       *bufio.Reader
	maxSize int

	line     []byte
	size     int
	overlong bool
	lineNo   int
	tail     [2]byte

	err  error
	done bool
}

// NewLineReader creates a LineReader. maxSize <= 0 selects DefaultMaxLineSize.
func NewLineReader(r io.Reader, maxSize int) *LineReader {
	if maxSize <= 0 {
		maxSize = DefaultMaxLineSize
	}
	bufSize := readBufferSize
	if maxSize < bufSize {
		bufSize = max(maxSize, 16)
	}
	return &LineReader{
		r:       bufio.NewReaderSize(r, bufSize),
		maxSize: maxSize,
	}
}

// Next advances to the next line. It returns false at end of input or when the
// underlying reader fails; Err distinguishes the two.
func (lr *LineReader) Next() bool {
	if lr.done {
		return false
	}

	lr.line = lr.line[:0]
	lr.size = 0
	lr.overlong = false
	lr.tail = [2]byte{}
	read := false

	for {
		chunk, err := lr.r.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
			lr.size += len(chunk)
			lr.remember(chunk)
			if !lr.overlong {
				lr.line = append(lr.line, chunk...)
				// Allow room for a trailing "\r\n" before declaring overflow.
				if len(lr.line) > lr.maxSize+2 {
					lr.overlong = true
					lr.line = lr.line[:0]
				}
			}
		}

		switch {
		case err == nil:
			return lr.finish(true)
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			lr.done = true
			if !read {
				return false
			}
			return lr.finish(false)
		default:
			lr.err = err
			lr.done = true
			return false
		}
	}
}

func (lr *LineReader) remember(chunk []byte) {
	if len(chunk) >= 2 {
		copy(lr.tail[:], chunk[len(chunk)-2:])
		return
	}
	lr.tail[0], lr.tail[1] = lr.tail[1], chunk[0]
}

func (lr *LineReader) finish(terminated bool) bool {
	lr.lineNo++
	if terminated {
		lr.size--
		if lr.size > 0 && lr.tail[0] == '\r' {
			lr.size--
		}
	}
	if !lr.overlong {
		lr.line = bytes.TrimSuffix(lr.line, []byte("\n"))
		lr.line = bytes.TrimSuffix(lr.line, []byte("\r"))
		if len(lr.line) > lr.maxSize {
			lr.overlong = true
			lr.line = lr.line[:0]
		}
	}
	return true
}

// Line returns the current line. The slice is reused by the next call to Next.
// It is empty for overlong lines.
func (lr *LineReader) Line() []byte { return lr.line }

// Overlong reports whether the current line exceeded the maximum size.
func (lr *LineReader) Overlong() bool { return lr.overlong }

// Size returns the length in bytes of the current line, even when overlong.
func (lr *LineReader) Size() int { return lr.size }

// LineNumber returns the 1-based number of the current line.
func (lr *LineReader) LineNumber() int { return lr.lineNo }

// Err returns the first non-EOF error from the underlying reader.
func (lr *LineReader) Err() error { return lr.err }

// Lines returns an iterator over the remaining lines. Overlong lines are
// yielded as empty slices. Stopping early leaves the reader positioned after
// the last yielded line.
func (lr *LineReader) Lines() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for lr.Next() {
			if !yield(lr.Line()) {
				return
			}
		}
	}
}

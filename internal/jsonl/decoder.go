package jsonl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
)

// Record is one decoded JSON value. Objects decode to map[string]any and
// numbers to json.Number.
type Record = any

// DiagKind identifies why a line was skipped.
type DiagKind int

const (
	DiagDecode DiagKind = iota
	DiagOverlong
)

func (k DiagKind) String() string {
	switch k {
	case DiagDecode:
		return "decode"
	case DiagOverlong:
		return "overlong"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Diagnostic describes a skipped line. It is advisory only.
type Diagnostic struct {
	Kind DiagKind
	Line int
	Size int
	Err  error
}

func (d Diagnostic) Error() string {
	switch d.Kind {
	case DiagOverlong:
		return fmt.Sprintf("line %d: %d bytes exceeds maximum line size", d.Line, d.Size)
	default:
		return fmt.Sprintf("line %d: failed to parse JSON: %v", d.Line, d.Err)
	}
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Stats counts what happened to each line read by a Decoder.
type Stats struct {
	Lines        int
	Empty        int
	Overlong     int
	DecodeErrors int
	Filtered     int
	Yielded      int
}

// Skipped returns the number of non-empty lines that produced no record.
func (s Stats) Skipped() int {
	return s.Overlong + s.DecodeErrors + s.Filtered
}

type options struct {
	ctx         context.Context
	maxLineSize int
	onDiag      func(Diagnostic)
	filter      func(Record) bool
	transform   func(Record) Record
}

// Option configures a Decoder.
type Option func(*options)

// WithContext stops the decoder once ctx is done.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// WithMaxLineSize sets the per-line bound. Values <= 0 select DefaultMaxLineSize.
func WithMaxLineSize(n int) Option {
	return func(o *options) { o.maxLineSize = n }
}

// WithDiagnostics reports skipped lines to fn. fn must not block.
func WithDiagnostics(fn func(Diagnostic)) Option {
	return func(o *options) { o.onDiag = fn }
}

// WithFilter drops records for which keep returns false.
func WithFilter(keep func(Record) bool) Option {
	return func(o *options) { o.filter = keep }
}

// WithTransform maps each kept record before it is yielded.
func WithTransform(fn func(Record) Record) Option {
	return func(o *options) { o.transform = fn }
}

// DiagnosticChannel adapts ch for WithDiagnostics. Diagnostics are dropped
// when ch is full so the decoder never waits on a slow consumer.
func DiagnosticChannel(ch chan<- Diagnostic) func(Diagnostic) {
	return func(d Diagnostic) {
		select {
		case ch <- d:
		default:
		}
	}
}

// Decoder decodes one JSON value per line.
type Decoder struct {
	lines *LineReader
	opts  options

	rec   Record
	stats Stats
	err   error
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	o := options{ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Decoder{
		lines: NewLineReader(r, o.maxLineSize),
		opts:  o,
	}
}

// Next advances to the next record that decodes, passes the filter, and has
// been transformed. It returns false at end of input, on I/O failure, or when
// the context is done.
func (d *Decoder) Next() bool {
	for {
		if err := d.opts.ctx.Err(); err != nil {
			d.err = err
			return false
		}
		if !d.lines.Next() {
			d.err = d.lines.Err()
			return false
		}
		d.stats.Lines++

		if d.lines.Overlong() {
			d.stats.Overlong++
			d.report(Diagnostic{Kind: DiagOverlong, Line: d.lines.LineNumber(), Size: d.lines.Size()})
			continue
		}

		line := bytes.TrimSpace(d.lines.Line())
		if len(line) == 0 {
			d.stats.Empty++
			continue
		}

		rec, err := decodeValue(line)
		if err != nil {
			d.stats.DecodeErrors++
			d.report(Diagnostic{Kind: DiagDecode, Line: d.lines.LineNumber(), Size: len(line), Err: err})
			continue
		}

		if d.opts.filter != nil && !d.opts.filter(rec) {
			d.stats.Filtered++
			continue
		}
		if d.opts.transform != nil {
			rec = d.opts.transform(rec)
		}

		d.rec = rec
		d.stats.Yielded++
		return true
	}
}

func (d *Decoder) report(diag Diagnostic) {
	if d.opts.onDiag != nil {
		d.opts.onDiag(diag)
	}
}

// Record returns the current record.
func (d *Decoder) Record() Record { return d.rec }

// Stats returns the line counters so far.
func (d *Decoder) Stats() Stats { return d.stats }

// Err returns the I/O or context error that ended decoding, if any.
// Per-line problems are never returned here.
func (d *Decoder) Err() error { return d.err }

// Records returns an iterator over the remaining records.
func (d *Decoder) Records() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for d.Next() {
			if !yield(d.Record()) {
				return
			}
		}
	}
}

var errTrailingData = errors.New("unexpected data after JSON value")

// decodeValue strictly decodes exactly one JSON value.
func decodeValue(line []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return v, nil
}

// FileDecoder is a Decoder over an open file.
type FileDecoder struct {
	*Decoder
	f *os.File
}

// Open opens path for decoding. Callers must Close the returned decoder.
func Open(path string, opts ...Option) (*FileDecoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileDecoder{Decoder: NewDecoder(f, opts...), f: f}, nil
}

// Close releases the underlying file.
func (fd *FileDecoder) Close() error {
	if fd == nil || fd.f == nil {
		return nil
	}
	return fd.f.Close()
}

// Path returns the file name passed to Open.
func (fd *FileDecoder) Path() string {
	if fd == nil || fd.f == nil {
		return ""
	}
	return fd.f.Name()
}

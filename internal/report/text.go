// Package report renders normalized records into human-readable artifacts:
// a plain text report and a spreadsheet.
package report

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/asp-search/internal/model"
)

// TimeLayout formats timestamps in reports.
const TimeLayout = "2006-01-02 15:04:05"

// SinkError means a file sink could not be opened or written; the sink is
// disabled for the rest of the run.
type SinkError struct {
	Sink model.SinkKind
	Path string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s sink %s: %v", e.Sink, e.Path, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// FormatBlock renders one record as a report block: a header line, one
// "field: value" line per present field in schema order, and a blank line.
func FormatBlock(rec model.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- Data for %s: %s ---\n", rec.Kind, rec.DisplayID())
	for _, f := range model.Fields() {
		if v, ok := rec.Get(f); ok {
			fmt.Fprintf(&b, "%s: %s\n", f, v)
		}
	}
	b.WriteString("\n")
	return b.String()
}

// FormatSummary renders the trailing run summary block.
func FormatSummary(s *model.RunSummary) string {
	var b strings.Builder
	b.WriteString("--- Run Summary ---\n")
	fmt.Fprintf(&b, "Start time: %s\n", s.StartedAt.Format(TimeLayout))
	fmt.Fprintf(&b, "End time: %s\n", s.EndedAt.Format(TimeLayout))
	fmt.Fprintf(&b, "Elapsed: %s\n", s.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, "Lookup kind: %s\n", s.Kind)
	fmt.Fprintf(&b, "Keys processed: %d\n", s.Total)
	fmt.Fprintf(&b, "Succeeded: %d\n", s.Succeeded)
	fmt.Fprintf(&b, "Failed: %d\n", s.Failed)
	if s.StoreWriteErrors > 0 {
		fmt.Fprintf(&b, "Store write errors: %d\n", s.StoreWriteErrors)
	}
	return b.String()
}

// TextWriter appends report blocks to a UTF-8 text file.
type TextWriter struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// NewTextWriter creates path and writes the report preamble.
func NewTextWriter(path string, generatedAt time.Time) (*TextWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &SinkError{Sink: model.SinkText, Path: path, Err: eris.Wrap(err, "report: create text file")}
	}
	tw := &TextWriter{path: path, f: f, w: bufio.NewWriter(f)}
	if _, err := fmt.Fprintf(tw.w, "%s %s results\nGenerated on %s\n\n",
		model.Application, model.Version, generatedAt.Format(TimeLayout)); err != nil {
		f.Close() //nolint:errcheck
		return nil, tw.fail(err, "write preamble")
	}
	return tw, nil
}

func (t *TextWriter) fail(err error, action string) error {
	return &SinkError{Sink: model.SinkText, Path: t.path, Err: eris.Wrap(err, "report: "+action)}
}

// Path returns the report file location.
func (t *TextWriter) Path() string { return t.path }

func (t *TextWriter) WriteRecord(rec model.Record) error {
	if _, err := t.w.WriteString(FormatBlock(rec)); err != nil {
		return t.fail(err, "write record")
	}
	return nil
}

func (t *TextWriter) WriteSummary(s *model.RunSummary) error {
	if _, err := t.w.WriteString(FormatSummary(s)); err != nil {
		return t.fail(err, "write summary")
	}
	return nil
}

// Close flushes buffered output and closes the file.
func (t *TextWriter) Close() error {
	flushErr := t.w.Flush()
	closeErr := t.f.Close()
	if flushErr != nil {
		return t.fail(flushErr, "flush")
	}
	if closeErr != nil {
		return t.fail(closeErr, "close")
	}
	return nil
}

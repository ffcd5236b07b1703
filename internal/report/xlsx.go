package report

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/asp-search/internal/model"
)

// Sheet names in the spreadsheet report.
const (
	RecordsSheet = "Records"
	RunSheet     = "Run"
)

// XLSXWriter collects records into a workbook and saves it on Close.
type XLSXWriter struct {
	path    string
	file    *xlsx.File
	records *xlsx.Sheet
	summary *model.RunSummary
}

// NewXLSXWriter prepares a workbook whose Records sheet starts with the
// schema columns as a header row.
func NewXLSXWriter(path string) (*XLSXWriter, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(RecordsSheet)
	if err != nil {
		return nil, &SinkError{Sink: model.SinkXLSX, Path: path, Err: eris.Wrap(err, "report: add records sheet")}
	}
	addRow(sheet, model.ColumnNames()...)
	return &XLSXWriter{path: path, file: f, records: sheet}, nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// Path returns the workbook location.
func (x *XLSXWriter) Path() string { return x.path }

// WriteRecord appends one row in schema order; absent fields are left blank.
func (x *XLSXWriter) WriteRecord(rec model.Record) error {
	fields := model.Fields()
	values := make([]string, len(fields))
	for i, f := range fields {
		values[i] = rec.Value(f)
	}
	addRow(x.records, values...)
	return nil
}

func (x *XLSXWriter) WriteSummary(s *model.RunSummary) error {
	x.summary = s
	return nil
}

// Close writes the Run sheet, when a summary was given, and saves the file.
func (x *XLSXWriter) Close() error {
	if x.summary != nil {
		sheet, err := x.file.AddSheet(RunSheet)
		if err != nil {
			return &SinkError{Sink: model.SinkXLSX, Path: x.path, Err: eris.Wrap(err, "report: add run sheet")}
		}
		for _, kv := range summaryRows(x.summary) {
			addRow(sheet, kv[0], kv[1])
		}
	}
	if err := x.file.Save(x.path); err != nil {
		return &SinkError{Sink: model.SinkXLSX, Path: x.path, Err: eris.Wrap(err, "report: save workbook")}
	}
	return nil
}

func summaryRows(s *model.RunSummary) [][2]string {
	return [][2]string{
		{"application", model.Application},
		{"version", model.Version},
		{"run_id", s.RunID},
		{"lookup_kind", string(s.Kind)},
		{"input", s.Input},
		{"start_time", s.StartedAt.Format(TimeLayout)},
		{"end_time", s.EndedAt.Format(TimeLayout)},
		{"duration", s.Duration().Round(time.Millisecond).String()},
		{"total", strconv.Itoa(s.Total)},
		{"succeeded", strconv.Itoa(s.Succeeded)},
		{"failed", strconv.Itoa(s.Failed)},
	}
}

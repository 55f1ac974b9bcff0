// Package index writes the per-sample metadata table. The writer exposes
// typed cells so row-building code states what each column means; encoding
// is plain CSV underneath.
package index

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Schema is the fixed column list of the sample index.
var Schema = []string{
	"ComputerName",
	"VolumeID",
	"ParentFRN",
	"FRN",
	"FullName",
	"SampleName",
	"SizeInBytes",
	"MD5",
	"SHA1",
	"FindMatch",
	"ContentType",
	"SampleCollectionDate",
	"CreationDate",
	"LastModificationDate",
	"LastAccessDate",
	"LastAttrChangeDate",
	"FileNameCreationDate",
	"FileNameLastModificationDate",
	"FileNameLastAccessDate",
	"FileNameLastAttrModificationDate",
	"AttributeType",
	"AttributeName",
	"AttributeInstanceID",
	"SnapshotID",
	"SHA256",
	"SSDeep",
	"TLSH",
	"YaraRules",
}

// Writer is the typed table-writer contract. Cell calls accumulate the
// current row; WriteEndOfLine seals it.
type Writer interface {
	WriteString(s string)
	WriteInteger(v uint64)
	WriteFileSize(v int64)
	WriteBytes(b []byte)
	WriteFileTime(t time.Time)
	WriteGUID(id uuid.UUID)
	WriteExactFlags(v uint32, defs []FlagDefinition)
	WriteNothing()
	WriteEndOfLine() error
	Flush() error
}

// CSVWriter implements Writer over an io.Writer with encoding/csv.
type CSVWriter struct {
	csvw   *csv.Writer
	schema []string
	row    []string
	rows   int
	err    error
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{csvw: csv.NewWriter(w)}
}

// SetSchema records the column list and emits it as the header row.
func (w *CSVWriter) SetSchema(columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("csv writer: empty schema")
	}
	w.schema = append([]string(nil), columns...)
	if err := w.csvw.Write(w.schema); err != nil {
		return fmt.Errorf("csv writer: header: %w", err)
	}
	return nil
}

func (w *CSVWriter) cell(s string) {
	w.row = append(w.row, s)
}

func (w *CSVWriter) WriteString(s string) { w.cell(s) }

func (w *CSVWriter) WriteInteger(v uint64) { w.cell(strconv.FormatUint(v, 10)) }

func (w *CSVWriter) WriteFileSize(v int64) { w.cell(strconv.FormatInt(v, 10)) }

// WriteBytes renders a binary digest as fixed-width hex; an empty digest
// renders as an empty cell.
func (w *CSVWriter) WriteBytes(b []byte) {
	if len(b) == 0 {
		w.cell("")
		return
	}
	w.cell(hex.EncodeToString(b))
}

// WriteFileTime renders a 64-bit wall time in the host's native epoch; the
// zero time renders as an empty cell.
func (w *CSVWriter) WriteFileTime(t time.Time) {
	if t.IsZero() {
		w.cell("")
		return
	}
	w.cell(strconv.FormatInt(t.Unix(), 10))
}

func (w *CSVWriter) WriteGUID(id uuid.UUID) { w.cell(id.String()) }

func (w *CSVWriter) WriteExactFlags(v uint32, defs []FlagDefinition) {
	w.cell(ExactFlagToString(v, defs))
}

func (w *CSVWriter) WriteNothing() { w.cell("") }

// WriteEndOfLine seals the current row. A row with a cell count different
// from the schema is a programming error and is rejected.
func (w *CSVWriter) WriteEndOfLine() error {
	row := w.row
	w.row = nil
	if len(w.schema) > 0 && len(row) != len(w.schema) {
		w.err = fmt.Errorf("csv writer: row has %d cells, schema has %d", len(row), len(w.schema))
		return w.err
	}
	if err := w.csvw.Write(row); err != nil {
		w.err = fmt.Errorf("csv writer: %w", err)
		return w.err
	}
	w.rows++
	return nil
}

// Rows reports the number of sealed data rows.
func (w *CSVWriter) Rows() int { return w.rows }

func (w *CSVWriter) Flush() error {
	w.csvw.Flush()
	if err := w.csvw.Error(); err != nil {
		return fmt.Errorf("csv writer: %w", err)
	}
	return w.err
}

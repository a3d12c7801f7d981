package core

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// utf8BOM is written at the start of exported files so spreadsheet tools
// detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewCSVReader returns a lenient CSV reader over r. A leading UTF-8 BOM is
// dropped and invalid UTF-8 is replaced with U+FFFD before parsing. Rows may
// have any number of fields and stray quotes are tolerated.
func NewCSVReader(r io.Reader) *csv.Reader {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// NewCSVWriter writes the UTF-8 BOM to w and returns a CRLF CSV writer over
// it. The caller must Flush.
func NewCSVWriter(w io.Writer) (*csv.Writer, error) {
	if _, err := w.Write(utf8BOM); err != nil {
		return nil, err
	}
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	return cw, nil
}

package ingest

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/baseline-cli/internal/model"
)

// CSVSheetName is the sheet name given to the single grid of a CSV file.
const CSVSheetName = "csv"

// ReadWorkbook reads every sheet of an xlsx file as a string grid. Date
// cells are rendered as ISO dates, with the time kept when it is not midnight.
func ReadWorkbook(path string) ([]model.RawSheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open workbook %s", path)
	}

	sheets := make([]model.RawSheet, 0, len(f.Sheets))
	for _, sh := range f.Sheets {
		grid := make([][]string, 0, len(sh.Rows))
		for _, row := range sh.Rows {
			if row == nil {
				grid = append(grid, nil)
				continue
			}
			grid = append(grid, rowToStrings(row, f.Date1904))
		}
		sheets = append(sheets, model.RawSheet{Name: sh.Name, Cells: grid})
	}
	return sheets, nil
}

func rowToStrings(row *xlsx.Row, date1904 bool) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cellString(cell, date1904)
	}
	return cells
}

func cellString(cell *xlsx.Cell, date1904 bool) string {
	if cell.IsTime() {
		if t, err := cell.GetTime(date1904); err == nil {
			if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
				return t.Format("2006-01-02")
			}
			return t.Format(time.DateTime)
		}
	}
	return strings.TrimSpace(cell.String())
}

// ReadCSV reads a CSV file as a single sheet. UTF-8 and UTF-16 byte order
// marks are honoured; input that is not valid UTF-8 is decoded as
// Windows-1252, which is what spreadsheet exports on Windows produce.
func ReadCSV(path string) ([]model.RawSheet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read csv %s", path)
	}

	r, err := decodeText(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: decode csv %s", path)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var grid [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: parse csv %s", path)
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		grid = append(grid, rec)
	}
	return []model.RawSheet{{Name: CSVSheetName, Cells: grid}}, nil
}

func decodeText(raw []byte) (io.Reader, error) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		return bytes.NewReader(raw[3:]), nil
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}), bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, raw)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(out), nil
	case !utf8.Valid(raw):
		return transform.NewReader(bytes.NewReader(raw), charmap.Windows1252.NewDecoder()), nil
	default:
		return bytes.NewReader(raw), nil
	}
}

// Package ingest reads vendor spreadsheets into raw sheets and picks out the
// tables that look like transaction detail.
package ingest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/baseline-cli/internal/model"
)

// Options controls which sheets count as transaction tables.
type Options struct {
	MinDataRows   int `yaml:"min_data_rows" mapstructure:"min_data_rows"`
	PreviewRows   int `yaml:"preview_rows" mapstructure:"preview_rows"`
	MinSheetScore int `yaml:"min_sheet_score" mapstructure:"min_sheet_score"`
}

// DefaultOptions returns the stock sheet filters.
func DefaultOptions() Options {
	return Options{MinDataRows: 5, PreviewRows: 100, MinSheetScore: 3}
}

// Table is a transaction table found on one sheet.
type Table struct {
	Sheet     string `json:"sheet"`
	HeaderRow int    `json:"header_row"`
	model.RawTable
}

// SheetDiagnostic explains why a sheet was or was not used.
type SheetDiagnostic struct {
	Sheet     string `json:"sheet"`
	Score     int    `json:"score"`
	HeaderRow int    `json:"header_row"`
	DataRows  int    `json:"data_rows"`
	Used      bool   `json:"used"`
	Reason    string `json:"reason,omitempty"`
}

// File is everything read from one input file.
type File struct {
	Path        string            `json:"path"`
	Vendor      string            `json:"vendor"`
	Sheets      []model.RawSheet  `json:"-"`
	Tables      []Table           `json:"-"`
	Diagnostics []SheetDiagnostic `json:"diagnostics"`
}

// Load reads path and classifies its sheets. All sheets are kept raw for
// invoice total recovery; only those that pass the filters become Tables,
// highest score first. An error means the file itself could not be read.
func Load(path string, opts Options) (*File, error) {
	def := DefaultOptions()
	if opts.MinDataRows <= 0 {
		opts.MinDataRows = def.MinDataRows
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = def.PreviewRows
	}

	var (
		sheets []model.RawSheet
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		sheets, err = ReadWorkbook(path)
	case ".csv", ".txt":
		sheets, err = ReadCSV(path)
	default:
		return nil, eris.Errorf("ingest: unsupported file type %s", path)
	}
	if err != nil {
		return nil, err
	}

	f := &File{Path: path, Vendor: VendorFromFilename(path), Sheets: sheets}
	type scored struct {
		table Table
		score int
	}
	var found []scored

	for _, sh := range sheets {
		preview := sh.Cells
		if len(preview) > opts.PreviewRows {
			preview = preview[:opts.PreviewRows]
		}
		d := SheetDiagnostic{Sheet: sh.Name, Score: ScoreSheet(preview), HeaderRow: -1}

		header, ok := DetectHeaderRow(preview)
		switch {
		case d.Score < opts.MinSheetScore:
			d.Reason = "low transaction score"
		case !ok:
			d.Reason = "no header row"
		default:
			d.HeaderRow = header
			t := ExtractTable(sh.Cells, header)
			d.DataRows = len(t.Rows)
			if d.DataRows < opts.MinDataRows {
				d.Reason = "too few data rows"
				break
			}
			d.Used = true
			found = append(found, scored{Table{Sheet: sh.Name, HeaderRow: header, RawTable: t}, d.Score})
		}
		f.Diagnostics = append(f.Diagnostics, d)
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].score > found[j].score })
	for _, s := range found {
		f.Tables = append(f.Tables, s.table)
	}

	zap.L().Debug("ingest: file loaded",
		zap.String("path", path),
		zap.String("vendor", f.Vendor),
		zap.Int("sheets", len(sheets)),
		zap.Int("tables", len(f.Tables)),
	)
	return f, nil
}

// VendorFromFilename takes the first word of the file name, cut at a space
// or hyphen, with underscores removed.
func VendorFromFilename(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name, _, _ = strings.Cut(name, " ")
	name, _, _ = strings.Cut(name, "-")
	name = strings.ReplaceAll(name, "_", "")
	if name == "" {
		return "unknown"
	}
	return name
}

// Discover lists the spreadsheet files under dir, sorted, skipping Office
// lock files.
func Discover(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
			return nil
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".xlsx", ".xlsm", ".csv":
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: scan %s", dir)
	}
	sort.Strings(out)
	return out, nil
}

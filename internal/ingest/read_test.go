package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

// writeWorkbook saves one sheet per entry of sheets, in order.
func writeWorkbook(t *testing.T, path string, names []string, sheets map[string][][]string) {
	t.Helper()

	f := xlsx.NewFile()
	for _, name := range names {
		sh, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, row := range sheets[name] {
			r := sh.AddRow()
			for _, v := range row {
				r.AddCell().SetString(v)
			}
		}
	}
	require.NoError(t, f.Save(path))
}

func TestReadWorkbook(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "acme.xlsx")
	writeWorkbook(t, path, []string{"Detail", "Invoice"}, map[string][][]string{
		"Detail":  {{"Date", "Language"}, {"2024-03-01", " Spanish "}},
		"Invoice": {{"Total New Charges", "$120.00"}},
	})

	sheets, err := ReadWorkbook(path)
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	assert.Equal(t, "Detail", sheets[0].Name)
	assert.Equal(t, []string{"2024-03-01", "Spanish"}, sheets[0].Cells[1])
	assert.Equal(t, "Invoice", sheets[1].Name)
	assert.Equal(t, "$120.00", sheets[1].Cells[0][1])
}

func TestReadWorkbook_DateCells(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dates.xlsx")
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Detail")
	require.NoError(t, err)
	r := sh.AddRow()
	r.AddCell().SetDate(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, f.Save(path))

	sheets, err := ReadWorkbook(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", sheets[0].Cells[0][0])
}

func TestReadWorkbook_Missing(t *testing.T) {
	t.Parallel()

	_, err := ReadWorkbook(filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"utf8", []byte("Language,Minutes\nFrançais,10\n"), "Français"},
		{"utf8 bom", append([]byte{0xEF, 0xBB, 0xBF}, []byte("Language,Minutes\nSpanish,10\n")...), "Spanish"},
		{"windows-1252", []byte("Language,Minutes\nFran\xe7ais,10\n"), "Français"},
		{"utf16 le", []byte{
			0xFF, 0xFE,
			'L', 0, ',', 0, 'M', 0, '\n', 0,
			'E', 0, 'w', 0, 'e', 0, ',', 0, '3', 0, '\n', 0,
		}, "Ewe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "in.csv")
			require.NoError(t, os.WriteFile(path, tt.data, 0o644))

			sheets, err := ReadCSV(path)
			require.NoError(t, err)
			require.Len(t, sheets, 1)
			assert.Equal(t, CSVSheetName, sheets[0].Name)
			require.Len(t, sheets[0].Cells, 2)
			assert.Equal(t, tt.want, sheets[0].Cells[1][0])
		})
	}
}

func TestReadCSV_RaggedRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ragged.csv")
	require.NoError(t, os.WriteFile(path, []byte("Report for March\nDate,Language,Minutes\n 2024-03-01 ,Spanish,10\n"), 0o644))

	sheets, err := ReadCSV(path)
	require.NoError(t, err)
	cells := sheets[0].Cells
	assert.Len(t, cells[0], 1)
	assert.Equal(t, []string{"2024-03-01", "Spanish", "10"}, cells[2])
}

package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Workbook(t *testing.T) {
	t.Parallel()

	detail := [][]string{{"Acme monthly detail"}}
	detail = append(detail, transactionGrid(40)...)
	short := transactionGrid(3)

	path := filepath.Join(t.TempDir(), "Acme-March 2024.xlsx")
	writeWorkbook(t, path, []string{"Short", "Invoice", "Detail"}, map[string][][]string{
		"Short":   short,
		"Invoice": {{"Invoice Summary"}, {"Total New Charges", "$1,000.00"}},
		"Detail":  detail,
	})

	f, err := Load(path, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "Acme", f.Vendor)
	require.Len(t, f.Sheets, 3)
	require.Len(t, f.Tables, 1)
	assert.Equal(t, "Detail", f.Tables[0].Sheet)
	assert.Equal(t, 1, f.Tables[0].HeaderRow)
	assert.Len(t, f.Tables[0].Rows, 40)

	require.Len(t, f.Diagnostics, 3)
	assert.Equal(t, "too few data rows", f.Diagnostics[0].Reason)
	assert.Equal(t, "low transaction score", f.Diagnostics[1].Reason)
	assert.True(t, f.Diagnostics[2].Used)
}

func TestLoad_TooFewRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tiny.csv")
	var body string
	for _, row := range transactionGrid(3) {
		body += fmt.Sprintf("%s,%s,%s,%s,%s\n", row[0], row[1], row[2], row[3], row[4])
	}
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	f, err := Load(path, Options{MinSheetScore: -10})
	require.NoError(t, err)
	assert.Empty(t, f.Tables)
	require.Len(t, f.Diagnostics, 1)
	assert.Equal(t, "too few data rows", f.Diagnostics[0].Reason)
	assert.Equal(t, 3, f.Diagnostics[0].DataRows)
}

func TestLoad_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := Load("invoice.pdf", DefaultOptions())
	assert.Error(t, err)
}

func TestVendorFromFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"/data/Acme March 2024.xlsx", "Acme"},
		{"Lingua-Detail.csv", "Lingua"},
		{"Big_Voice_Co-2024.xlsx", "BigVoiceCo"},
		{"dir/plain.xlsx", "plain"},
		{"-x.csv", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, VendorFromFilename(tt.in))
		})
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sub := filepath.Join(dir, "march")
	require.NoError(t, os.Mkdir(sub, 0o755))
	for _, name := range []string{
		filepath.Join(dir, "b.xlsx"),
		filepath.Join(dir, "~$b.xlsx"),
		filepath.Join(dir, "notes.txt"),
		filepath.Join(sub, "a.CSV"),
	} {
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o644))
	}

	files, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.xlsx"), filepath.Join(sub, "a.CSV")}, files)
}

func TestDiscover_MissingDir(t *testing.T) {
	t.Parallel()

	_, err := Discover(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

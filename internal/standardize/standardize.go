// Package standardize turns mapped vendor tables into canonical records.
package standardize

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/baseline-cli/internal/infer"
	"github.com/sells-group/baseline-cli/internal/mapping"
	"github.com/sells-group/baseline-cli/internal/model"
)

// Stats counts what happened to the rows of one table.
type Stats struct {
	InputRows     int `json:"input_rows"`
	Records       int `json:"records"`
	Dropped       int `json:"dropped"`
	BadDate       int `json:"bad_date"`
	MissingLang   int `json:"missing_language"`
	TimestampRows int `json:"timestamp_rows"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.InputRows += o.InputRows
	s.Records += o.Records
	s.Dropped += o.Dropped
	s.BadDate += o.BadDate
	s.MissingLang += o.MissingLang
	s.TimestampRows += o.TimestampRows
}

// Standardize converts every row of table into a CanonicalRecord. The mapping
// must carry date and language, otherwise nothing is produced. Rows whose
// date does not parse or whose language is blank are dropped and counted.
// Unparseable or negative amounts become 0.
func Standardize(table model.RawTable, m model.FieldMapping, sourceFile, vendor string) ([]model.CanonicalRecord, Stats) {
	stats := Stats{InputRows: len(table.Rows)}
	if len(m.Missing(model.RecordFields()...)) > 0 {
		stats.Dropped = stats.InputRows
		return nil, stats
	}

	idx := func(f model.CanonicalField) int {
		if !m.Has(f) {
			return -1
		}
		return table.ColumnIndex(m.Get(f))
	}
	dateIdx := idx(model.FieldDate)
	langIdx := idx(model.FieldLanguage)
	minIdx := idx(model.FieldMinutes)
	chargeIdx := idx(model.FieldCharge)
	modIdx := idx(model.FieldModality)
	startIdx, endIdx := timestampColumns(table.Columns, m)

	records := make([]model.CanonicalRecord, 0, len(table.Rows))
	for i, row := range table.Rows {
		date, ok := infer.ParseDate(cell(row, dateIdx))
		if !ok {
			stats.BadDate++
			continue
		}
		lang := strings.TrimSpace(cell(row, langIdx))
		if infer.IsNull(lang) {
			stats.MissingLang++
			continue
		}

		minutes, _ := infer.ParseAmount(cell(row, minIdx))
		charge, _ := infer.ParseAmount(cell(row, chargeIdx))
		modality := strings.TrimSpace(cell(row, modIdx))
		if infer.IsNull(modality) {
			modality = model.ModalityUnknown
		}

		rec := model.NewRecord(sourceFile, vendor, date, lang, modality, minutes, charge, table.Row(i))
		if startIdx >= 0 && endIdx >= 0 {
			rec.StartTime = parseStamp(cell(row, startIdx), date)
			rec.EndTime = parseStamp(cell(row, endIdx), date)
			if rec.StartTime != nil || rec.EndTime != nil {
				stats.TimestampRows++
			}
		}
		records = append(records, rec)
	}

	stats.Records = len(records)
	stats.Dropped = stats.BadDate + stats.MissingLang
	if stats.Dropped > 0 {
		zap.L().Debug("standardize: rows dropped",
			zap.String("source", sourceFile),
			zap.Int("bad_date", stats.BadDate),
			zap.Int("missing_language", stats.MissingLang),
		)
	}
	return records, stats
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// timestampColumns finds an unmapped start/end column pair such as
// "Start Time" and "End Time".
func timestampColumns(columns []string, m model.FieldMapping) (int, int) {
	start, end := -1, -1
	for i, c := range columns {
		if m.Uses(c) {
			continue
		}
		h := mapping.NormalizeHeader(c)
		if !strings.Contains(h, "time") {
			continue
		}
		switch {
		case start < 0 && strings.Contains(h, "start"):
			start = i
		case end < 0 && (strings.Contains(h, "end") || strings.Contains(h, "stop")):
			end = i
		}
	}
	return start, end
}

var clockLayouts = []string{"15:04:05", "15:04", "3:04:05 PM", "3:04 PM", "3:04PM"}

// parseStamp reads a full timestamp, or a bare clock time placed on day.
func parseStamp(v string, day time.Time) *time.Time {
	s := strings.TrimSpace(v)
	if infer.IsNull(s) {
		return nil
	}
	if t, ok := infer.ParseDateTime(s); ok {
		return &t
	}
	for _, layout := range clockLayouts {
		if c, err := time.Parse(layout, strings.ToUpper(s)); err == nil {
			t := time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.UTC)
			return &t
		}
	}
	return nil
}

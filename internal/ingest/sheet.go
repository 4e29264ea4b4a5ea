package ingest

import (
	"fmt"
	"strings"

	"github.com/sells-group/baseline-cli/internal/model"
)

var (
	transactionKeywords = []string{
		"language", "date", "minutes", "duration", "session",
		"call", "charge", "amount", "interpreter", "service",
	}
	summaryPhrases = []string{
		"total new charges", "bill to:", "remit to:", "thank you for",
		"invoice summary", "payment due",
	}
	headerKeywords = []string{
		"language", "date", "charge", "amount", "minutes", "duration",
		"service", "interpreter", "session id", "start time", "call date",
		"invoice number", "client id", "description", "quantity",
	}
)

// ScoreSheet rates how likely a preview grid is to hold transaction rows.
// Each transaction keyword found anywhere scores +1 and each invoice or
// summary phrase -2. More than 30 rows adds 2; fewer than 10 subtracts 2.
func ScoreSheet(preview [][]string) int {
	var b strings.Builder
	for _, row := range preview {
		for _, c := range row {
			if c = strings.TrimSpace(c); c != "" {
				b.WriteString(strings.ToLower(c))
				b.WriteByte(' ')
			}
		}
	}
	text := b.String()

	score := 0
	for _, kw := range transactionKeywords {
		if strings.Contains(text, kw) {
			score++
		}
	}
	for _, p := range summaryPhrases {
		if strings.Contains(text, p) {
			score -= 2
		}
	}
	switch rows := len(preview); {
	case rows > 30:
		score += 2
	case rows < 10:
		score -= 2
	}
	return score
}

// DetectHeaderRow returns the index of the row that looks most like a header.
// A row scores one point per cell containing a header keyword, plus one
// when it has more than three non-empty cells. The first row with the
// highest score of at least 2 wins.
func DetectHeaderRow(preview [][]string) (int, bool) {
	best, bestScore := -1, 0
	for i, row := range preview {
		score, filled := 0, 0
		for _, c := range row {
			v := strings.ToLower(strings.TrimSpace(c))
			if v == "" {
				continue
			}
			filled++
			for _, kw := range headerKeywords {
				if strings.Contains(v, kw) {
					score++
					break
				}
			}
		}
		if filled > 3 {
			score++
		}
		if score >= 2 && score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, best >= 0
}

// ExtractTable cuts the grid below headerRow into a table. Blank header
// cells become "Unnamed: N" and repeats get a ".K" suffix so every column
// name is unique. All-empty rows are dropped.
func ExtractTable(cells [][]string, headerRow int) model.RawTable {
	if headerRow < 0 || headerRow >= len(cells) {
		return model.RawTable{}
	}

	header := cells[headerRow]
	width := len(header)
	for _, row := range cells[headerRow+1:] {
		width = max(width, len(row))
	}

	cols := make([]string, width)
	seen := make(map[string]int, width)
	for i := range cols {
		name := ""
		if i < len(header) {
			name = strings.Join(strings.Fields(header[i]), " ")
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n := seen[name]; n > 0 {
			seen[name]++
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			seen[name] = 1
		}
		cols[i] = name
	}

	var rows [][]string
	for _, row := range cells[headerRow+1:] {
		if blankRow(row) {
			continue
		}
		out := make([]string, width)
		copy(out, row)
		rows = append(rows, out)
	}
	return model.RawTable{Columns: cols, Rows: rows}
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

package model

import "time"

// RunStatus represents the state of a batch run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is the persisted audit record of one batch run.
type Run struct {
	ID        string      `json:"id"`
	Inputs    []string    `json:"inputs"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary holds the headline numbers of a finished run.
type RunSummary struct {
	FilesProcessed  int           `json:"files_processed"`
	FilesFailed     int           `json:"files_failed"`
	SheetsMapped    int           `json:"sheets_mapped"`
	SheetsPending   int           `json:"sheets_pending"`
	SheetsSkipped   int           `json:"sheets_skipped"`
	RecordsIn       int           `json:"records_in"`
	RecordsOut      int           `json:"records_out"`
	DroppedRows     int           `json:"dropped_rows"`
	Duplicates      int           `json:"duplicates"`
	Flagged         int           `json:"flagged"`
	Quarantined     int           `json:"quarantined"`
	CalculatedTotal float64       `json:"calculated_total"`
	Reconciliation  OverallStatus `json:"reconciliation"`
	Error           string        `json:"error,omitempty"`
}

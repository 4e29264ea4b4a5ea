package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status RunStatus
		want   string
	}{
		{RunStatusRunning, "running"},
		{RunStatusComplete, "complete"},
		{RunStatusFailed, "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestRun_SummaryOmittedWhileRunning(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Run{ID: "r1", Status: RunStatusRunning})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "summary")

	data, err = json.Marshal(Run{ID: "r1", Summary: &RunSummary{RecordsOut: 3, Reconciliation: OverallAlert}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"records_out":3`)
	assert.Contains(t, string(data), `"reconciliation":"ALERT"`)
}

package api

import (
	"testing"

	"github.com/cloudship/deploy-gateway/internal/models"
)

func TestFilterRuns(t *testing.T) {
	runs := []models.RunSummary{
		{RunID: "5", Lifecycle: models.LifecycleQueued},
		{RunID: "4", Lifecycle: models.LifecycleRunning},
		{RunID: "3", Lifecycle: models.LifecycleCompleted, Conclusion: models.ConclusionSuccess},
		{RunID: "2", Lifecycle: models.LifecycleCompleted, Conclusion: models.ConclusionFailure},
		{RunID: "1", Lifecycle: models.LifecycleCompleted, Conclusion: models.ConclusionCancelled},
	}

	tests := []struct {
		name    string
		status  string
		wantIDs []string
	}{
		{
			name:    "empty status returns everything",
			status:  "",
			wantIDs: []string{"5", "4", "3", "2", "1"},
		},
		{
			name:    "lifecycle match",
			status:  "running",
			wantIDs: []string{"4"},
		},
		{
			name:    "lifecycle matching several runs",
			status:  "completed",
			wantIDs: []string{"3", "2", "1"},
		},
		{
			name:    "conclusion match",
			status:  "failure",
			wantIDs: []string{"2"},
		},
		{
			name:    "no match",
			status:  "nonexistent",
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterRuns(runs, tt.status)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d runs, want %d", len(got), len(tt.wantIDs))
			}
			for i, run := range got {
				if run.RunID != tt.wantIDs[i] {
					t.Errorf("run[%d] = %s, want %s", i, run.RunID, tt.wantIDs[i])
				}
			}
		})
	}
}

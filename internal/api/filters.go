package api

import (
	"github.com/cloudship/deploy-gateway/internal/models"
)

// FilterRuns narrows a run listing to entries matching the given status
// string, which may name either a lifecycle or a conclusion
func FilterRuns(runs []models.RunSummary, status string) []models.RunSummary {
	if status == "" {
		return runs
	}

	filtered := make([]models.RunSummary, 0, len(runs))
	for _, run := range runs {
		if string(run.Lifecycle) == status || string(run.Conclusion) == status {
			filtered = append(filtered, run)
		}
	}
	return filtered
}

package jobs

import (
	"context"
	"fmt"

	"github.com/macrodatos/ingesta/ingesta"
	"github.com/macrodatos/ingesta/ingesta/database/repositories"
)

// Preflight cross-checks the configured jobs against the catalog: every
// active job must target an active master, or its commits will fail at
// run time. Returns the names of jobs without one, in config order.
func Preflight(ctx context.Context, masters repositories.MasterRepository, jobs []ingesta.JobConfig) ([]string, error) {
	active, err := masters.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active masters: %w", err)
	}

	known := make(map[[2]int]bool, len(active))
	for _, m := range active {
		known[[2]int{m.VariableID, m.CountryID}] = true
	}

	var orphaned []string
	for _, job := range jobs {
		if !job.Active {
			continue
		}
		if !known[[2]int{job.VariableID, job.CountryID}] {
			orphaned = append(orphaned, job.Name)
		}
	}
	return orphaned, nil
}

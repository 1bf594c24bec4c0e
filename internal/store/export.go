package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/studydeck/internal/model"
)

// ExportResults groups every stored result by user, users in ID order.
// Results of users that no longer exist are exported under an empty name.
func (s *Store) ExportResults() (model.ResultsExport, error) {
	export := model.ResultsExport{ExportedAt: time.Now().UTC()}

	results, err := s.ListAllResults()
	if err != nil {
		return export, fmt.Errorf("list results: %w", err)
	}

	byUser := make(map[int64]int)
	users, err := s.ListUsers()
	if err != nil {
		return export, fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		byUser[u.ID] = len(export.Results)
		export.Results = append(export.Results, model.UserResults{
			Username:    u.Username,
			DisplayName: u.DisplayName,
		})
	}

	for _, r := range results {
		idx, ok := byUser[r.UserID]
		if !ok {
			idx = len(export.Results)
			byUser[r.UserID] = idx
			export.Results = append(export.Results, model.UserResults{})
		}
		export.Results[idx].Sessions = append(export.Results[idx].Sessions, r)
	}

	// Users without results are left out.
	kept := export.Results[:0]
	for _, ur := range export.Results {
		if len(ur.Sessions) > 0 {
			kept = append(kept, ur)
		}
	}
	export.Results = kept
	return export, nil
}

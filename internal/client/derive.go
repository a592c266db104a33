package client

import (
	"slices"
	"strings"

	"github.com/just-being-aryan/task-manager-app/internal/domain/models"
)

// Visible is the task list as displayed: filtered by priority, completion and
// search term, then sorted by due date. Tasks with equal due dates keep their
// order from the fetched list.
func Visible(s State) []models.Task {
	ts := s.Tasks
	term := strings.ToLower(ts.SearchTerm)

	out := make([]models.Task, 0, len(ts.Items))
	for _, task := range ts.Items {
		if ts.Filters.Priority != nil && task.Priority != *ts.Filters.Priority {
			continue
		}
		if ts.Filters.Completion != nil && task.IsComplete != *ts.Filters.Completion {
			continue
		}
		if term != "" && !matches(task, term) {
			continue
		}
		out = append(out, task)
	}

	slices.SortStableFunc(out, func(a, b models.Task) int {
		if ts.SortOrder == SortDesc {
			return b.DueDate.Compare(a.DueDate)
		}
		return a.DueDate.Compare(b.DueDate)
	})
	return out
}

func matches(task models.Task, term string) bool {
	return strings.Contains(strings.ToLower(task.Title), term) ||
		strings.Contains(strings.ToLower(task.Description), term)
}

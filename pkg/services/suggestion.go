package services

import (
	"context"

	"sqr/pkg/models"
)

// CategorySuggester proposes where an unclassified expense belongs. Proposals are advisory;
// applying one is a separate reclassification by a person.
type CategorySuggester interface {
	// Suggest picks a project out of projects and a category out of categories for expense.
	Suggest(ctx context.Context, expense *models.ExpenseEntry, projects []string, categories []string) (*Suggestion, error)
}

// Suggestion is one proposal for an expense. Project and Category are empty when the
// suggester found no fitting option.
type Suggestion struct {
	ExpenseID  string  `json:"-"`
	Project    string  `json:"project"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Empty reports whether the suggestion proposes nothing.
func (s *Suggestion) Empty() bool {
	return s == nil || (s.Project == "" && s.Category == "")
}

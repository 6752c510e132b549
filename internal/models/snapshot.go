package models

import "github.com/inkbridge/inkbridge/internal/resources"

// ItemView is the read-only projection of an Item for presenters.
type ItemView struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Handle     resources.Handle `json:"handle"`
	Status     ItemStatus       `json:"status"`
	Pending    bool             `json:"pending"`
	Translated bool             `json:"translated"`
}

// Snapshot is an immutable view of the controller state after one transition.
type Snapshot struct {
	Version       uint64     `json:"version"`
	Items         []ItemView `json:"items"`
	IsSubmitting  bool       `json:"isSubmitting"`
	IsDownloading bool       `json:"isDownloading"`
	IsComplete    bool       `json:"isComplete"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
	Warning       string     `json:"warning,omitempty"`
	Language      string     `json:"language"`
	Font          string     `json:"font"`
}

// HasPendingWork reports whether any item still waits for submission.
func (s Snapshot) HasPendingWork() bool {
	for _, it := range s.Items {
		if it.Pending {
			return true
		}
	}
	return false
}

// ViewItems projects batch items into views.
func ViewItems(items []Item) []ItemView {
	views := make([]ItemView, len(items))
	for i, it := range items {
		views[i] = ItemView{
			ID:         it.ID,
			Name:       it.Name,
			Handle:     it.Handle,
			Status:     it.Status,
			Pending:    it.HasPending(),
			Translated: it.Translated,
		}
	}
	return views
}

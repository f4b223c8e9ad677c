package audit

import "time"

// Action identifies what happened to a document.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Entry is one immutable audit record. OldValues and NewValues hold JSON
// snapshots of the document before and after the change; either may be
// empty depending on the action.
type Entry struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Action     Action    `json:"action"`
	OldValues  string    `json:"old_values,omitempty"`
	NewValues  string    `json:"new_values,omitempty"`
	Actor      string    `json:"actor"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListFilter narrows audit queries.
type ListFilter struct {
	DocumentID string
	Action     Action
	Limit      int
	Offset     int
}

// Statistics summarizes the whole trail.
type Statistics struct {
	Total          int            `json:"total"`
	ByAction       map[string]int `json:"by_action"`
	Documents      int            `json:"documents"`
	LastActivityAt *time.Time     `json:"last_activity_at"`
}

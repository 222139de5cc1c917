package model

import "time"

// RunStatus is the outcome of a persisted report run.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one persisted report run.
type Run struct {
	ID        string    `json:"id"`
	AsOf      time.Time `json:"as_of"`
	Source    string    `json:"source"`
	Status    RunStatus `json:"status"`
	Accounts  int       `json:"accounts"`
	Flagged   int       `json:"flagged"`
	Report    *Report   `json:"report,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

package document

import "time"

// State represents the workflow state of a project or phase.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateLate       State = "late"
	StateCompleted  State = "completed"
)

// Phase is one bar of a project's Gantt chart.
type Phase struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	StartDate       *string `json:"startDate"`
	EndDate         *string `json:"endDate"`
	State           State   `json:"state"`
	PercentComplete *float64 `json:"percentComplete"`
	Milestone       bool    `json:"milestone"`
	IncludeHolidays bool    `json:"includeHolidays"`
	Note            string  `json:"note,omitempty"`
}

// Project is an ordered container of phases.
type Project struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Color           string  `json:"color"`
	StartDate       *string `json:"startDate"`
	EndDate         *string `json:"endDate"`
	State           State   `json:"state"`
	PercentComplete *float64 `json:"percentComplete"`
	Phases          []Phase `json:"phases"`
}

// Meta carries the optimistic-concurrency revision and denormalized audit
// fields, set on every accepted write.
type Meta struct {
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy"`
	Revision  int64     `json:"revision"`
}

// Document is the persisted per-department document. Password gates
// non-admin viewers and is independent of the edit lock.
type Document struct {
	Password *string   `json:"password"`
	Projects []Project `json:"projects"`
	Meta     Meta      `json:"meta"`
}

// Protected reports whether a non-empty password gates the department.
func (d *Document) Protected() bool {
	return d.Password != nil && *d.Password != ""
}

// Summary is the public listing entry for a department.
type Summary struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
}

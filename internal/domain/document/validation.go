package document

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxNameLength = 50

var (
	nameCharset = regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)
	dateFormat  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	// Windows device names are not usable as file names.
	reservedNames = map[string]struct{}{
		"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
		"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
		"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
		"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
		"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
	}
)

// NormalizeName validates a department name against the filesystem-safe
// charset and returns the trimmed form. Names map 1:1 to persisted files, so
// anything that could escape the data directory is rejected.
func NormalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || len(trimmed) > maxNameLength {
		return "", ErrInvalidName
	}
	if !nameCharset.MatchString(trimmed) {
		return "", ErrInvalidName
	}
	if strings.Contains(trimmed, "..") {
		return "", ErrInvalidName
	}
	if _, ok := reservedNames[strings.ToUpper(trimmed)]; ok {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

// Validate checks the document against the light schema the core relies on:
// a parseable container with named projects/phases and sane dates. Full
// Gantt semantics are validated client-side.
func Validate(doc *Document) *ValidationError {
	var problems []string

	if doc == nil {
		return &ValidationError{Problems: []string{"document must be an object"}}
	}
	if doc.Projects == nil {
		problems = append(problems, "projects must be an array")
	}
	for i, project := range doc.Projects {
		problems = append(problems, validateProject(project, i)...)
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

func validateProject(p Project, index int) []string {
	var problems []string

	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, fmt.Sprintf("project %d: name is required", index))
	}
	if p.Color == "" {
		problems = append(problems, fmt.Sprintf("project %d: color is required", index))
	}
	if !validState(p.State) {
		problems = append(problems, fmt.Sprintf("project %d: invalid state %q", index, p.State))
	}
	if !validDate(p.StartDate) {
		problems = append(problems, fmt.Sprintf("project %d: startDate must be null or YYYY-MM-DD", index))
	}
	if !validDate(p.EndDate) {
		problems = append(problems, fmt.Sprintf("project %d: endDate must be null or YYYY-MM-DD", index))
	}
	if !validPercent(p.PercentComplete) {
		problems = append(problems, fmt.Sprintf("project %d: percentComplete must be null or 0-100", index))
	}
	for j, phase := range p.Phases {
		problems = append(problems, validatePhase(phase, index, j)...)
	}
	return problems
}

func validatePhase(p Phase, projectIndex, index int) []string {
	var problems []string

	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, fmt.Sprintf("phase %d.%d: name is required", projectIndex, index))
	}
	if !validState(p.State) {
		problems = append(problems, fmt.Sprintf("phase %d.%d: invalid state %q", projectIndex, index, p.State))
	}
	if !validDate(p.StartDate) {
		problems = append(problems, fmt.Sprintf("phase %d.%d: startDate must be null or YYYY-MM-DD", projectIndex, index))
	}
	if !validDate(p.EndDate) {
		problems = append(problems, fmt.Sprintf("phase %d.%d: endDate must be null or YYYY-MM-DD", projectIndex, index))
	}
	if !validPercent(p.PercentComplete) {
		problems = append(problems, fmt.Sprintf("phase %d.%d: percentComplete must be null or 0-100", projectIndex, index))
	}
	return problems
}

func validState(s State) bool {
	switch s {
	case StateNotStarted, StateInProgress, StateLate, StateCompleted:
		return true
	}
	return false
}

func validDate(s *string) bool {
	if s == nil {
		return true
	}
	if !dateFormat.MatchString(*s) {
		return false
	}
	_, err := time.Parse("2006-01-02", *s)
	return err == nil
}

func validPercent(v *float64) bool {
	return v == nil || (*v >= 0 && *v <= 100)
}

// EnsureIDs assigns UUIDs to projects and phases that lack a valid one.
func EnsureIDs(doc *Document) {
	for i := range doc.Projects {
		if _, err := uuid.Parse(doc.Projects[i].ID); err != nil {
			doc.Projects[i].ID = uuid.NewString()
		}
		for j := range doc.Projects[i].Phases {
			if _, err := uuid.Parse(doc.Projects[i].Phases[j].ID); err != nil {
				doc.Projects[i].Phases[j].ID = uuid.NewString()
			}
		}
	}
}

// Package domain contains pure, dependency-free domain models and types
// for the WebJam judging and ranking core.
package domain

import (
	"fmt"
	"time"
)

// ProjectStatus is the lifecycle state of a Project.
type ProjectStatus string

// Project lifecycle states, in forward order.
const (
	StatusUpcoming  ProjectStatus = "upcoming"
	StatusActive    ProjectStatus = "active"
	StatusJudging   ProjectStatus = "judging"
	StatusCompleted ProjectStatus = "completed"
)

// ProjectEvent drives a status transition.
type ProjectEvent string

// Supported lifecycle events.
const (
	// EventStart opens the development window (upcoming -> active).
	EventStart ProjectEvent = "start"

	// EventCloseSubmissions closes the development window and opens judging
	// (active -> judging).
	EventCloseSubmissions ProjectEvent = "close_submissions"

	// EventComplete freezes the ranking (judging -> completed).
	EventComplete ProjectEvent = "complete"
)

// transitions is the complete forward-only state table.
var transitions = map[ProjectStatus]map[ProjectEvent]ProjectStatus{
	StatusUpcoming: {EventStart: StatusActive},
	StatusActive:   {EventCloseSubmissions: StatusJudging},
	StatusJudging:  {EventComplete: StatusCompleted},
}

// Valid reports whether s is one of the known statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusActive, StatusJudging, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s ProjectStatus) Terminal() bool { return s == StatusCompleted }

// AcceptsJudgements reports whether judges may record scores.
func (s ProjectStatus) AcceptsJudgements() bool { return s == StatusJudging }

// CriteriaEditable reports whether the criterion list may still be replaced.
func (s ProjectStatus) CriteriaEditable() bool {
	return s == StatusUpcoming || s == StatusActive
}

// Transition returns the status reached by applying event to from. It is the
// only place a status change is computed; stores persist its result with a
// conditional update on from.
func Transition(from ProjectStatus, event ProjectEvent) (ProjectStatus, error) {
	if !from.Valid() {
		return from, fmt.Errorf("%w: unknown status %q", ErrInvalidState, from)
	}
	to, ok := transitions[from][event]
	if !ok {
		return from, fmt.Errorf("%w: event %q not allowed from status %q", ErrInvalidState, event, from)
	}
	return to, nil
}

// ParseProjectEvent converts a wire value into a ProjectEvent.
func ParseProjectEvent(s string) (ProjectEvent, error) {
	switch e := ProjectEvent(s); e {
	case EventStart, EventCloseSubmissions, EventComplete:
		return e, nil
	}
	return "", NewValidationError("project event", fmt.Sprintf("unknown event %q", s))
}

// Project is a time-boxed team competition ("jam").
type Project struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Status      ProjectStatus `json:"status"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// Apply returns a copy of p after event, or a StateError naming operation.
func (p Project) Apply(event ProjectEvent, operation string) (Project, error) {
	to, err := Transition(p.Status, event)
	if err != nil {
		return p, NewStateError(p.ID, operation, p.Status)
	}
	p.Status = to
	return p, nil
}

package models

import (
	"strings"

	dErrors "nexushq/pkg/domain-errors"
)

// Status is the lifecycle state of a grading dispute.
type Status string

const (
	StatusOpen        Status = "open"
	StatusUnderReview Status = "under_review"
	StatusResolved    Status = "resolved"
	StatusRejected    Status = "rejected"
)

// ParseStatus accepts the wire names case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown dispute status: "+s)
	}
	return st, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusUnderReview, StatusResolved, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// CanTransitionTo reports whether moving from s to target is allowed:
// open to under_review, then under_review to resolved or rejected.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusOpen:
		return target == StatusUnderReview
	case StatusUnderReview:
		return target == StatusResolved || target == StatusRejected
	default:
		return false
	}
}

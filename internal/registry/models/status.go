package models

// ClientStatus is the lifecycle state of a client.
type ClientStatus string

const (
	ClientStatusActive    ClientStatus = "active"
	ClientStatusSuspended ClientStatus = "suspended"
)

func (s ClientStatus) IsValid() bool {
	return s == ClientStatusActive || s == ClientStatusSuspended
}

// CanTransitionTo reports whether moving from s to target is allowed.
func (s ClientStatus) CanTransitionTo(target ClientStatus) bool {
	switch s {
	case ClientStatusActive:
		return target == ClientStatusSuspended
	case ClientStatusSuspended:
		return target == ClientStatusActive
	default:
		return false
	}
}

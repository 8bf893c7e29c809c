package models

import (
	"fmt"
	"strings"
)

// DuplicatePolicy decides when two registrations describe the same client.
type DuplicatePolicy string

const (
	// DuplicateByName treats case-insensitive name collisions as duplicates.
	DuplicateByName DuplicatePolicy = "name"
	// DuplicateByEmail treats matching non-empty emails as duplicates.
	DuplicateByEmail DuplicatePolicy = "email"
	// DuplicateByNameOrEmail combines both rules.
	DuplicateByNameOrEmail DuplicatePolicy = "name_or_email"
	// DuplicateNone never rejects a registration.
	DuplicateNone DuplicatePolicy = "none"
)

// ParseDuplicatePolicy validates a configured policy name. Empty means DuplicateByName.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DuplicateByName, nil
	case DuplicateByName, DuplicateByEmail, DuplicateByNameOrEmail, DuplicateNone:
		return p, nil
	default:
		return "", fmt.Errorf("unknown duplicate registration policy %q", s)
	}
}

// Conflicts reports whether a and b are equivalent under the policy.
func (p DuplicatePolicy) Conflicts(a, b *Client) bool {
	sameName := strings.EqualFold(a.Name, b.Name)
	sameEmail := a.Email != "" && strings.EqualFold(a.Email, b.Email)
	switch p {
	case DuplicateByName:
		return sameName
	case DuplicateByEmail:
		return sameEmail
	case DuplicateByNameOrEmail:
		return sameName || sameEmail
	default:
		return false
	}
}

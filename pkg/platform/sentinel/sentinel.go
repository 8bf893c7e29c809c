// Package sentinel holds the storage facts every store reports. Services match
// them with errors.Is and translate to coded domain errors; they never reach
// HTTP as-is.
package sentinel

import "errors"

var (
	// ErrNotFound: no row for the id, key id or token, or a referenced parent
	// row (client) is missing.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUsed: a unique key (client name or email, api key id, dispute
	// id) is taken.
	ErrAlreadyUsed = errors.New("already used")
	// ErrConflict: the row changed underneath a validate-then-mutate update.
	ErrConflict = errors.New("conflict")
)

package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and the service layer translates them into domain errors:
//   - ErrNotFound: the record does not exist (or is soft-deleted where the
//     store hides tombstones)
//   - ErrAlreadyUsed: a unique key is taken, e.g. a profile already backs a person
//
// Input validation never produces these; use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
)

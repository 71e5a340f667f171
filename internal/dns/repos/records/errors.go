package records

import "errors"

var (
	// ErrInvalidLine is returned for a records line that is not hostname:ipv4.
	ErrInvalidLine = errors.New("invalid records line")

	// ErrDuplicateHost is returned when one source lists a hostname twice.
	ErrDuplicateHost = errors.New("duplicate hostname")
)

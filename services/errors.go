package services

import "errors"

// Validation-class errors: expected business outcomes. They route a record
// into a cancelled/failed branch with a recorded reason and never abort a
// batch. Anything else bubbling out of a batch setup phase is structural and
// rolls the whole transaction back.
var (
	ErrInsufficientPoints = errors.New("insufficient available points")
	ErrNoActiveMembership = errors.New("member has no active membership")
	ErrCutAlreadyRunning  = errors.New("cut is already running")
	ErrUnknownCutCode     = errors.New("unknown cut code")
	ErrTreeDepthExceeded  = errors.New("tree traversal exceeded depth guard")
)

package jobstore

import "errors"

// ErrNotFound is returned when a job id has no matching row.
var ErrNotFound = errors.New("jobstore: job not found")

// ErrJobTerminal is returned instead of panicking when a mutating call
// targets a job already in a terminal state (§4.6 immutability guard).
var ErrJobTerminal = errors.New("jobstore: job is already in a terminal state")

package zeroread

import "fmt"

// Termination steps named by TerminationError.
const (
	StepTerminateReads = "terminate reads"
	StepCloseConn      = "close connection"
)

// TerminationError reports a failed step of the termination sequence.
type TerminationError struct {
	Step string
	Err  error
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("zeroread: %s: %v", e.Step, e.Err)
}

func (e *TerminationError) Unwrap() error { return e.Err }

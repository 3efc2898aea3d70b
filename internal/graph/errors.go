package graph

import "fmt"

// EngineError is returned by Run for scheduling-level failures. An error
// a node itself returns is passed back by Run unchanged and also ends
// the run; spec.md §7 "Node failure" policy is left to the node
// implementations (the analysts record their failures in their Update
// instead of returning an error), not enforced by the engine.
type EngineError struct {
	Code    string
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

const (
	CodeMaxStepsExceeded = "MAX_STEPS_EXCEEDED"
	CodeUnknownNode      = "UNKNOWN_NODE"
	CodeWallClockBudget  = "WALL_CLOCK_BUDGET_EXCEEDED"
)

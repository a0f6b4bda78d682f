package state

// JobStatus is the lifecycle status of a job definition.
type JobStatus string

const (
	StatusActive    JobStatus = "active"
	StatusPaused    JobStatus = "paused"
	StatusCompleted JobStatus = "completed"
)

func (s JobStatus) String() string {
	return string(s)
}

var AllJobStatuses = []JobStatus{
	StatusActive,
	StatusPaused,
	StatusCompleted,
}

// ExecutionStatus is the status of a single execution attempt.
type ExecutionStatus string

const (
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

func (s ExecutionStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed from s.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionSuccess || s == ExecutionFailed
}

var AllExecutionStatuses = []ExecutionStatus{
	ExecutionRunning,
	ExecutionSuccess,
	ExecutionFailed,
}

type Transition struct {
	From JobStatus
	To   JobStatus
}

var ValidTransitions = []Transition{
	{From: StatusActive, To: StatusPaused},
	{From: StatusPaused, To: StatusActive},
	{From: StatusActive, To: StatusCompleted},
}

func IsValidTransition(from, to JobStatus) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// IsValidExecutionTransition only allows a running execution to finish, once.
func IsValidExecutionTransition(from, to ExecutionStatus) bool {
	return from == ExecutionRunning && to.IsTerminal()
}

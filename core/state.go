package core

// RunState is the lifecycle state of a whole orchestrator run.
//
//	planning -> executing -> synthesizing -> completed
//	                     \-> aborted     \-> aborted
type RunState string

const (
	RunPlanning     RunState = "planning"
	RunExecuting    RunState = "executing"
	RunSynthesizing RunState = "synthesizing"
	RunCompleted    RunState = "completed"
	RunAborted      RunState = "aborted"
)

// ExecutionMode selects how invocations inside one stage are scheduled.
type ExecutionMode string

const (
	// ExecutionSequential runs the invocations of a stage one after another.
	ExecutionSequential ExecutionMode = "sequential"
	// ExecutionParallel runs the invocations of a stage concurrently.
	ExecutionParallel ExecutionMode = "parallel"
)

// ErrorMode selects how a terminal invocation failure affects the run.
type ErrorMode string

const (
	// ErrorModeStrict aborts the run on the first terminal invocation failure.
	ErrorModeStrict ErrorMode = "strict"
	// ErrorModeLenient records failures and lets the synthesizer judge the result.
	ErrorModeLenient ErrorMode = "lenient"
)

package models

import "time"

// TransitionKind tags the directive a step handler returns.
type TransitionKind string

const (
	TransitionAdvance        TransitionKind = "advance"
	TransitionPauseUntil     TransitionKind = "pause_until"
	TransitionPauseForTiming TransitionKind = "pause_for_timing"
	TransitionComplete       TransitionKind = "complete"
	TransitionFail           TransitionKind = "fail"
)

// Transition is the tagged union returned by the step executor. Exactly one
// transition is produced per step invocation and applied once under optimistic
// concurrency control.
type Transition struct {
	Kind TransitionKind

	// NextStepID is set for advance transitions. Nil means no further step
	// exists and the execution completes normally.
	NextStepID *string

	// ResumeAt is set for both pause kinds.
	ResumeAt time.Time

	// Reason is set for complete transitions.
	Reason CompletionReason

	// Err is set for fail transitions.
	Err error
}

func Advance(nextStepID *string) Transition {
	return Transition{Kind: TransitionAdvance, NextStepID: nextStepID}
}

func PauseUntil(at time.Time) Transition {
	return Transition{Kind: TransitionPauseUntil, ResumeAt: at}
}

func PauseForTiming(at time.Time) Transition {
	return Transition{Kind: TransitionPauseForTiming, ResumeAt: at}
}

func Complete(reason CompletionReason) Transition {
	return Transition{Kind: TransitionComplete, Reason: reason}
}

func Fail(err error) Transition {
	return Transition{Kind: TransitionFail, Err: err}
}

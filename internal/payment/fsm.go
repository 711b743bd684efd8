package payment

import (
	"log"

	"github.com/qmuntal/stateless"
)

// Submission attempt states.
type SubmissionState stateless.State

var (
	StateDraft                SubmissionState = "Draft"
	StateOrderRequested       SubmissionState = "OrderRequested"
	StateAwaitingConfirmation SubmissionState = "AwaitingConfirmation"
	StateConfirmed            SubmissionState = "Confirmed"
	StateOrderFailed          SubmissionState = "OrderFailed"
	StateConfirmationFailed   SubmissionState = "ConfirmationFailed"
	StateAbandonedByUser      SubmissionState = "AbandonedByUser"
)

// Submission attempt triggers.
type submissionTrigger stateless.Trigger

var (
	triggerCommit           submissionTrigger = "Commit"
	triggerOrderCreated     submissionTrigger = "OrderCreated"
	triggerOrderErrored     submissionTrigger = "OrderErrored"
	triggerConfirmSucceeded submissionTrigger = "ConfirmSucceeded"
	triggerConfirmFailed    submissionTrigger = "ConfirmFailed"
	triggerAbandoned        submissionTrigger = "Abandoned"
	triggerReset            submissionTrigger = "Reset"
)

// newSubmissionMachine wires the per-attempt state machine:
//
//	Draft -> OrderRequested -> {OrderFailed | AwaitingConfirmation}
//	      -> {Confirmed | ConfirmationFailed | AbandonedByUser}
//
// The three failure states reset to Draft so the user can retry without
// retyping. Confirmed is terminal. A redirect attempt parks in
// AwaitingConfirmation when control leaves the process, so the return
// handler resumes the machine from there.
func newSubmissionMachine(initial SubmissionState) *stateless.StateMachine {
	sm := stateless.NewStateMachine(initial)

	sm.Configure(StateDraft).
		Permit(triggerCommit, StateOrderRequested)

	sm.Configure(StateOrderRequested).
		Permit(triggerOrderCreated, StateAwaitingConfirmation).
		Permit(triggerOrderErrored, StateOrderFailed)

	sm.Configure(StateAwaitingConfirmation).
		Permit(triggerConfirmSucceeded, StateConfirmed).
		Permit(triggerConfirmFailed, StateConfirmationFailed).
		Permit(triggerAbandoned, StateAbandonedByUser)

	sm.Configure(StateOrderFailed).
		Permit(triggerReset, StateDraft)
	sm.Configure(StateConfirmationFailed).
		Permit(triggerReset, StateDraft)
	sm.Configure(StateAbandonedByUser).
		Permit(triggerReset, StateDraft)

	return sm
}

// fire advances the machine; transitions here are wired statically, so a
// refusal is a programming error worth logging, not a user-facing one.
func fire(sm *stateless.StateMachine, trigger submissionTrigger) {
	if err := sm.Fire(trigger); err != nil {
		log.Printf("ERROR: Submission state machine refused trigger %v in state %v: %v", trigger, sm.MustState(), err)
	}
}

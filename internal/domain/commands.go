// Package domain implements the journey aggregate: the event-sourced
// state machine that coordinates a multi-step, data-driven user workflow.
//
// Import Path: github.com/redbadger/journey-dynamics/internal/domain
package domain

import (
	"github.com/google/uuid"
)

// Command is the tagged union of commands the aggregate accepts. Exactly
// one of the concrete *Command types below satisfies it.
type Command interface {
	isCommand()
}

// StartCommand opens a new journey under id.
type StartCommand struct {
	ID uuid.UUID
}

// CaptureCommand records a payload under a step key. Whether this is a
// step transition is derived by the aggregate from current_step, not by
// the caller.
type CaptureCommand struct {
	Step string
	Data any
}

// CapturePersonCommand records person-entity data. It never changes
// aggregate state directly; it exists purely to feed the person
// projection.
type CapturePersonCommand struct {
	Name  string
	Email string
	Phone *string
}

// CompleteCommand terminates the journey.
type CompleteCommand struct{}

func (StartCommand) isCommand()         {}
func (CaptureCommand) isCommand()       {}
func (CapturePersonCommand) isCommand() {}
func (CompleteCommand) isCommand()      {}

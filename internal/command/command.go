// ABOUTME: Command value type and its closed status union (Pending, Completed, Failed).
// ABOUTME: Commands are copied on every hop; identity is the ID, never a pointer.

package command

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidCommand indicates a command is missing a required field.
var ErrInvalidCommand = errors.New("invalid command")

// ErrUnknownStatus indicates a status value outside the Pending/Completed/Failed union.
var ErrUnknownStatus = errors.New("unknown command status")

// Status is the closed union of command states. Only the types in this
// package implement it.
type Status interface {
	isStatus()
	String() string
}

// Pending means the command has been created or dispatched with no result yet.
type Pending struct{}

// Completed carries the captured standard output of a successful run.
type Completed struct {
	Output string
}

// Failed carries captured standard error or a description of why the
// command could not be run.
type Failed struct {
	Reason string
}

func (Pending) isStatus()   {}
func (Completed) isStatus() {}
func (Failed) isStatus()    {}

func (Pending) String() string     { return "Pending" }
func (s Completed) String() string { return fmt.Sprintf("Completed(%q)", s.Output) }
func (s Failed) String() string    { return fmt.Sprintf("Failed(%q)", s.Reason) }

// Command is a shell command and its current status.
type Command struct {
	ID     string
	Cmd    string
	Status Status
}

// New creates a Pending command with a fresh identifier.
func New(cmd string) Command {
	return Command{
		ID:     uuid.New().String(),
		Cmd:    cmd,
		Status: Pending{},
	}
}

// WithStatus returns a copy of c carrying status s. ID and Cmd are preserved.
func (c Command) WithStatus(s Status) Command {
	c.Status = s
	return c
}

// Validate reports whether c has an ID and a known status.
func (c Command) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidCommand)
	}
	switch c.Status.(type) {
	case Pending, Completed, Failed:
		return nil
	case nil:
		return fmt.Errorf("%w: status is required", ErrInvalidCommand)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownStatus, c.Status)
	}
}

// IsTerminal reports whether s is Completed or Failed.
func IsTerminal(s Status) bool {
	switch s.(type) {
	case Completed, Failed:
		return true
	case Pending:
		return false
	default:
		return false
	}
}

// StatusLabel returns a short lowercase name for s, suitable for metric labels.
func StatusLabel(s Status) string {
	switch s.(type) {
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

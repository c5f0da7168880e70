// ABOUTME: JSON wire encoding for commands exchanged with agents and HTTP clients.
// ABOUTME: Status is "Pending", {"Completed": "..."} or {"Failed": "..."}.

package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	tagPending   = "Pending"
	tagCompleted = "Completed"
	tagFailed    = "Failed"
)

type wireCommand struct {
	ID     string          `json:"id"`
	Cmd    string          `json:"cmd"`
	Status json.RawMessage `json:"status"`
}

// Encode serializes c as a single JSON text message.
func Encode(c Command) ([]byte, error) {
	return json.Marshal(c)
}

// Decode parses a JSON text message into a Command and validates it.
// Every failure wraps ErrInvalidCommand.
func Decode(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, invalid(err)
	}
	if err := c.Validate(); err != nil {
		return Command{}, invalid(err)
	}
	return c, nil
}

func invalid(err error) error {
	if errors.Is(err, ErrInvalidCommand) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
}

// MarshalJSON implements json.Marshaler.
func (c Command) MarshalJSON() ([]byte, error) {
	status, err := MarshalStatus(c.Status)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireCommand{ID: c.ID, Cmd: c.Cmd, Status: status})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Command) UnmarshalJSON(data []byte) error {
	var w wireCommand
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	status, err := UnmarshalStatus(w.Status)
	if err != nil {
		return err
	}
	c.ID = w.ID
	c.Cmd = w.Cmd
	c.Status = status
	return nil
}

// MarshalStatus encodes s in its tagged wire form.
func MarshalStatus(s Status) ([]byte, error) {
	switch v := s.(type) {
	case Pending:
		return json.Marshal(tagPending)
	case Completed:
		return json.Marshal(map[string]string{tagCompleted: v.Output})
	case Failed:
		return json.Marshal(map[string]string{tagFailed: v.Reason})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownStatus, s)
	}
}

// UnmarshalStatus decodes a tagged status. An absent or null status is an error.
func UnmarshalStatus(data []byte) (Status, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("%w: status is required", ErrInvalidCommand)
	}

	if data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return nil, err
		}
		if tag != tagPending {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, tag)
		}
		return Pending{}, nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, err
	}
	if len(tagged) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one variant, got %d", ErrUnknownStatus, len(tagged))
	}

	for tag, payload := range tagged {
		switch tag {
		case tagPending:
			return Pending{}, nil
		case tagCompleted:
			var out string
			if err := json.Unmarshal(payload, &out); err != nil {
				return nil, fmt.Errorf("decoding %s payload: %w", tag, err)
			}
			return Completed{Output: out}, nil
		case tagFailed:
			var reason string
			if err := json.Unmarshal(payload, &reason); err != nil {
				return nil, fmt.Errorf("decoding %s payload: %w", tag, err)
			}
			return Failed{Reason: reason}, nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, tag)
		}
	}
	return nil, fmt.Errorf("%w: empty variant", ErrUnknownStatus)
}

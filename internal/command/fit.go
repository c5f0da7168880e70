// ABOUTME: Shrinks a result so its encoding fits one agent link message.
// ABOUTME: Oversized output or reason text is cut at a rune boundary and marked.

package command

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// MaxMessageSize bounds one encoded command on the agent link. The gateway
// refuses larger frames and agents shrink their results to fit.
const MaxMessageSize = 4 << 20

// ErrMessageTooLarge is returned by Fit when shortening the status text
// cannot bring a command under the limit.
var ErrMessageTooLarge = errors.New("command exceeds message size limit")

const truncatedFormat = "\n[truncated %d bytes]"

// Fit returns c unchanged when it encodes to at most limit bytes. Otherwise
// it returns c with its output or reason cut short, and cut is true.
func Fit(c Command, limit int) (fitted Command, cut bool, err error) {
	data, err := Encode(c)
	if err != nil {
		return c, false, err
	}
	if len(data) <= limit {
		return c, false, nil
	}

	text, withText := statusText(c.Status)
	if withText == nil {
		return c, false, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	keep := len(text)
	fitted = c
	for over := len(data) - limit; over > 0; over = len(data) - limit {
		keep -= over
		if keep < 0 {
			return c, false, fmt.Errorf("%w: %d bytes without output", ErrMessageTooLarge, len(data)-len(text))
		}
		for keep > 0 && !utf8.RuneStart(text[keep]) {
			keep--
		}
		short := text[:keep] + fmt.Sprintf(truncatedFormat, len(text)-keep)
		fitted = c.WithStatus(withText(short))
		if data, err = Encode(fitted); err != nil {
			return c, false, err
		}
	}
	return fitted, true, nil
}

// statusText returns the free text a status carries and a constructor for
// the same status with different text. Pending carries none.
func statusText(s Status) (string, func(string) Status) {
	switch s := s.(type) {
	case Completed:
		return s.Output, func(t string) Status { return Completed{Output: t} }
	case Failed:
		return s.Reason, func(t string) Status { return Failed{Reason: t} }
	default:
		return "", nil
	}
}

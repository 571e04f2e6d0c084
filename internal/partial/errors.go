package partial

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Partial errors
var (
	ErrUnknownPartial = errors.New("unknown partial")
	ErrCycle          = errors.New("partial reference cycle")
	ErrDisposed       = errors.New("fragment has been disposed")
	ErrInvalidName    = errors.New("invalid partial name")
	ErrNilFragment    = errors.New("fragment cannot be nil")
)

// Error is returned when a fragment cannot be resolved or its rendered text
// is not valid JSON. Source holds the text that failed, which for decode
// failures is the fully spliced text rather than the raw fragment source.
type Error struct {
	Msg    string
	Name   string // referenced partial name, when the failure is about one
	Origin string // where the fragment came from (file path), if known
	Source string
	Line   int // 1-based position of a JSON syntax error in Source, 0 if unknown
	Column int
	Err    error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Msg)
	if e.Name != "" {
		fmt.Fprintf(&sb, " %s", e.Name)
	}
	if e.Origin != "" || e.Line > 0 {
		sb.WriteString(" (")
		if e.Origin != "" {
			sb.WriteString(e.Origin)
		}
		if e.Line > 0 {
			if e.Origin != "" {
				sb.WriteString(":")
			} else {
				sb.WriteString("line ")
			}
			fmt.Fprintf(&sb, "%d:%d", e.Line, e.Column)
		}
		sb.WriteString(")")
	}
	if e.Err != nil && !errors.Is(e.Err, ErrUnknownPartial) && !errors.Is(e.Err, ErrCycle) {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newDecodeError wraps a JSON decode failure of spliced text.
func newDecodeError(origin, text string, err error) *Error {
	e := &Error{
		Msg:    "error parsing partial",
		Origin: origin,
		Source: text,
		Err:    err,
	}
	if offset, ok := errorOffset(err); ok {
		e.Line, e.Column = lineColumn(text, offset)
	}
	return e
}

// errorOffset extracts the byte offset reported by encoding/json.
func errorOffset(err error) (int64, bool) {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Offset, true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Offset, true
	}
	return 0, false
}

// lineColumn converts an encoding/json error offset (bytes read, including
// the offending byte) into the 1-based line and column of that byte.
func lineColumn(text string, offset int64) (int, int) {
	if offset > int64(len(text)) {
		offset = int64(len(text))
	}
	if offset > 0 {
		offset--
	}
	line, col := 1, 1
	for i := int64(0); i < offset; i++ {
		if text[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

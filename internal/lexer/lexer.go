// Package lexer finds partial reference tokens (<name>) in JSON source text.
package lexer

import (
	"iter"
	"strings"
)

// Reference is a single reference token found in source text.
// Start and End delimit the byte span to replace (End is exclusive).
type Reference struct {
	Start int
	End   int
	Name  string
}

// Lexer scans JSON text for reference tokens.
// Tokens inside string literals are not references.
type Lexer struct {
	input string
	pos   int  // current position in input
	ch    byte // current character under examination
}

// New creates a new lexer for the input string.
func New(input string) *Lexer {
	l := &Lexer{input: input}
	l.Reset()
	return l
}

// Reset rewinds the lexer to the start of its input.
func (l *Lexer) Reset() {
	l.pos = 0
	l.readChar()
}

// Next returns the next reference in the input.
// The second return value is false once the input is exhausted.
func (l *Lexer) Next() (Reference, bool) {
	for l.ch != 0 {
		switch l.ch {
		case '"':
			l.skipString()
		case '<':
			start := l.pos - 1
			if name, ok := l.readReference(); ok {
				return Reference{Start: start, End: l.pos - 1, Name: name}, true
			}
		default:
			l.readChar()
		}
	}
	return Reference{}, false
}

// readChar reads the next character and advances position.
// A NUL byte in the input is treated like any other non-token byte.
func (l *Lexer) readChar() {
	if l.pos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.pos]
		if l.ch == 0 {
			l.ch = ' '
		}
	}
	l.pos++
}

// skipString advances past a JSON string literal, honouring backslash escapes.
func (l *Lexer) skipString() {
	l.readChar() // opening quote
	for l.ch != '"' && l.ch != 0 {
		if l.ch == '\\' {
			l.readChar()
			if l.ch == 0 {
				return
			}
		}
		l.readChar()
	}
	if l.ch == '"' {
		l.readChar()
	}
}

// readReference reads `<name>` starting at the current '<'. On failure the
// lexer is left just past the '<' so scanning resumes from the next byte.
func (l *Lexer) readReference() (string, bool) {
	l.readChar() // skip '<'
	start := l.pos - 1
	for {
		if !isLetter(l.ch) {
			return "", false
		}
		for isLetter(l.ch) || isDigit(l.ch) || l.ch == '-' {
			l.readChar()
		}
		if l.ch != '.' {
			break
		}
		l.readChar()
	}
	if l.ch != '>' {
		return "", false
	}
	name := l.input[start : l.pos-1]
	l.readChar() // skip '>'
	return name, true
}

// Scan returns every reference in text, in source order.
func Scan(text string) []Reference {
	var refs []Reference
	for ref := range All(text) {
		refs = append(refs, ref)
	}
	return refs
}

// All returns an iterator over the references in text. Each call to the
// returned sequence starts a fresh pass, so it can be ranged over repeatedly.
func All(text string) iter.Seq[Reference] {
	return func(yield func(Reference) bool) {
		l := New(text)
		for {
			ref, ok := l.Next()
			if !ok || !yield(ref) {
				return
			}
		}
	}
}

// Contains reports whether text holds at least one reference token.
func Contains(text string) bool {
	if !strings.ContainsRune(text, '<') {
		return false
	}
	_, ok := New(text).Next()
	return ok
}

// ValidName reports whether name can be written as a reference token.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, segment := range strings.Split(name, ".") {
		if segment == "" || !isLetter(segment[0]) {
			return false
		}
		for i := 1; i < len(segment); i++ {
			c := segment[i]
			if !isLetter(c) && !isDigit(c) && c != '-' {
				return false
			}
		}
	}
	return true
}

// isLetter returns true if c is a letter or underscore.
func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

// isDigit returns true if c is a digit.
func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

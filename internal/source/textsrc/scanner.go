package textsrc

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ParseError is a structured error from the scanner with position information.
type ParseError struct {
	Message string
	Line    int
	Col     int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d col %d: %s", e.Line, e.Col, e.Message)
}

// Scanner walks definition source text, tracking line and column and
// skipping string literals and comments when it counts bracket depth.
type Scanner struct {
	input string
	pos   int // current byte position
	line  int // 1-based
	col   int // 1-based
}

// NewScanner creates a scanner positioned at the start of input.
func NewScanner(input string) *Scanner {
	return &Scanner{input: input, line: 1, col: 1}
}

// Pos returns the current byte offset.
func (s *Scanner) Pos() int { return s.pos }

// Line returns the current 1-based line.
func (s *Scanner) Line() int { return s.line }

// Seek moves the scanner to byte offset pos, recomputing line and column.
func (s *Scanner) Seek(pos int) {
	s.pos, s.line, s.col = 0, 1, 1
	for s.pos < pos && s.pos < len(s.input) {
		s.advance()
	}
}

// peek returns the current rune without advancing.
func (s *Scanner) peek() rune {
	if s.pos >= len(s.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.input[s.pos:])
	return r
}

// peekAt returns the rune at offset from current position.
func (s *Scanner) peekAt(offset int) rune {
	p := s.pos + offset
	if p >= len(s.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.input[p:])
	return r
}

// advance moves forward by one rune and returns it.
func (s *Scanner) advance() rune {
	if s.pos >= len(s.input) {
		return 0
	}
	r, size := utf8.DecodeRuneInString(s.input[s.pos:])
	s.pos += size
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r
}

// skipString consumes a quoted literal, including CUE multi-line strings.
func (s *Scanner) skipString() error {
	line, col := s.line, s.col
	if strings.HasPrefix(s.input[s.pos:], `"""`) {
		s.advance()
		s.advance()
		s.advance()
		end := strings.Index(s.input[s.pos:], `"""`)
		if end < 0 {
			return &ParseError{Message: "unterminated multi-line string", Line: line, Col: col}
		}
		for target := s.pos + end + 3; s.pos < target; {
			s.advance()
		}
		return nil
	}
	quote := s.advance()
	for s.pos < len(s.input) {
		r := s.advance()
		switch r {
		case '\\':
			s.advance()
		case quote:
			return nil
		case '\n':
			return &ParseError{Message: "unterminated string", Line: line, Col: col}
		}
	}
	return &ParseError{Message: "unterminated string", Line: line, Col: col}
}

// skipComment consumes a // comment up to, not including, the newline.
func (s *Scanner) skipComment() {
	for s.pos < len(s.input) && s.peek() != '\n' {
		s.advance()
	}
}

// step consumes one lexical unit and returns the bracket depth change it causes.
func (s *Scanner) step() (int, error) {
	r := s.peek()
	switch {
	case r == '"' || r == '\'':
		return 0, s.skipString()
	case r == '/' && s.peekAt(1) == '/':
		s.skipComment()
		return 0, nil
	}
	s.advance()
	switch r {
	case '(', '[', '{':
		return 1, nil
	case ')', ']', '}':
		return -1, nil
	}
	return 0, nil
}

// ReadBalanced reads from the current position, which must be an opening
// bracket, until bracket depth returns to zero. It returns the text
// between the brackets and leaves the scanner just past the closing one.
func (s *Scanner) ReadBalanced() (string, error) {
	if s.pos >= len(s.input) {
		return "", &ParseError{Message: "expected opening bracket, got end of input", Line: s.line, Col: s.col}
	}
	if r := s.peek(); r != '(' && r != '[' && r != '{' {
		return "", &ParseError{Message: fmt.Sprintf("expected opening bracket, got %q", r), Line: s.line, Col: s.col}
	}
	startLine, startCol := s.line, s.col
	start := s.pos + 1
	depth := 0
	for s.pos < len(s.input) {
		d, err := s.step()
		if err != nil {
			return "", err
		}
		depth += d
		if depth == 0 {
			return s.input[start : s.pos-1], nil
		}
	}
	return "", &ParseError{Message: "unbalanced brackets", Line: startLine, Col: startCol}
}

// ReadStatement reads from the current position to the end of the line on
// which bracket depth returns to zero. It returns the statement text without
// the trailing newline, and leaves the scanner at the start of the next line.
func (s *Scanner) ReadStatement() (string, error) {
	startLine, startCol := s.line, s.col
	start := s.pos
	depth := 0
	for s.pos < len(s.input) {
		if s.peek() == '\n' {
			if depth == 0 {
				text := s.input[start:s.pos]
				s.advance()
				return text, nil
			}
			s.advance()
			continue
		}
		d, err := s.step()
		if err != nil {
			return "", err
		}
		depth += d
		if depth < 0 {
			return "", &ParseError{Message: "unexpected closing bracket", Line: s.line, Col: s.col - 1}
		}
	}
	if depth != 0 {
		return "", &ParseError{Message: "unbalanced brackets", Line: startLine, Col: startCol}
	}
	return s.input[start:], nil
}

// Depth returns the net bracket depth change across text, ignoring brackets
// inside strings and comments. Unterminated strings count as closed at end of line.
func Depth(text string) int {
	s := NewScanner(text)
	depth := 0
	for s.pos < len(s.input) {
		d, err := s.step()
		if err != nil {
			return depth
		}
		depth += d
	}
	return depth
}

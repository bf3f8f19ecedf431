package enhancer

import (
	"errors"
	"fmt"

	"github.com/stacktide/enhancer/pkg/enhancer/parser"
)

// MatcherParseError reports a rule line whose matcher side could not be
// parsed or compiled: malformed clause syntax, an unknown field name, an
// invalid pattern, or an illegal nested lookahead group.
type MatcherParseError struct {
	Line string
	Err  error
}

func (e *MatcherParseError) Error() string {
	if _, ok := e.Err.(*parser.MatcherError); ok {
		// The parser error already carries the "failed to parse
		// matchers" prefix.
		return fmt.Sprintf("%s in rule `%s`", e.Err, e.Line)
	}
	return fmt.Sprintf("failed to parse matchers: %s in rule `%s`", e.Err, e.Line)
}

func (e *MatcherParseError) Unwrap() error { return e.Err }

// ActionParseError reports a rule line whose action side could not be
// parsed: a malformed or unknown action clause, a bad var action value, or
// an illegal nested lookahead group on the action side.
type ActionParseError struct {
	Line string
	Err  error
}

func (e *ActionParseError) Error() string {
	if _, ok := e.Err.(*parser.ActionError); ok {
		return fmt.Sprintf("%s in rule `%s`", e.Err, e.Line)
	}
	return fmt.Sprintf("failed to parse actions: %s in rule `%s`", e.Err, e.Line)
}

func (e *ActionParseError) Unwrap() error { return e.Err }

// wrapParseError classifies an error from the grammar parser into the
// public matcher/action error kinds.
func wrapParseError(line string, err error) error {
	var actionErr *parser.ActionError
	if errors.As(err, &actionErr) {
		return &ActionParseError{Line: line, Err: err}
	}
	return &MatcherParseError{Line: line, Err: err}
}

func errUnknownMatcher(matcherType string) error {
	return fmt.Errorf("unknown matcher type `%s`", matcherType)
}

package parser

import (
	"fmt"
	"strings"
)

// MatcherError reports a malformed matcher clause, an unknown matcher type,
// or an illegal nested lookahead group on the matcher side of a rule.
type MatcherError struct {
	Detail string
}

func (e *MatcherError) Error() string {
	return "failed to parse matchers: " + e.Detail
}

// ActionError reports a malformed action clause or an illegal nested
// lookahead group on the action side of a rule.
type ActionError struct {
	Detail string
}

func (e *ActionError) Error() string {
	return "failed to parse actions: " + e.Detail
}

func matcherErrorf(format string, args ...any) error {
	return &MatcherError{Detail: fmt.Sprintf(format, args...)}
}

func actionErrorf(format string, args ...any) error {
	return &ActionError{Detail: fmt.Sprintf(format, args...)}
}

// Matcher types the grammar accepts, including the namespaced aliases the
// hosting system's older rule files use.
var matcherTypes = map[string]bool{
	"category":        true,
	"family":          true,
	"function":        true,
	"stack.function":  true,
	"module":          true,
	"stack.module":    true,
	"package":         true,
	"stack.package":   true,
	"path":            true,
	"stack.abs_path":  true,
	"app":             true,
	"in_app":          true,
	"type":            true,
	"error.type":      true,
	"value":           true,
	"error.value":     true,
	"mechanism":       true,
	"error.mechanism": true,
}

var flagNames = map[string]bool{
	"app":      true,
	"group":    true,
	"prefix":   true,
	"sentinel": true,
}

var varNames = map[string]bool{
	"max-frames":        true,
	"min-frames":        true,
	"invert-stacktrace": true,
	"category":          true,
}

// Parser turns one rule line into a RawRule. It fails fast: the first
// malformed clause aborts the line with a MatcherError or ActionError
// depending on which side of the rule it sits on.
type Parser struct {
	l *Lexer

	curToken  Token
	peekToken Token
}

func New(l *Lexer) *Parser {
	p := &Parser{l: l}

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// ParseRule parses the whole line as a single rule. Grammar:
//
//	rule    ::= caller? matcher+ callee? action+
//	caller  ::= "[" matcher+ "]" "|"
//	callee  ::= "|" "[" matcher+ "]"
//	matcher ::= ["!"] type ":" argument
//	action  ::= ["^"|"v"] ("+"|"-") flag | var "=" value
//
// Lookahead groups do not nest: a bracket inside a group, or a second
// group on either side, is a parse error.
func (p *Parser) ParseRule() (*RawRule, error) {
	rule := &RawRule{}

	if p.curTokenIs(LBRACKET) {
		group, err := p.parseMatcherGroup()
		if err != nil {
			return nil, err
		}
		if !p.curTokenIs(PIPE) {
			return nil, matcherErrorf("expected `|` after caller matcher group, got %s", p.describeCur())
		}
		p.nextToken()
		rule.CallerMatchers = group
	}

	for p.curTokenIs(WORD) && isMatcherWord(p.curToken.Literal) {
		m, err := parseMatcherWord(p.curToken.Literal)
		if err != nil {
			return nil, err
		}
		rule.Matchers = append(rule.Matchers, m)
		p.nextToken()
	}

	if p.curTokenIs(LBRACKET) {
		// A bracket here is either a nested group or a second caller
		// group; neither is allowed.
		return nil, matcherErrorf("matcher groups may not nest")
	}

	if len(rule.Matchers) == 0 {
		return nil, matcherErrorf("expected at least one matcher, got %s", p.describeCur())
	}

	if p.curTokenIs(PIPE) {
		p.nextToken()
		if !p.curTokenIs(LBRACKET) {
			return nil, matcherErrorf("expected `[` after `|`, got %s", p.describeCur())
		}
		group, err := p.parseMatcherGroup()
		if err != nil {
			return nil, err
		}
		rule.CalleeMatchers = group
	}

	for !p.curTokenIs(EOF) {
		if !p.curTokenIs(WORD) {
			// Anything structural after the callee group belongs to a
			// second lookahead group, which may not exist.
			return nil, actionErrorf("unexpected %s", p.describeCur())
		}
		a, err := parseActionWord(p.curToken.Literal)
		if err != nil {
			return nil, err
		}
		rule.Actions = append(rule.Actions, a)
		p.nextToken()
	}

	if len(rule.Actions) == 0 {
		return nil, actionErrorf("expected at least one action")
	}

	return rule, nil
}

// parseMatcherGroup consumes `[ matcher+ ]`, with curToken on the opening
// bracket, and leaves curToken on the token after the closing bracket.
func (p *Parser) parseMatcherGroup() ([]RawMatcher, error) {
	p.nextToken() // consume `[`

	var matchers []RawMatcher
	for !p.curTokenIs(RBRACKET) {
		switch p.curToken.Type {
		case LBRACKET:
			return nil, matcherErrorf("matcher groups may not nest")
		case WORD:
			m, err := parseMatcherWord(p.curToken.Literal)
			if err != nil {
				return nil, err
			}
			matchers = append(matchers, m)
			p.nextToken()
		default:
			return nil, matcherErrorf("unterminated matcher group, got %s", p.describeCur())
		}
	}
	p.nextToken() // consume `]`

	if len(matchers) == 0 {
		return nil, matcherErrorf("empty matcher group")
	}
	return matchers, nil
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) describeCur() string {
	if p.curTokenIs(EOF) {
		return "end of line"
	}
	return fmt.Sprintf("`%s`", p.curToken.Literal)
}

// isMatcherWord decides whether a word belongs to the matcher side or the
// action side of the rule. Actions start with a sign (optionally prefixed
// by a `^`/`v` range marker) or assign with `=`; matchers always carry a
// `:` separator.
func isMatcherWord(lit string) bool {
	if lit == "" {
		return false
	}
	if lit[0] == '+' || lit[0] == '-' {
		return false
	}
	if len(lit) > 1 && (lit[0] == '^' || lit[0] == 'v') && (lit[1] == '+' || lit[1] == '-') {
		return false
	}
	return strings.ContainsRune(lit, ':')
}

func parseMatcherWord(lit string) (RawMatcher, error) {
	var m RawMatcher

	s := lit
	if strings.HasPrefix(s, "!") {
		m.Negated = true
		s = s[1:]
	}

	// The matcher type may be quoted to allow characters that would
	// otherwise end the identifier.
	if strings.HasPrefix(s, `"`) {
		end := strings.IndexByte(s[1:], '"')
		if end < 0 {
			return m, matcherErrorf("unterminated quote in matcher `%s`", lit)
		}
		m.Type = s[1 : end+1]
		s = s[end+2:]
		if !strings.HasPrefix(s, ":") {
			return m, matcherErrorf("expected `:` in matcher `%s`", lit)
		}
		s = s[1:]
	} else {
		sep := strings.IndexByte(s, ':')
		if sep <= 0 {
			return m, matcherErrorf("malformed matcher `%s`", lit)
		}
		m.Type = s[:sep]
		s = s[sep+1:]
	}

	if !knownMatcherType(m.Type) {
		return m, matcherErrorf("unknown matcher type `%s`", m.Type)
	}

	// Quoted arguments keep whitespace; strip the quotes only.
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return m, matcherErrorf("empty argument in matcher `%s`", lit)
	}
	m.Argument = s

	return m, nil
}

func knownMatcherType(ty string) bool {
	// `caller.`/`callee.` pin a clause to the frame at the exact relative
	// offset instead of the frame under test.
	ty = strings.TrimPrefix(ty, "caller.")
	ty = strings.TrimPrefix(ty, "callee.")
	return matcherTypes[ty]
}

func parseActionWord(lit string) (RawAction, error) {
	s := lit

	var rangeMarker byte
	if len(s) > 1 && (s[0] == '^' || s[0] == 'v') && (s[1] == '+' || s[1] == '-') {
		rangeMarker = s[0]
		s = s[1:]
	}

	if s != "" && (s[0] == '+' || s[0] == '-') {
		name := s[1:]
		if !flagNames[name] {
			return nil, actionErrorf("unknown flag `%s` in action `%s`", name, lit)
		}
		return &RawFlagAction{
			Range: rangeMarker,
			Set:   s[0] == '+',
			Name:  name,
		}, nil
	}

	if sep := strings.IndexByte(s, '='); sep > 0 {
		name, value := s[:sep], s[sep+1:]
		if !varNames[name] {
			return nil, actionErrorf("unknown variable `%s` in action `%s`", name, lit)
		}
		if value == "" {
			return nil, actionErrorf("empty value in action `%s`", lit)
		}
		return &RawVarAction{Name: name, Value: value}, nil
	}

	return nil, actionErrorf("malformed action `%s`", lit)
}

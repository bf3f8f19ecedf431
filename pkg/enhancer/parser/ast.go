package parser

import (
	"bytes"
	"strings"
)

// RawMatcher is a single matcher clause as written in the rule text:
// an optional negation, a matcher type, and an uninterpreted pattern
// argument. Field validation and pattern compilation happen later, when
// the raw rule is turned into a compiled rule.
type RawMatcher struct {
	Negated  bool
	Type     string
	Argument string
}

func (m *RawMatcher) String() string {
	var out bytes.Buffer
	if m.Negated {
		out.WriteString("!")
	}
	out.WriteString(m.Type)
	out.WriteString(":")
	if strings.ContainsAny(m.Argument, " \t") {
		out.WriteString(`"` + m.Argument + `"`)
	} else {
		out.WriteString(m.Argument)
	}
	return out.String()
}

// RawAction is either a flag action (`+app`, `^-group`, ...) or a var
// action (`max-frames=3`, `category=dtor`).
type RawAction interface {
	actionNode()
	String() string
}

// RawFlagAction carries an optional range marker (`^` applies the action
// to the frames after the match, `v` to the frames before), the flag sign,
// and the flag name.
type RawFlagAction struct {
	Range byte // 0, '^' or 'v'
	Set   bool
	Name  string
}

func (a *RawFlagAction) actionNode() {}
func (a *RawFlagAction) String() string {
	var out bytes.Buffer
	if a.Range != 0 {
		out.WriteByte(a.Range)
	}
	if a.Set {
		out.WriteString("+")
	} else {
		out.WriteString("-")
	}
	out.WriteString(a.Name)
	return out.String()
}

// RawVarAction assigns a value to a stacktrace variable.
type RawVarAction struct {
	Name  string
	Value string
}

func (a *RawVarAction) actionNode() {}
func (a *RawVarAction) String() string {
	return a.Name + "=" + a.Value
}

// RawRule is one parsed rule line: an optional caller lookahead group, the
// matcher clauses for the frame under test, an optional callee lookahead
// group, and the action clauses.
type RawRule struct {
	CallerMatchers []RawMatcher
	Matchers       []RawMatcher
	CalleeMatchers []RawMatcher
	Actions        []RawAction
}

func (r *RawRule) String() string {
	var parts []string
	if len(r.CallerMatchers) > 0 {
		group := make([]string, 0, len(r.CallerMatchers)+3)
		group = append(group, "[")
		for i := range r.CallerMatchers {
			group = append(group, r.CallerMatchers[i].String())
		}
		group = append(group, "]", "|")
		parts = append(parts, strings.Join(group, " "))
	}
	for i := range r.Matchers {
		parts = append(parts, r.Matchers[i].String())
	}
	if len(r.CalleeMatchers) > 0 {
		group := make([]string, 0, len(r.CalleeMatchers)+3)
		group = append(group, "|", "[")
		for i := range r.CalleeMatchers {
			group = append(group, r.CalleeMatchers[i].String())
		}
		group = append(group, "]")
		parts = append(parts, strings.Join(group, " "))
	}
	for _, a := range r.Actions {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, " ")
}

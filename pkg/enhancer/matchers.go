package enhancer

import (
	"bytes"
	"strings"

	"github.com/gobwas/glob"
)

// frameOffset pins a matcher clause to a frame relative to the one under
// test. Out-of-bounds offsets make the clause fail, never error.
type frameOffset int

const (
	offsetNone frameOffset = iota
	offsetCaller
	offsetCallee
)

// FrameMatcher is one compiled matcher clause of a rule. The zero offset
// matches the frame under test; caller/callee offsets re-apply the same
// field match to the adjacent frame. Negation inverts the match result,
// not the field lookup: an absent field fails the inner match first, and
// only then is the result inverted.
type FrameMatcher struct {
	negated    bool
	offset     frameOffset
	inner      frameMatcherInner
	rawType    string
	rawPattern string
}

func (m *FrameMatcher) matchesFrame(frames []MatchFrame, idx int) bool {
	switch m.offset {
	case offsetCaller:
		idx--
	case offsetCallee:
		idx++
	}
	if idx < 0 || idx >= len(frames) {
		return false
	}
	return m.negated != m.inner.matches(&frames[idx])
}

func (m *FrameMatcher) String() string {
	var out bytes.Buffer
	switch m.offset {
	case offsetCaller:
		out.WriteString("caller.")
	case offsetCallee:
		out.WriteString("callee.")
	}
	if m.negated {
		out.WriteString("!")
	}
	out.WriteString(m.rawType)
	out.WriteString(":")
	out.WriteString(m.rawPattern)
	return out.String()
}

// frameMatcherInner is the closed set of per-frame match kinds.
type frameMatcherInner interface {
	matches(frame *MatchFrame) bool
}

// fieldMatch checks a single frame field against a glob. Path-like fields
// match lowercased, separator-normalized, and retry with a leading slash
// so `**/foo` style patterns also cover relative values.
type fieldMatch struct {
	field    FrameField
	pathLike bool
	pattern  glob.Glob
}

func (m *fieldMatch) matches(frame *MatchFrame) bool {
	value := frame.Field(m.field)
	if value == nil {
		return false
	}

	v := *value
	if !m.pathLike {
		return m.pattern.Match(v)
	}

	v = strings.ToLower(strings.ReplaceAll(v, `\`, "/"))
	if m.pattern.Match(v) {
		return true
	}
	if !strings.HasPrefix(v, "/") {
		return m.pattern.Match("/" + v)
	}
	return false
}

// familyMatch checks the frame family against a comma-separated set;
// `all` short-circuits to true.
type familyMatch struct {
	families map[string]struct{}
	all      bool
}

func newFamilyMatch(families string) *familyMatch {
	m := &familyMatch{families: make(map[string]struct{})}
	for _, f := range strings.Split(families, ",") {
		if f == "all" {
			m.all = true
		}
		m.families[f] = struct{}{}
	}
	return m
}

func (m *familyMatch) matches(frame *MatchFrame) bool {
	value := frame.Field(FieldFamily)
	if value == nil {
		return false
	}
	if m.all {
		return true
	}
	_, ok := m.families[*value]
	return ok
}

// inAppMatch compares the frame's in-app flag to a boolean literal; an
// absent flag counts as false.
type inAppMatch struct {
	expected bool
}

func (m *inAppMatch) matches(frame *MatchFrame) bool {
	return frame.inApp() == m.expected
}

// exceptionField selects which exception datum an ExceptionMatcher reads.
type exceptionField int

const (
	excType exceptionField = iota
	excValue
	excMechanism
)

func (f exceptionField) String() string {
	switch f {
	case excType:
		return "type"
	case excValue:
		return "value"
	default:
		return "mechanism"
	}
}

// ExceptionMatcher gates a whole rule on the trace-level exception data.
// Absent fields match as the literal "<unknown>", mirroring how the
// hosting system renders unknown exceptions.
type ExceptionMatcher struct {
	negated    bool
	field      exceptionField
	pattern    glob.Glob
	rawPattern string
}

func (m *ExceptionMatcher) matchesException(exc *ExceptionData) bool {
	var value *string
	if exc != nil {
		switch m.field {
		case excType:
			value = exc.Type
		case excValue:
			value = exc.Value
		case excMechanism:
			value = exc.Mechanism
		}
	}

	v := "<unknown>"
	if value != nil {
		v = *value
	}
	return m.negated != m.pattern.Match(v)
}

func (m *ExceptionMatcher) String() string {
	var out bytes.Buffer
	if m.negated {
		out.WriteString("!")
	}
	out.WriteString(m.field.String())
	out.WriteString(":")
	out.WriteString(m.rawPattern)
	return out.String()
}

// matcher wraps either a frame or an exception matcher so rule assembly
// can treat both clause kinds uniformly.
type matcher struct {
	frame     *FrameMatcher
	exception *ExceptionMatcher
}

// newMatcher compiles one raw matcher clause. The matcher type has been
// validated by the grammar parser; failures here are bad patterns or bad
// boolean literals, which still count as matcher parse errors.
func newMatcher(negated bool, matcherType, argument string, cache *PatternCache) (matcher, error) {
	offset := offsetNone
	ty := matcherType
	if rest, ok := strings.CutPrefix(ty, "caller."); ok {
		offset = offsetCaller
		ty = rest
	} else if rest, ok := strings.CutPrefix(ty, "callee."); ok {
		offset = offsetCallee
		ty = rest
	}

	newField := func(field FrameField, pathLike bool) (matcher, error) {
		pattern, err := cache.getOrCompile(argument, pathLike)
		if err != nil {
			return matcher{}, err
		}
		return matcher{frame: &FrameMatcher{
			negated: negated,
			offset:  offset,
			inner: &fieldMatch{
				field:    field,
				pathLike: pathLike,
				pattern:  pattern,
			},
			rawType:    field.String(),
			rawPattern: argument,
		}}, nil
	}

	newException := func(field exceptionField) (matcher, error) {
		pattern, err := cache.getOrCompile(argument, false)
		if err != nil {
			return matcher{}, err
		}
		return matcher{exception: &ExceptionMatcher{
			negated:    negated,
			field:      field,
			pattern:    pattern,
			rawPattern: argument,
		}}, nil
	}

	switch ty {
	case "category":
		return newField(FieldCategory, false)
	case "function", "stack.function":
		return newField(FieldFunction, false)
	case "module", "stack.module":
		return newField(FieldModule, false)
	case "path", "stack.abs_path":
		return newField(FieldPath, true)
	case "package", "stack.package":
		return newField(FieldPackage, true)

	case "family":
		return matcher{frame: &FrameMatcher{
			negated:    negated,
			offset:     offset,
			inner:      newFamilyMatch(argument),
			rawType:    "family",
			rawPattern: argument,
		}}, nil

	case "app", "in_app":
		expected, err := parseBoolLiteral(argument)
		if err != nil {
			return matcher{}, err
		}
		return matcher{frame: &FrameMatcher{
			negated:    negated,
			offset:     offset,
			inner:      &inAppMatch{expected: expected},
			rawType:    "app",
			rawPattern: argument,
		}}, nil

	case "type", "error.type":
		return newException(excType)
	case "value", "error.value":
		return newException(excValue)
	case "mechanism", "error.mechanism":
		return newException(excMechanism)
	}

	return matcher{}, errUnknownMatcher(matcherType)
}

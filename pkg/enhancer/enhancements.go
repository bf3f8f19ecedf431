package enhancer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/stacktide/enhancer/pkg/enhancer/parser"
)

// Enhancements is a parsed, ordered rule set. It is immutable after Parse
// and safe for concurrent use as long as each caller brings its own frame
// and component buffers.
type Enhancements struct {
	rules []*Rule

	// Modifier rules can change frame contents; updater rules can change
	// grouping metadata. Precomputing the split keeps each public
	// operation from scanning rules that cannot affect it.
	modifierRules []*Rule
	updaterRules  []*Rule
}

// Parse compiles a rule-set text into Enhancements. The text is
// line-oriented: blank lines and `#` comments are ignored, every other
// line is one rule. The cache memoizes compiled patterns; passing the same
// cache to several Parse calls shares the compiled forms between them.
//
// Parsing is all-or-nothing: the first malformed line aborts with a
// *MatcherParseError or *ActionParseError and no rule set is returned.
func Parse(text string, cache *PatternCache) (*Enhancements, error) {
	if cache == nil {
		cache = NewPatternCache(0)
	}

	var rules []*Rule

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := parseRule(line, cache)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return newEnhancements(rules), nil
}

func newEnhancements(rules []*Rule) *Enhancements {
	e := &Enhancements{rules: rules}
	for _, rule := range rules {
		if rule.hasModifierAction() {
			e.modifierRules = append(e.modifierRules, rule)
		}
		if rule.hasUpdaterAction() {
			e.updaterRules = append(e.updaterRules, rule)
		}
	}
	return e
}

// parseRule compiles one rule line: the grammar parser splits it into raw
// clauses, then matchers and actions are compiled against the cache.
func parseRule(line string, cache *PatternCache) (*Rule, error) {
	p := parser.New(parser.NewLexer(line))
	raw, err := p.ParseRule()
	if err != nil {
		return nil, wrapParseError(line, err)
	}

	rule := &Rule{}

	addMatcher := func(rawMatcher *parser.RawMatcher, group *[]*FrameMatcher) error {
		m, err := newMatcher(rawMatcher.Negated, rawMatcher.Type, rawMatcher.Argument, cache)
		if err != nil {
			return &MatcherParseError{Line: line, Err: err}
		}
		switch {
		case m.exception != nil:
			rule.exceptionMatchers = append(rule.exceptionMatchers, m.exception)
		case group != nil:
			*group = append(*group, m.frame)
		default:
			rule.frameMatchers = append(rule.frameMatchers, m.frame)
		}
		return nil
	}

	for i := range raw.CallerMatchers {
		if err := addMatcher(&raw.CallerMatchers[i], &rule.callerMatchers); err != nil {
			return nil, err
		}
	}
	for i := range raw.Matchers {
		if err := addMatcher(&raw.Matchers[i], nil); err != nil {
			return nil, err
		}
	}
	for i := range raw.CalleeMatchers {
		if err := addMatcher(&raw.CalleeMatchers[i], &rule.calleeMatchers); err != nil {
			return nil, err
		}
	}

	for _, rawAction := range raw.Actions {
		action, err := newAction(rawAction)
		if err != nil {
			return nil, &ActionParseError{Line: line, Err: err}
		}
		rule.actions = append(rule.actions, action)
	}

	return rule, nil
}

// Rules returns the rules in source order.
func (e *Enhancements) Rules() []*Rule {
	return e.rules
}

// ApplyModificationsToFrames matches every modifier rule against every
// frame and returns a copy of the frames with the matching rules' frame
// modifications applied (in-app overrides, category assignments). Frames
// no rule touches come back unchanged.
//
// Each rule runs in two phases: all matching indices are collected first,
// then the actions are applied, so a rule's own writes cannot feed its
// later matches within the same pass. Later rules do see the writes of
// earlier ones.
func (e *Enhancements) ApplyModificationsToFrames(frames []MatchFrame, exc *ExceptionData) []MatchFrame {
	modified := slices.Clone(frames)

	var matching []int
	for _, rule := range e.modifierRules {
		if !rule.matchesException(exc) {
			continue
		}

		matching = matching[:0]
		for idx := range modified {
			if rule.matchesFrame(modified, idx) {
				matching = append(matching, idx)
			}
		}
		for _, idx := range matching {
			rule.applyModificationsToFrame(modified, idx)
		}
	}

	return modified
}

// AssembleStacktraceComponent matches every updater rule against every
// frame and applies the matching rules' flag actions to the caller-supplied
// components, which must parallel the frames. Components are mutated in
// place; every flag write fully overwrites the previous value, so running
// the operation twice with the same inputs leaves the same result.
//
// The returned StacktraceState carries the stacktrace-level variables set
// by var actions. When max-frames is set, contributing components beyond
// the newest max-frames are demoted to non-contributing before returning.
func (e *Enhancements) AssembleStacktraceComponent(frames []MatchFrame, exc *ExceptionData, components []Component) StacktraceState {
	var state StacktraceState

	for _, rule := range e.updaterRules {
		if !rule.matchesException(exc) {
			continue
		}
		for idx := range frames {
			if rule.matchesFrame(frames, idx) {
				rule.updateComponents(components, frames, idx)
				rule.modifyState(&state)
			}
		}
	}

	if state.MaxFrames > 0 {
		trimToMaxFrames(components, state.MaxFrames, state.MaxFramesSetter)
	}

	return state
}

// trimToMaxFrames walks the components newest-first and demotes
// contributing frames beyond the allowed count.
func trimToMaxFrames(components []Component, maxFrames int, setter *Rule) {
	kept := 0
	for i := len(components) - 1; i >= 0; i-- {
		component := &components[i]
		if !component.Contributes.Bool() {
			continue
		}

		kept++
		if kept <= maxFrames {
			continue
		}

		noun := "frames are"
		if maxFrames == 1 {
			noun = "frame is"
		}
		hint := fmt.Sprintf("ignored because only %d %s considered", maxFrames, noun)
		if setter != nil {
			hint = fmt.Sprintf("%s by stack trace rule (%s)", hint, setter)
		}

		component.Contributes = ContributesNo
		component.Hint = hint
	}
}

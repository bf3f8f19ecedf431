package enhancer

import (
	"strings"
)

// Rule is one compiled enhancement rule: exception matchers gating the
// whole trace, frame matchers for the frame under test, optional caller
// and callee lookahead groups, and the actions to run on a match.
//
// Rules are immutable after parsing and safe for concurrent use.
type Rule struct {
	exceptionMatchers []*ExceptionMatcher
	frameMatchers     []*FrameMatcher

	// Lookahead groups scan the adjacent run of frames: the caller group
	// any frame before the one under test, the callee group any frame
	// after it. The group matches if all its clauses hold on some single
	// frame of that run.
	callerMatchers []*FrameMatcher
	calleeMatchers []*FrameMatcher

	actions []Action
}

// matchesException checks the rule's exception matchers against the
// trace-level exception data. Rules without exception matchers match any
// trace.
func (r *Rule) matchesException(exc *ExceptionData) bool {
	for _, m := range r.exceptionMatchers {
		if !m.matchesException(exc) {
			return false
		}
	}
	return true
}

// matchesFrame checks whether the rule holds at frames[idx]. The cheap
// same-frame clauses run first; lookahead groups scan only when those
// hold.
func (r *Rule) matchesFrame(frames []MatchFrame, idx int) bool {
	for _, m := range r.frameMatchers {
		if !m.matchesFrame(frames, idx) {
			return false
		}
	}

	if len(r.callerMatchers) > 0 {
		if !scanAdjacent(r.callerMatchers, frames, idx-1, -1) {
			return false
		}
	}
	if len(r.calleeMatchers) > 0 {
		if !scanAdjacent(r.calleeMatchers, frames, idx+1, 1) {
			return false
		}
	}
	return true
}

// scanAdjacent walks from start towards the edge of the stack in steps of
// dir and reports whether all group clauses hold at some frame on the way.
func scanAdjacent(group []*FrameMatcher, frames []MatchFrame, start, dir int) bool {
	for i := start; i >= 0 && i < len(frames); i += dir {
		ok := true
		for _, m := range group {
			if !m.matchesFrame(frames, i) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// hasModifierAction reports whether any action can change frame contents.
func (r *Rule) hasModifierAction() bool {
	for _, a := range r.actions {
		if a.isModifier() {
			return true
		}
	}
	return false
}

// hasUpdaterAction reports whether any action can change grouping
// metadata.
func (r *Rule) hasUpdaterAction() bool {
	for _, a := range r.actions {
		if a.isUpdater() {
			return true
		}
	}
	return false
}

func (r *Rule) applyModificationsToFrame(frames []MatchFrame, idx int) {
	for _, a := range r.actions {
		a.applyToFrames(frames, idx)
	}
}

func (r *Rule) updateComponents(components []Component, frames []MatchFrame, idx int) {
	for _, a := range r.actions {
		a.updateComponents(components, frames, idx, r)
	}
}

func (r *Rule) modifyState(state *StacktraceState) {
	for _, a := range r.actions {
		a.modifyState(state, r)
	}
}

// String reconstructs the rule's canonical text form; hints embed it so a
// reader can tell which rule produced a flag.
func (r *Rule) String() string {
	var parts []string
	for _, m := range r.exceptionMatchers {
		parts = append(parts, m.String())
	}
	if len(r.callerMatchers) > 0 {
		group := []string{"["}
		for _, m := range r.callerMatchers {
			group = append(group, m.String())
		}
		group = append(group, "]", "|")
		parts = append(parts, strings.Join(group, " "))
	}
	for _, m := range r.frameMatchers {
		parts = append(parts, m.String())
	}
	if len(r.calleeMatchers) > 0 {
		group := []string{"|", "["}
		for _, m := range r.calleeMatchers {
			group = append(group, m.String())
		}
		group = append(group, "]")
		parts = append(parts, strings.Join(group, " "))
	}
	for _, a := range r.actions {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, " ")
}

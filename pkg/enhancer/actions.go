package enhancer

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/stacktide/enhancer/pkg/enhancer/parser"
)

// ActionRange widens a flag action from the matched frame to the frames
// after it (`^`, up) or before it (`v`, down).
type ActionRange int

const (
	RangeNone ActionRange = iota
	RangeUp
	RangeDown
)

func (r ActionRange) String() string {
	switch r {
	case RangeUp:
		return "^"
	case RangeDown:
		return "v"
	default:
		return ""
	}
}

// FlagType names the flag a FlagAction sets. The app flag is the only one
// that also exists on stack frames; the others live on grouping
// components.
type FlagType int

const (
	FlagGroup FlagType = iota
	FlagApp
	FlagPrefix
	FlagSentinel
)

func (t FlagType) String() string {
	switch t {
	case FlagGroup:
		return "group"
	case FlagApp:
		return "app"
	case FlagPrefix:
		return "prefix"
	case FlagSentinel:
		return "sentinel"
	default:
		return "unknown"
	}
}

// Action is one effect of a matched rule. Flag actions write per-frame or
// per-component flags; var actions write stacktrace-level variables (and,
// for category, a frame field).
type Action interface {
	// isModifier reports whether the action can change frame contents.
	isModifier() bool
	// isUpdater reports whether the action can change grouping metadata.
	isUpdater() bool

	applyToFrames(frames []MatchFrame, idx int)
	updateComponents(components []Component, frames []MatchFrame, idx int, rule *Rule)
	modifyState(state *StacktraceState, rule *Rule)

	String() string
}

// FlagAction sets or unsets one flag, on the matched frame or on a range
// of frames around it.
type FlagAction struct {
	Flag  bool
	Type  FlagType
	Range ActionRange
}

// rangeBounds returns the half-open index interval of items the action
// applies to, given the anchor index.
func (a *FlagAction) rangeBounds(n, idx int) (int, int) {
	switch a.Range {
	case RangeUp:
		return idx + 1, n
	case RangeDown:
		return 0, idx
	default:
		if idx < 0 || idx >= n {
			return 0, 0
		}
		return idx, idx + 1
	}
}

func (a *FlagAction) isModifier() bool {
	return a.Type == FlagApp
}

func (a *FlagAction) isUpdater() bool {
	return true
}

func (a *FlagAction) applyToFrames(frames []MatchFrame, idx int) {
	if a.Type != FlagApp {
		return
	}
	lo, hi := a.rangeBounds(len(frames), idx)
	for i := lo; i < hi; i++ {
		if frames[i].OrigInApp == nil {
			frames[i].OrigInApp = frames[i].InApp
		}
		flag := a.Flag
		frames[i].InApp = &flag
	}
}

func (a *FlagAction) updateComponents(components []Component, frames []MatchFrame, idx int, rule *Rule) {
	lo, hi := a.rangeBounds(len(components), idx)
	for i := lo; i < hi; i++ {
		component := &components[i]
		switch a.Type {
		case FlagGroup:
			if component.Contributes.Bool() != a.Flag || !component.Contributes.IsSet() {
				component.Contributes = contributesFromBool(a.Flag)
				state := "ignored"
				if a.Flag {
					state = "un-ignored"
				}
				component.Hint = fmt.Sprintf("%s by stack trace rule (%s)", state, rule)
			}
		case FlagApp:
			component.Contributes = contributesFromBool(a.Flag)
			state := "out of app"
			if a.Flag {
				state = "in-app"
			}
			component.Hint = fmt.Sprintf("marked %s by stack trace rule (%s)", state, rule)
		case FlagPrefix:
			component.IsPrefixFrame = a.Flag
			component.Hint = fmt.Sprintf("marked as prefix frame by stack trace rule (%s)", rule)
		case FlagSentinel:
			component.IsSentinelFrame = a.Flag
			component.Hint = fmt.Sprintf("marked as sentinel frame by stack trace rule (%s)", rule)
		}
	}
}

func (a *FlagAction) modifyState(state *StacktraceState, rule *Rule) {}

func (a *FlagAction) String() string {
	var out bytes.Buffer
	out.WriteString(a.Range.String())
	if a.Flag {
		out.WriteString("+")
	} else {
		out.WriteString("-")
	}
	out.WriteString(a.Type.String())
	return out.String()
}

// VarName names a stacktrace variable a VarAction assigns.
type VarName int

const (
	VarMaxFrames VarName = iota
	VarMinFrames
	VarInvertStacktrace
	VarCategory
)

func (v VarName) String() string {
	switch v {
	case VarMaxFrames:
		return "max-frames"
	case VarMinFrames:
		return "min-frames"
	case VarInvertStacktrace:
		return "invert-stacktrace"
	case VarCategory:
		return "category"
	default:
		return "unknown"
	}
}

// VarAction assigns a stacktrace variable. The category variable is the
// odd one out: it writes the matched frame's category field instead of
// the stacktrace state.
type VarAction struct {
	Var      VarName
	Number   int    // max-frames, min-frames
	Bool     bool   // invert-stacktrace
	Category string // category
}

func (a *VarAction) isModifier() bool {
	return a.Var == VarCategory
}

func (a *VarAction) isUpdater() bool {
	return a.Var != VarCategory
}

func (a *VarAction) applyToFrames(frames []MatchFrame, idx int) {
	if a.Var != VarCategory {
		return
	}
	if idx < 0 || idx >= len(frames) {
		return
	}
	category := a.Category
	frames[idx].Category = &category
}

func (a *VarAction) updateComponents(components []Component, frames []MatchFrame, idx int, rule *Rule) {
}

func (a *VarAction) modifyState(state *StacktraceState, rule *Rule) {
	switch a.Var {
	case VarMaxFrames:
		state.MaxFrames = a.Number
		state.MaxFramesSetter = rule
	case VarMinFrames:
		state.MinFrames = a.Number
		state.MinFramesSetter = rule
	case VarInvertStacktrace:
		state.InvertStacktrace = a.Bool
		state.InvertStacktraceSetter = rule
	}
}

func (a *VarAction) String() string {
	switch a.Var {
	case VarMaxFrames, VarMinFrames:
		return fmt.Sprintf("%s=%d", a.Var, a.Number)
	case VarInvertStacktrace:
		return fmt.Sprintf("%s=%t", a.Var, a.Bool)
	default:
		return fmt.Sprintf("%s=%s", a.Var, a.Category)
	}
}

// newAction compiles one raw action clause. Flag and var names have been
// validated by the grammar parser; failures here are bad values on the
// right-hand side of a var action.
func newAction(raw parser.RawAction) (Action, error) {
	switch raw := raw.(type) {
	case *parser.RawFlagAction:
		action := &FlagAction{Flag: raw.Set}
		switch raw.Range {
		case '^':
			action.Range = RangeUp
		case 'v':
			action.Range = RangeDown
		}
		switch raw.Name {
		case "group":
			action.Type = FlagGroup
		case "app":
			action.Type = FlagApp
		case "prefix":
			action.Type = FlagPrefix
		case "sentinel":
			action.Type = FlagSentinel
		default:
			return nil, fmt.Errorf("unknown flag `%s`", raw.Name)
		}
		return action, nil

	case *parser.RawVarAction:
		switch raw.Name {
		case "max-frames", "min-frames":
			n, err := strconv.Atoi(raw.Value)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid value `%s` for `%s`", raw.Value, raw.Name)
			}
			name := VarMaxFrames
			if raw.Name == "min-frames" {
				name = VarMinFrames
			}
			return &VarAction{Var: name, Number: n}, nil
		case "invert-stacktrace":
			b, err := parseBoolLiteral(raw.Value)
			if err != nil {
				return nil, fmt.Errorf("invalid value `%s` for `invert-stacktrace`", raw.Value)
			}
			return &VarAction{Var: VarInvertStacktrace, Bool: b}, nil
		case "category":
			return &VarAction{Var: VarCategory, Category: raw.Value}, nil
		}
		return nil, fmt.Errorf("unknown variable `%s`", raw.Name)
	}

	return nil, fmt.Errorf("unknown action kind %T", raw)
}

func parseBoolLiteral(value string) (bool, error) {
	switch value {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean literal `%s`", value)
}

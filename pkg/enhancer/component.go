package enhancer

// Contributes is the tri-state contribution flag of a Component. A fresh
// component is unset until some rule decides either way.
type Contributes int

const (
	ContributesUnset Contributes = iota
	ContributesNo
	ContributesYes
)

func contributesFromBool(b bool) Contributes {
	if b {
		return ContributesYes
	}
	return ContributesNo
}

// Bool collapses the tri-state to a plain bool; unset counts as false.
func (c Contributes) Bool() bool {
	return c == ContributesYes
}

// IsSet reports whether any rule has decided the flag.
func (c Contributes) IsSet() bool {
	return c != ContributesUnset
}

func (c Contributes) String() string {
	switch c {
	case ContributesYes:
		return "yes"
	case ContributesNo:
		return "no"
	default:
		return "unset"
	}
}

// Component is the per-frame output record of AssembleStacktraceComponent:
// whether the frame contributes to the grouping identity, and whether it
// plays a special role. Hint records, in human-readable form, the rule
// responsible for the last flag write.
type Component struct {
	Contributes     Contributes
	IsPrefixFrame   bool
	IsSentinelFrame bool
	Hint            string
}

// StacktraceState collects the stacktrace-level variables set by var
// actions during component assembly, together with the rule that set each
// one last.
type StacktraceState struct {
	MaxFrames        int
	MinFrames        int
	InvertStacktrace bool

	MaxFramesSetter        *Rule
	MinFramesSetter        *Rule
	InvertStacktraceSetter *Rule
}

package enhancer

import (
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// The compact config structure is the wire form the hosting system ships
// rule sets in: msgpack `[version, bases, [[matchers...], [actions...]]]`
// with single-letter field abbreviations for matchers and bit-packed
// integers for flag actions.

// configStructureVersion is the only encoding version this package reads.
const configStructureVersion = 2

// flagActionTypes lists the flag types in bitfield encoding order.
var flagActionTypes = []FlagType{FlagGroup, FlagApp, FlagPrefix, FlagSentinel}

// flagActionValues lists (flag, range) pairs in bitfield encoding order.
var flagActionValues = []struct {
	flag bool
	rng  ActionRange
}{
	{true, RangeNone},
	{true, RangeUp},
	{true, RangeDown},
	{false, RangeNone},
	{false, RangeUp},
	{false, RangeDown},
}

const (
	// flagActionValueOffset is the bit offset of the value/range part.
	flagActionValueOffset = 8
	// flagActionTypeMask isolates the flag type part.
	flagActionTypeMask = 0xF
)

type encodedEnhancements struct {
	_msgpack struct{} `msgpack:",as_array"`

	Version int
	Bases   []string
	Rules   []encodedRule
}

type encodedRule struct {
	_msgpack struct{} `msgpack:",as_array"`

	Matchers []string
	Actions  []any
}

// FromConfigStructure decodes Enhancements from the compact msgpack form.
// The cache plays the same role as in Parse.
func FromConfigStructure(data []byte, cache *PatternCache) (*Enhancements, error) {
	if cache == nil {
		cache = NewPatternCache(0)
	}

	var encoded encodedEnhancements
	if err := msgpack.Unmarshal(data, &encoded); err != nil {
		return nil, fmt.Errorf("invalid config structure: %w", err)
	}

	if encoded.Version != configStructureVersion {
		return nil, fmt.Errorf("unsupported config structure version %d", encoded.Version)
	}

	rules := make([]*Rule, 0, len(encoded.Rules))
	for _, encodedRule := range encoded.Rules {
		rule := &Rule{}

		for _, def := range encodedRule.Matchers {
			if err := decodeMatcher(def, rule, cache); err != nil {
				return nil, err
			}
		}
		for _, def := range encodedRule.Actions {
			action, err := decodeAction(def)
			if err != nil {
				return nil, err
			}
			rule.actions = append(rule.actions, action)
		}

		rules = append(rules, rule)
	}

	return newEnhancements(rules), nil
}

// decodeMatcher expands one abbreviated matcher and adds it to the rule.
func decodeMatcher(def string, rule *Rule, cache *PatternCache) error {
	raw := def
	group := (*[]*FrameMatcher)(nil)

	switch {
	case strings.HasPrefix(def, "|[") && strings.HasSuffix(def, "]"):
		group = &rule.calleeMatchers
		def = def[2 : len(def)-1]
	case strings.HasPrefix(def, "[") && strings.HasSuffix(def, "]|"):
		group = &rule.callerMatchers
		def = def[1 : len(def)-2]
	}

	negated := false
	if rest, ok := strings.CutPrefix(def, "!"); ok {
		negated = true
		def = rest
	}

	if def == "" {
		return fmt.Errorf("unable to decode matcher `%s`", raw)
	}

	key, arg := def[:1], def[1:]
	var matcherType string
	switch key {
	case "p":
		matcherType = "path"
	case "f":
		matcherType = "function"
	case "m":
		matcherType = "module"
	case "P":
		matcherType = "package"
	case "a":
		matcherType = "app"
	case "t":
		matcherType = "type"
	case "v":
		matcherType = "value"
	case "M":
		matcherType = "mechanism"
	case "c":
		matcherType = "category"
	case "F":
		matcherType = "family"
		var families []string
		for _, f := range arg {
			switch f {
			case 'N':
				families = append(families, "native")
			case 'J':
				families = append(families, "javascript")
			case 'a':
				families = append(families, "all")
			}
		}
		arg = strings.Join(families, ",")
	default:
		return fmt.Errorf("unable to decode matcher `%s`", raw)
	}

	m, err := newMatcher(negated, matcherType, arg, cache)
	if err != nil {
		return fmt.Errorf("unable to decode matcher `%s`: %w", raw, err)
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

// decodeAction expands one encoded action: a bit-packed integer for flag
// actions, a (name, value) pair for var actions.
func decodeAction(def any) (Action, error) {
	if n, ok := asInt(def); ok {
		ty := n & flagActionTypeMask
		if ty >= len(flagActionTypes) {
			return nil, fmt.Errorf("unable to decode flag action `%d`", n)
		}
		value := n >> flagActionValueOffset
		if value >= len(flagActionValues) {
			return nil, fmt.Errorf("unable to decode flag action `%d`", n)
		}
		return &FlagAction{
			Flag:  flagActionValues[value].flag,
			Type:  flagActionTypes[ty],
			Range: flagActionValues[value].rng,
		}, nil
	}

	pair, ok := def.([]any)
	if !ok || len(pair) != 2 {
		return nil, fmt.Errorf("unable to decode action `%v`", def)
	}
	name, ok := pair[0].(string)
	if !ok {
		return nil, fmt.Errorf("unable to decode action `%v`", def)
	}

	switch name {
	case "max-frames", "min-frames":
		n, ok := asInt(pair[1])
		if !ok || n < 0 {
			return nil, fmt.Errorf("unable to decode action `%v`", def)
		}
		varName := VarMaxFrames
		if name == "min-frames" {
			varName = VarMinFrames
		}
		return &VarAction{Var: varName, Number: n}, nil
	case "invert-stacktrace":
		b, ok := pair[1].(bool)
		if !ok {
			return nil, fmt.Errorf("unable to decode action `%v`", def)
		}
		return &VarAction{Var: VarInvertStacktrace, Bool: b}, nil
	case "category":
		s, ok := pair[1].(string)
		if !ok {
			return nil, fmt.Errorf("unable to decode action `%v`", def)
		}
		return &VarAction{Var: VarCategory, Category: s}, nil
	}

	return nil, fmt.Errorf("unable to decode action `%v`", def)
}

// asInt accepts the integer widths msgpack decoding may produce.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}

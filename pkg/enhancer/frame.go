package enhancer

import "strings"

// FrameField identifies one of the string-valued frame fields a matcher
// can select. Resolving the field once at parse time keeps string dispatch
// out of the matching loop.
type FrameField int

const (
	FieldCategory FrameField = iota
	FieldFamily
	FieldFunction
	FieldModule
	FieldPackage
	FieldPath
)

func (f FrameField) String() string {
	switch f {
	case FieldCategory:
		return "category"
	case FieldFamily:
		return "family"
	case FieldFunction:
		return "function"
	case FieldModule:
		return "module"
	case FieldPackage:
		return "package"
	case FieldPath:
		return "path"
	default:
		return "unknown"
	}
}

// MatchFrame is the flat, normalized projection of a stack frame that rules
// match against. Absent fields are nil, never the empty string, so a
// matcher can tell "missing" from "empty". The package and path fields are
// expected to be lowercased with forward slashes; CreateMatchFrame takes
// care of that.
type MatchFrame struct {
	Category *string
	Family   *string
	Function *string
	Module   *string
	Package  *string
	Path     *string

	// InApp is the frame's current in-app flag; nil counts as false.
	// OrigInApp preserves the flag as it was before any rule touched it.
	InApp     *bool
	OrigInApp *bool
}

// Field returns the value of the selected string field, or nil if the
// frame does not carry it.
func (f *MatchFrame) Field(field FrameField) *string {
	switch field {
	case FieldCategory:
		return f.Category
	case FieldFamily:
		return f.Family
	case FieldFunction:
		return f.Function
	case FieldModule:
		return f.Module
	case FieldPackage:
		return f.Package
	case FieldPath:
		return f.Path
	default:
		return nil
	}
}

func (f *MatchFrame) inApp() bool {
	return f.InApp != nil && *f.InApp
}

// CreateMatchFrame flattens a raw frame (as found in an event payload)
// into a MatchFrame. The platform argument is the event-level platform,
// used when the frame does not carry its own. Path-like values are
// lowercased and backslash-normalized here so matching is case- and
// separator-insensitive for them.
func CreateMatchFrame(raw map[string]any, platform string) MatchFrame {
	frame := MatchFrame{
		Category:  rawString(rawPath(raw, "data", "category")),
		Family:    rawString(raw["platform"]),
		Function:  rawString(raw["function"]),
		Module:    rawString(raw["module"]),
		Package:   normalizePathLike(rawString(raw["package"])),
		InApp:     rawBool(raw["in_app"]),
		OrigInApp: rawBool(rawPath(raw, "data", "orig_in_app")),
	}

	if frame.Family == nil && platform != "" {
		frame.Family = &platform
	}

	path := rawString(raw["abs_path"])
	if path == nil {
		path = rawString(raw["filename"])
	}
	frame.Path = normalizePathLike(path)

	return frame
}

func normalizePathLike(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToLower(strings.ReplaceAll(*s, `\`, "/"))
	return &v
}

func rawPath(raw map[string]any, keys ...string) any {
	var cur any = raw
	for _, key := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

func rawString(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func rawBool(v any) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	return nil
}

// ExceptionData is the exception-level metadata a rule can match on. All
// fields are optional; an absent field matches as the literal "<unknown>".
type ExceptionData struct {
	Type      *string
	Value     *string
	Mechanism *string
}

package enhancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

func parseRules(t *testing.T, text string) *Enhancements {
	t.Helper()
	rules, err := Parse(text, nil)
	require.NoError(t, err)
	return rules
}

func TestParseRuleSet(t *testing.T) {
	rules := parseRules(t, `
# test rules
path:**/node_modules/** -app

function:connect_* +sentinel
type:DatabaseError max-frames=5
`)
	assert.Len(t, rules.Rules(), 3)
}

func TestParseErrors(t *testing.T) {
	t.Run("UnknownMatcherType", func(t *testing.T) {
		_, err := Parse(`invalid.message:foo -> bar`, nil)
		require.Error(t, err)
		var matcherErr *MatcherParseError
		assert.ErrorAs(t, err, &matcherErr)
		assert.Contains(t, err.Error(), "failed to parse matchers")
	})

	t.Run("SecondCallerGroup", func(t *testing.T) {
		_, err := Parse(`[ category:foo ] | [ category:bar ] | category:baz +app`, nil)
		require.Error(t, err)
		var matcherErr *MatcherParseError
		assert.ErrorAs(t, err, &matcherErr)
	})

	t.Run("SecondCalleeGroup", func(t *testing.T) {
		_, err := Parse(` category:foo | [ category:bar ] | [ category:baz ] +app`, nil)
		require.Error(t, err)
		var actionErr *ActionParseError
		assert.ErrorAs(t, err, &actionErr)
	})

	t.Run("BadPattern", func(t *testing.T) {
		_, err := Parse(`function:[ +app`, nil)
		require.Error(t, err)
		var matcherErr *MatcherParseError
		assert.ErrorAs(t, err, &matcherErr)
	})

	t.Run("BadVarValue", func(t *testing.T) {
		_, err := Parse(`function:run max-frames=many`, nil)
		require.Error(t, err)
		var actionErr *ActionParseError
		assert.ErrorAs(t, err, &actionErr)
	})

	t.Run("AllOrNothing", func(t *testing.T) {
		_, err := Parse("path:**/a.js +app\nbroken", nil)
		require.Error(t, err)
	})
}

func TestApplyModificationsInApp(t *testing.T) {
	rules := parseRules(t, `path:**/node_modules/** -app`)

	frames := []MatchFrame{
		{Path: strp("/app/src/index.js"), InApp: boolp(true)},
		{Path: strp("/app/node_modules/lib/foo.js"), InApp: boolp(true)},
	}

	modified := rules.ApplyModificationsToFrames(frames, nil)

	require.NotNil(t, modified[0].InApp)
	assert.True(t, *modified[0].InApp)
	assert.Nil(t, modified[0].OrigInApp)

	require.NotNil(t, modified[1].InApp)
	assert.False(t, *modified[1].InApp)
	require.NotNil(t, modified[1].OrigInApp)
	assert.True(t, *modified[1].OrigInApp, "original flag preserved")

	// Input slice untouched.
	assert.True(t, *frames[1].InApp)
}

func TestApplyModificationsMatchesOldInApp(t *testing.T) {
	// The app matcher sees the flag as it stands when the rule runs, so a
	// rule can flip exactly the frames that are currently out of app.
	rules := parseRules(t, `app:no path:**/src/** +app`)

	frames := []MatchFrame{
		{Path: strp("/x/src/a.js"), InApp: boolp(false)},
		{Path: strp("/x/src/b.js"), InApp: boolp(true)},
	}

	modified := rules.ApplyModificationsToFrames(frames, nil)

	assert.True(t, *modified[0].InApp)
	require.NotNil(t, modified[0].OrigInApp)
	assert.False(t, *modified[0].OrigInApp)

	assert.True(t, *modified[1].InApp)
	assert.Nil(t, modified[1].OrigInApp, "unmatched frame untouched")
}

func TestApplyModificationsCollectsBeforeApplying(t *testing.T) {
	// Both out-of-app frames match before either write lands; the rule's
	// own writes must not feed its matches within the same pass.
	rules := parseRules(t, `app:no v+app`)

	frames := []MatchFrame{
		{Function: strp("a"), InApp: boolp(false)},
		{Function: strp("b"), InApp: boolp(false)},
	}

	modified := rules.ApplyModificationsToFrames(frames, nil)

	// frames[1] matched as out-of-app and its down-range covers frames[0].
	assert.False(t, *modified[1].InApp)
	assert.True(t, *modified[0].InApp)
}

func TestApplyModificationsCategory(t *testing.T) {
	rules := parseRules(t, `function:malloc category=memory`)

	frames := []MatchFrame{
		{Function: strp("malloc")},
		{Function: strp("main")},
	}

	modified := rules.ApplyModificationsToFrames(frames, nil)

	require.NotNil(t, modified[0].Category)
	assert.Equal(t, "memory", *modified[0].Category)
	assert.Nil(t, modified[1].Category)
}

func TestApplyModificationsRuleOrder(t *testing.T) {
	// Later rules see earlier rules' writes and win on conflict.
	rules := parseRules(t, `
function:handler category=http
category:http function:handler category=web
`)

	frames := []MatchFrame{{Function: strp("handler")}}
	modified := rules.ApplyModificationsToFrames(frames, nil)

	require.NotNil(t, modified[0].Category)
	assert.Equal(t, "web", *modified[0].Category)
}

func TestApplyModificationsExceptionGate(t *testing.T) {
	rules := parseRules(t, `type:DatabaseError function:* category=db`)

	frames := []MatchFrame{{Function: strp("query")}}

	modified := rules.ApplyModificationsToFrames(frames, &ExceptionData{Type: strp("DatabaseError")})
	require.NotNil(t, modified[0].Category)

	modified = rules.ApplyModificationsToFrames(frames, &ExceptionData{Type: strp("ValueError")})
	assert.Nil(t, modified[0].Category)

	// Absent exception data matches as the literal "<unknown>".
	modified = rules.ApplyModificationsToFrames(frames, nil)
	assert.Nil(t, modified[0].Category)

	unknown := parseRules(t, `type:"<unknown>" function:* category=unknown`)
	modified = unknown.ApplyModificationsToFrames(frames, nil)
	require.NotNil(t, modified[0].Category)
	assert.Equal(t, "unknown", *modified[0].Category)
}

func TestApplyModificationsIdempotent(t *testing.T) {
	rules := parseRules(t, `path:**/vendor/** -app`)

	frames := []MatchFrame{
		{Path: strp("/app/vendor/lib.js"), InApp: boolp(true)},
	}

	once := rules.ApplyModificationsToFrames(frames, nil)
	twice := rules.ApplyModificationsToFrames(once, nil)

	assert.Equal(t, once, twice)
	require.NotNil(t, twice[0].OrigInApp)
	assert.True(t, *twice[0].OrigInApp, "orig flag survives reapplication")
}

func TestAssembleComponentFlags(t *testing.T) {
	rules := parseRules(t, `
function:connect_* +sentinel
module:*.templates -group
function:raise_* +prefix
`)

	frames := []MatchFrame{
		{Function: strp("connect_db")},
		{Module: strp("django.templates")},
		{Function: strp("raise_error")},
		{Function: strp("main")},
	}

	components := make([]Component, len(frames))
	rules.AssembleStacktraceComponent(frames, nil, components)

	assert.True(t, components[0].IsSentinelFrame)
	assert.Contains(t, components[0].Hint, "marked as sentinel frame by stack trace rule (function:connect_* +sentinel)")

	assert.Equal(t, ContributesNo, components[1].Contributes)
	assert.Contains(t, components[1].Hint, "ignored by stack trace rule")

	assert.True(t, components[2].IsPrefixFrame)
	assert.Contains(t, components[2].Hint, "marked as prefix frame")

	assert.Equal(t, ContributesUnset, components[3].Contributes)
	assert.Empty(t, components[3].Hint)
}

func TestAssembleComponentGroupHintOnlyOnChange(t *testing.T) {
	// A group action that re-asserts the current value leaves the hint
	// alone; the first decision on an unset component always writes one.
	rules := parseRules(t, `
function:a -group
function:* -group
`)

	frames := []MatchFrame{{Function: strp("a")}}
	components := make([]Component, 1)
	rules.AssembleStacktraceComponent(frames, nil, components)

	assert.Equal(t, ContributesNo, components[0].Contributes)
	assert.Contains(t, components[0].Hint, "(function:a -group)")
}

func TestAssembleComponentAppAction(t *testing.T) {
	rules := parseRules(t, `path:**/node_modules/** -app`)

	frames := []MatchFrame{
		{Path: strp("/app/node_modules/x.js")},
		{Path: strp("/app/src/y.js")},
	}

	components := make([]Component, 2)
	rules.AssembleStacktraceComponent(frames, nil, components)

	assert.Equal(t, ContributesNo, components[0].Contributes)
	assert.Contains(t, components[0].Hint, "marked out of app")
	assert.Equal(t, ContributesUnset, components[1].Contributes)
}

func TestAssembleComponentRangeActions(t *testing.T) {
	rules := parseRules(t, `function:invoke_user_code ^-group`)

	frames := []MatchFrame{
		{Function: strp("runtime_entry")},
		{Function: strp("invoke_user_code")},
		{Function: strp("user_a")},
		{Function: strp("user_b")},
	}

	components := make([]Component, len(frames))
	rules.AssembleStacktraceComponent(frames, nil, components)

	// Up applies to the frames after the match, not the match itself.
	assert.Equal(t, ContributesUnset, components[0].Contributes)
	assert.Equal(t, ContributesUnset, components[1].Contributes)
	assert.Equal(t, ContributesNo, components[2].Contributes)
	assert.Equal(t, ContributesNo, components[3].Contributes)
}

func TestAssembleStacktraceState(t *testing.T) {
	rules := parseRules(t, `
type:RecursionError max-frames=2 min-frames=1
function:main invert-stacktrace=true
`)

	frames := []MatchFrame{{Function: strp("main")}}
	components := make([]Component, 1)

	state := rules.AssembleStacktraceComponent(frames, &ExceptionData{Type: strp("RecursionError")}, components)

	assert.Equal(t, 2, state.MaxFrames)
	assert.Equal(t, 1, state.MinFrames)
	assert.True(t, state.InvertStacktrace)
	require.NotNil(t, state.MaxFramesSetter)
	assert.Contains(t, state.MaxFramesSetter.String(), "max-frames=2")
}

func TestAssembleMaxFramesTrimsOldest(t *testing.T) {
	rules := parseRules(t, `function:* +group max-frames=2`)

	frames := []MatchFrame{
		{Function: strp("oldest")},
		{Function: strp("middle")},
		{Function: strp("newest")},
	}

	components := make([]Component, len(frames))
	state := rules.AssembleStacktraceComponent(frames, nil, components)

	assert.Equal(t, 2, state.MaxFrames)

	// The newest two contributing frames survive; the oldest is demoted.
	assert.Equal(t, ContributesNo, components[0].Contributes)
	assert.Contains(t, components[0].Hint, "ignored because only 2 frames are considered")
	assert.Contains(t, components[0].Hint, "by stack trace rule (function:* +group max-frames=2)")
	assert.Equal(t, ContributesYes, components[1].Contributes)
	assert.Equal(t, ContributesYes, components[2].Contributes)
}

func TestAssembleMaxFramesSkipsNonContributing(t *testing.T) {
	rules := parseRules(t, `
function:* +group
function:noise -group
function:* max-frames=1
`)

	frames := []MatchFrame{
		{Function: strp("keep_me")},
		{Function: strp("noise")},
		{Function: strp("newest")},
	}

	components := make([]Component, len(frames))
	rules.AssembleStacktraceComponent(frames, nil, components)

	// Non-contributing frames do not count against the budget but the
	// oldest contributing frame beyond it is demoted.
	assert.Equal(t, ContributesNo, components[0].Contributes)
	assert.Contains(t, components[0].Hint, "only 1 frame is considered")
	assert.Equal(t, ContributesNo, components[1].Contributes)
	assert.Equal(t, ContributesYes, components[2].Contributes)
}

func TestAssembleIdempotent(t *testing.T) {
	rules := parseRules(t, `
function:a +sentinel
function:* -group
`)

	frames := []MatchFrame{{Function: strp("a")}, {Function: strp("b")}}

	first := make([]Component, 2)
	rules.AssembleStacktraceComponent(frames, nil, first)

	second := make([]Component, 2)
	copy(second, first)
	rules.AssembleStacktraceComponent(frames, nil, second)

	assert.Equal(t, first, second)
}

func TestLookaheadGroups(t *testing.T) {
	t.Run("CalleeScansWholeRun", func(t *testing.T) {
		// The callee group may match any frame after the one under test,
		// not just the immediate neighbor.
		rules := parseRules(t, `function:entry | [ category:leaf ] +sentinel`)

		frames := []MatchFrame{
			{Function: strp("entry")},
			{Function: strp("between")},
			{Function: strp("end"), Category: strp("leaf")},
		}

		components := make([]Component, len(frames))
		rules.AssembleStacktraceComponent(frames, nil, components)
		assert.True(t, components[0].IsSentinelFrame)
	})

	t.Run("CallerScansWholeRun", func(t *testing.T) {
		rules := parseRules(t, `[ category:root ] | function:leaf -group`)

		frames := []MatchFrame{
			{Function: strp("start"), Category: strp("root")},
			{Function: strp("between")},
			{Function: strp("leaf")},
		}

		components := make([]Component, len(frames))
		rules.AssembleStacktraceComponent(frames, nil, components)
		assert.Equal(t, ContributesNo, components[2].Contributes)
	})

	t.Run("GroupClausesMustHoldOnOneFrame", func(t *testing.T) {
		rules := parseRules(t, `function:leaf | [ category:io module:net ] -group`)

		frames := []MatchFrame{
			{Function: strp("leaf")},
			{Category: strp("io")},
			{Module: strp("net")},
		}

		// io and net are on different frames, so the group never holds.
		components := make([]Component, len(frames))
		rules.AssembleStacktraceComponent(frames, nil, components)
		assert.Equal(t, ContributesUnset, components[0].Contributes)
	})

	t.Run("NoAdjacentRun", func(t *testing.T) {
		rules := parseRules(t, `[ category:any ] | function:* -group`)

		frames := []MatchFrame{{Function: strp("only"), Category: strp("any")}}
		components := make([]Component, 1)
		rules.AssembleStacktraceComponent(frames, nil, components)
		// The only frame has no callers at all.
		assert.Equal(t, ContributesUnset, components[0].Contributes)
	})

	t.Run("ExplicitOffsetIsExact", func(t *testing.T) {
		rules := parseRules(t, `caller.category:root function:leaf -group`)

		frames := []MatchFrame{
			{Category: strp("root")},
			{Function: strp("between")},
			{Function: strp("leaf")},
		}

		// caller. pins the clause to the immediate neighbor only.
		components := make([]Component, len(frames))
		rules.AssembleStacktraceComponent(frames, nil, components)
		assert.Equal(t, ContributesUnset, components[2].Contributes)
	})
}

func TestModifierUpdaterSplit(t *testing.T) {
	rules := parseRules(t, `
function:a +sentinel
function:b category=io
function:c -app
`)

	// +sentinel never modifies frames; category never updates components.
	frames := []MatchFrame{
		{Function: strp("a"), InApp: boolp(true)},
		{Function: strp("b")},
		{Function: strp("c"), InApp: boolp(true)},
	}

	modified := rules.ApplyModificationsToFrames(frames, nil)
	assert.True(t, *modified[0].InApp)
	assert.Equal(t, "io", *modified[1].Category)
	assert.False(t, *modified[2].InApp)

	components := make([]Component, len(frames))
	rules.AssembleStacktraceComponent(frames, nil, components)
	assert.True(t, components[0].IsSentinelFrame)
	assert.Equal(t, ContributesUnset, components[1].Contributes)
	assert.Equal(t, ContributesNo, components[2].Contributes)
}

func TestRuleString(t *testing.T) {
	for _, line := range []string{
		`path:**/test.js +app`,
		`type:DatabaseError function:* category=db`,
		`[ module:db ] | function:run | [ category:sql ] +sentinel max-frames=3`,
		`family:native !function:std::* ^-group`,
	} {
		rules := parseRules(t, line)
		require.Len(t, rules.Rules(), 1)
		assert.Equal(t, line, rules.Rules()[0].String())
	}
}

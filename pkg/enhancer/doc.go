// Package enhancer implements a rule engine for reshaping stack traces
// before grouping. Rules are written in a small line-oriented DSL and
// applied to flattened stack frames in two passes.
//
// # Overview
//
// A rule set is a text document, one rule per line. Each rule pairs a
// sequence of matchers with a sequence of actions:
//
//	path:**/node_modules/** -app
//	function:connect_*      +sentinel
//	type:DatabaseError      max-frames=5
//
// Matchers select frames by field globs (function, module, path, package,
// category), by family, by the in-app flag, or by exception-level data
// (type, value, mechanism). A matcher may look at the caller or callee of
// the frame under test, and bracketed groups extend that lookahead to the
// whole adjacent run of frames:
//
//	[ function:prepare ] | function:run | [ category:sql ]
//
// Actions either modify frame contents (in-app overrides, category
// assignment) or update grouping metadata (contribution, prefix and
// sentinel flags, stacktrace-level variables such as max-frames).
//
// # Quick Start
//
//	cache := enhancer.NewPatternCache(1000)
//	rules, err := enhancer.Parse(`
//		path:**/test.js +app
//		family:native function:std::* -group
//	`, cache)
//	if err != nil {
//		// *MatcherParseError or *ActionParseError
//	}
//
//	frames = rules.ApplyModificationsToFrames(frames, exc)
//
//	components := make([]enhancer.Component, len(frames))
//	state := rules.AssembleStacktraceComponent(frames, exc, components)
//
// Rule sets are immutable after parsing and safe for concurrent use. The
// pattern cache may be shared between Parse calls to reuse compiled globs;
// results are identical with or without a cache.
//
// # Architecture
//
//   - parser: DSL lexical analysis and raw clause extraction
//   - matchers: compiled per-frame and per-exception predicates
//   - actions: frame modifiers and component updaters
//   - Enhancements: ordered rule set and the two public passes
package enhancer

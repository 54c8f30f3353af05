// Package adjudicator provides a generic, type-indexed rule resolution engine.
//
// Callers declare rules - pure functions from a set of input types to one
// output type - and ask the engine for an output type given a bag of typed
// parameters. At query time the engine finds the unique ordered plan of rule
// invocations that transforms the available types into the requested type,
// executes the plan, and memoizes rule results in a content-addressed cache.
//
// The engine never guesses between competing plans: if two structurally
// distinct rule compositions satisfy the same query, resolution fails with
// MultipleMatchingRulesError and the rule set must be restructured.
package adjudicator

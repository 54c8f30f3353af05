package adjudicator

import (
	"fmt"
	"log/slog"
)

// Executor runs a single rule against resolved inputs, consulting and
// populating a Cache. A nil cache makes every execution invoke the body; the
// default engine configuration wraps a MemoryCache.
type Executor struct {
	cache Cache
}

// NewExecutor creates an executor backed by cache. Pass nil for uncached
// execution.
func NewExecutor(cache Cache) *Executor {
	return &Executor{cache: cache}
}

// Execute runs one rule. The inputs bag is filtered down to exactly the
// rule's declared input types before hashing or invocation, so surplus
// params in the working set never perturb the cache key.
//
// Cache key: domain hash of (rule ID, content hash of filtered inputs).
// On a hit the body is skipped entirely. The body's return value is checked
// against the declared output type; a mismatch is a ContractError.
func (x *Executor) Execute(rule *Rule, inputs *Params, hash *HashSupport) (any, error) {
	filtered := inputs.Filter(rule.Inputs)
	if missing := rule.Inputs.Diff(filtered.Types()); missing.Len() > 0 {
		return nil, fmt.Errorf("rule %s: missing inputs %s", rule.ID, missing)
	}

	var key string
	if x.cache != nil {
		inputHash, err := filtered.Hash(hash)
		if err != nil {
			return nil, fmt.Errorf("rule %s: hash inputs: %w", rule.ID, err)
		}
		key = hashWithDomain(domainInvocation, []byte(rule.ID+"\x00"+inputHash))
		if cached, ok := x.cache.Get(key); ok {
			slog.Debug("rule cache hit", "rule", rule.ID, "key", key)
			return cached, nil
		}
	}

	if rule.Body == nil {
		return nil, fmt.Errorf("rule %s has no body", rule.ID)
	}
	output, err := rule.Body(filtered)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	if !rule.Output.assignable(output) {
		return nil, &ContractError{RuleID: rule.ID, Want: rule.Output, Got: fmt.Sprintf("%T", output)}
	}

	if x.cache != nil {
		x.cache.Put(key, output)
	}
	return output, nil
}

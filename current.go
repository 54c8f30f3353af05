package adjudicator

import (
	"errors"
	"sync"
)

// The ambient current-engine stack. Ergonomic call sites (deep inside rule
// bodies, or application glue that would otherwise thread an engine handle
// through every signature) resolve against whichever engine is current.
// Prefer passing the engine explicitly where feasible; this is the fallback.
var (
	currentMu    sync.Mutex
	currentStack []*Engine
)

// ErrNoCurrentEngine is returned when no engine is current on the ambient
// stack.
var ErrNoCurrentEngine = errors.New("no current engine")

// AsCurrent pushes the engine onto the ambient stack and returns a release
// func that pops it. The release must run on every exit path:
//
//	release := engine.AsCurrent()
//	defer release()
//
// Nesting is supported - the innermost active engine wins - and release is
// idempotent.
func (e *Engine) AsCurrent() (release func()) {
	currentMu.Lock()
	currentStack = append(currentStack, e)
	currentMu.Unlock()

	released := false
	return func() {
		currentMu.Lock()
		defer currentMu.Unlock()
		if released {
			return
		}
		if len(currentStack) == 0 || currentStack[len(currentStack)-1] != e {
			panic("adjudicator: unbalanced AsCurrent release")
		}
		released = true
		currentStack = currentStack[:len(currentStack)-1]
	}
}

// Current returns the innermost engine made current via AsCurrent, or
// ErrNoCurrentEngine if the stack is empty.
func Current() (*Engine, error) {
	currentMu.Lock()
	defer currentMu.Unlock()
	if len(currentStack) == 0 {
		return nil, ErrNoCurrentEngine
	}
	return currentStack[len(currentStack)-1], nil
}

// Get resolves an output type against the current engine, building Params
// from the given values (each keyed by its dynamic type).
//
//	answer, err := adjudicator.Get[Report](request, config)
func Get[T any](values ...any) (T, error) {
	var zero T
	engine, err := Current()
	if err != nil {
		return zero, err
	}
	return Resolve[T](engine, NewParams(values...))
}

// GetParams is Get with an explicit Params bag.
func GetParams[T any](params *Params) (T, error) {
	var zero T
	engine, err := Current()
	if err != nil {
		return zero, err
	}
	return Resolve[T](engine, params)
}

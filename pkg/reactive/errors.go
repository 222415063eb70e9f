package reactive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reactor-ui/reactor/pkg/ecs"
)

// ErrUseAfterCancel is returned when a run is requested on a scope that has
// already been cancelled. The cascade path skips cancelled scopes before
// invoking their action, so seeing this error means the caller bypassed the
// teardown ordering: an owner was despawned while something still held a
// handle to one of its scopes.
var ErrUseAfterCancel = errors.New("reactive: scope used after cancel")

// CycleError reports a dependency cycle: a scope's run, directly or through
// nested writes, re-entered the scope before it completed.
type CycleError struct {
	// Chain is the run stack from the first occurrence of the re-entered
	// scope down to the attempted re-entry, in execution order.
	Chain []ecs.Entity
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Chain))
	for i, entity := range e.Chain {
		parts[i] = entity.String()
	}
	return "reactive: cyclic dependency: " + strings.Join(parts, " -> ")
}

// BodyError wraps a failure returned by a user-supplied scope body.
// The context stack is already unwound when a BodyError surfaces; sibling
// scopes that completed earlier in the same cascade are not rolled back.
type BodyError struct {
	Scope ecs.Entity
	Err   error
}

func (e *BodyError) Error() string {
	return fmt.Sprintf("reactive: body of %v failed: %v", e.Scope, e.Err)
}

func (e *BodyError) Unwrap() error {
	return e.Err
}

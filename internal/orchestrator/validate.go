package orchestrator

import (
	"fmt"

	"github.com/skovali/conductor/pkg/models"
)

// ValidatorFunc checks a task payload before dispatch. Task shapes form
// a tagged union keyed by task type; they are checked here at the
// boundary rather than trusted to worker-internal destructuring.
type ValidatorFunc func(data any) error

// RegisterValidator installs a payload validator for a task type,
// replacing any previous one. Task types without a validator are
// dispatched unchecked.
func (o *Orchestrator) RegisterValidator(taskType string, fn ValidatorFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.validators[taskType] = fn
}

// validate runs the task type's validator, if one is registered.
func (o *Orchestrator) validate(task models.Task) error {
	o.mu.RLock()
	fn := o.validators[task.Type]
	o.mu.RUnlock()

	if fn == nil {
		return nil
	}
	if err := fn(task.Data); err != nil {
		return fmt.Errorf("%w for type %q: %v", ErrInvalidPayload, task.Type, err)
	}
	return nil
}

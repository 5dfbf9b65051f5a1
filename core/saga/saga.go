package saga

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Action is a single forward or compensating operation.
type Action func(ctx context.Context) error

// Step is a named forward action with an optional compensation.
type Step struct {
	Name string
	Do   Action
	Undo Action
}

// StepError reports which step failed and any compensation that failed afterwards.
type StepError struct {
	Step          string
	Err           error
	Compensations []error
}

func (e *StepError) Error() string {
	if len(e.Compensations) > 0 {
		return fmt.Sprintf("step %s failed: %v (%d compensation errors)", e.Step, e.Err, len(e.Compensations))
	}
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Saga runs steps in order and, when one fails, runs the compensations of the
// completed steps in reverse order.
type Saga struct {
	steps  []Step
	logger *zap.Logger
}

// New creates an empty saga.
func New(id string, logger *zap.Logger) *Saga {
	return &Saga{logger: logger.With(zap.String("saga_id", id))}
}

// AddStep appends a step. undo may be nil.
func (s *Saga) AddStep(name string, do, undo Action) *Saga {
	s.steps = append(s.steps, Step{Name: name, Do: do, Undo: undo})
	return s
}

// Execute runs the saga. On failure it returns a *StepError wrapping the step's error.
func (s *Saga) Execute(ctx context.Context) error {
	for i, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return s.compensate(ctx, i, step.Name, err)
		}
		if err := step.Do(ctx); err != nil {
			return s.compensate(ctx, i, step.Name, err)
		}
		s.logger.Debug("Saga step completed", zap.String("step", step.Name))
	}
	return nil
}

// compensate undoes steps[0:failed] in reverse order. Compensations run even when
// the caller's context is already cancelled.
func (s *Saga) compensate(ctx context.Context, failed int, name string, cause error) error {
	stepErr := &StepError{Step: name, Err: cause}
	undoCtx := context.WithoutCancel(ctx)

	s.logger.Warn("Saga step failed, compensating",
		zap.String("step", name),
		zap.Int("completed_steps", failed),
		zap.Error(cause),
	)

	for i := failed - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Undo == nil {
			continue
		}
		if err := step.Undo(undoCtx); err != nil {
			s.logger.Error("Saga compensation failed",
				zap.String("step", step.Name),
				zap.Error(err),
			)
			stepErr.Compensations = append(stepErr.Compensations, fmt.Errorf("undo %s: %w", step.Name, err))
		}
	}

	return stepErr
}

// FailedStep returns the name of the failed step when err came from Execute.
func FailedStep(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step
	}
	return ""
}

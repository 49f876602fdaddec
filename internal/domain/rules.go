package domain

import (
	"errors"
	"fmt"
)

// ErrRuleViolation matches every *RuleViolation through errors.Is.
var ErrRuleViolation = errors.New("domain rule violation")

// RuleViolation reports an operation that is not allowed from the entity's
// current state. The entity is never mutated when one is returned.
type RuleViolation struct {
	Entity    string
	Operation string
	From      string
	Err       error
}

func (e *RuleViolation) Error() string {
	return fmt.Sprintf("%s: cannot %s from status %s", e.Entity, e.Operation, e.From)
}

// Unwrap exposes the aggregate-specific sentinel, e.g. appointment.ErrInvalidStatusTransition.
func (e *RuleViolation) Unwrap() error {
	return e.Err
}

func (e *RuleViolation) Is(target error) bool {
	return target == ErrRuleViolation
}

package domain

import (
	"errors"
	"fmt"
)

// ErrClassificationUnavailable matches every ClassificationUnavailable.
var ErrClassificationUnavailable = errors.New("classification unavailable")

// ClassificationUnavailable wraps a provider failure or timeout. The engine
// recovers from it with the keyword fallback; it never reaches a user.
type ClassificationUnavailable struct {
	Provider string
	Err      error
}

func (e *ClassificationUnavailable) Error() string {
	return fmt.Sprintf("classification unavailable from %s: %v", e.Provider, e.Err)
}

func (e *ClassificationUnavailable) Unwrap() error { return e.Err }

func (e *ClassificationUnavailable) Is(target error) bool {
	return target == ErrClassificationUnavailable
}

package utils

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers classify failures with errors.Is; the wrap
// helpers below keep messages lowercase and specific at the failure site.
var (
	ErrorRecordNotFound     = errors.New("record not found")
	ErrorInvalidState       = errors.New("invalid state")
	ErrorInvalidQuantity    = errors.New("invalid quantity")
	ErrorConstraintConflict = errors.New("constraint conflict")
)

func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrorRecordNotFound)
}

func InvalidStatef(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrorInvalidState)
}

func InvalidQuantityf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrorInvalidQuantity)
}

func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrorConstraintConflict)
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}

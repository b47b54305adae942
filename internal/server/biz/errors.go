package biz

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned for missing or malformed input. Nothing is written.
	ErrValidation = errors.New("invalid request")
	// ErrNotFound is returned when a required list is absent or empty.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a list that already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrStorage wraps failures of the underlying databases or job files.
	ErrStorage = errors.New("storage failure")
	// ErrDelivery wraps failures of the email collaborator.
	ErrDelivery = errors.New("delivery failure")
	// ErrDrainInProgress is returned when a sweep is requested while another runs.
	ErrDrainInProgress = errors.New("export sweep already in progress")

	ErrListExists = fmt.Errorf("%w: list", ErrAlreadyExists)
	ErrEmptyList  = fmt.Errorf("%w: list is empty", ErrNotFound)
	ErrInternal   = errors.New("server internal error, please try again later")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func deliveryError(err error) error {
	return fmt.Errorf("%w: %w", ErrDelivery, err)
}

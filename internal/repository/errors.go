package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates a referenced course, assignment, team, student or grade does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStoreUnavailable indicates the backing store could not serve the request.
	ErrStoreUnavailable = errors.New("store unavailable")
)

func translateError(err error, entity string, key interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %v", ErrNotFound, entity, key)
	}
	return fmt.Errorf("%w: %s %v: %w", ErrStoreUnavailable, entity, key, err)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Engine error kinds. Handlers map these to HTTP statuses; the engines never
// swallow a failed invariant check.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrGroupFull        = errors.New("group is full")
	ErrAlreadyMember    = errors.New("student is already a member of this group")
	ErrAlreadyInGroup   = errors.New("student already belongs to another group")
	ErrNotAMember       = errors.New("student is not a member of this group")
	ErrAlreadyLeader    = errors.New("student is already the group leader")
	ErrAlreadyAssigned  = errors.New("professor is already assigned to this group")
	ErrNotAssigned      = errors.New("professor is not assigned to this group")
	ErrGroupExists      = errors.New("a group with this number already exists")
	ErrGroupNotEmpty    = errors.New("group still has members")
	ErrDuplicateRequest = errors.New("an equivalent pending request already exists")
	ErrInvalidTarget    = errors.New("invalid request target")
	ErrAlreadyResolved  = errors.New("request is already resolved")

	// ErrStoreUnavailable is the only retryable kind; callers may repeat the
	// whole operation.
	ErrStoreUnavailable = errors.New("storage temporarily unavailable")
)

// wrapStoreErr converts store-level timeouts into the retryable kind and
// passes every other error through unchanged.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, gorm.ErrInvalidTransaction) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

// isUniqueViolation reports whether err is a unique-index violation from the
// store. Neither driver translates these, so match on the message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

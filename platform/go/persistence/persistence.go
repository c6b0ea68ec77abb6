// Package persistence holds the shared Firestore access conventions: bounded
// operation timeouts and the translation of transport failures into errors the
// services can tell apart from business-rule rejections.
package persistence

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultTimeout bounds every store interaction. No engine operation may block
// indefinitely on the store.
const DefaultTimeout = 5 * time.Second

// ErrTimeout marks a store interaction that exceeded its deadline. It is
// infrastructure trouble, never a business rejection, so callers may retry.
var ErrTimeout = errors.New("store operation timed out")

// OpContext derives a context with the standard store deadline.
func OpContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, DefaultTimeout)
}

// MapError normalizes Firestore transport errors. Deadline and cancellation
// become ErrTimeout; everything else passes through for errors.Is inspection.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	switch status.Code(err) {
	case codes.DeadlineExceeded, codes.Canceled:
		return ErrTimeout
	}
	return err
}

// IsNotFound reports whether the error is a Firestore missing-document error.
func IsNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// IsAlreadyExists reports whether the error is a Firestore create-on-existing error.
func IsAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

// IsConflict reports whether a transaction lost to a concurrent writer and may
// be retried by the caller.
func IsConflict(err error) bool {
	return status.Code(err) == codes.Aborted || status.Code(err) == codes.FailedPrecondition
}

package firestore

import (
	pfirestore "github.com/snapedits/api/internal/platform/firestore"
)

// newNotFoundError reports a lookup miss that Firestore itself did not surface,
// e.g. a filtered query returning no documents.
func newNotFoundError(op, message string) error {
	return pfirestore.NewNotFoundError(op, message)
}

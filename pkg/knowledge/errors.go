package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/kbase/pkg/answer"
	"github.com/papercomputeco/kbase/pkg/vector"
)

var (
	// ErrNoDocuments is returned when no queried collection holds any units.
	ErrNoDocuments = fmt.Errorf("%w: no document loaded", vector.ErrEmptyInput)

	// ErrNoGenerator is returned by Ask when answer generation is disabled.
	ErrNoGenerator = errors.New("answer generation is not configured")

	// ErrInvalidCollection is returned for collection ids that cannot be
	// used as storage keys.
	ErrInvalidCollection = errors.New("invalid collection id")
)

// UserMessage renders err as the short message shown to API and tool users.
// Internal details stay in the logs.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoDocuments):
		return "no document loaded"
	case errors.Is(err, ErrInvalidCollection):
		return err.Error()
	case errors.Is(err, ErrNoGenerator):
		return "answer generation is not configured"
	case errors.Is(err, vector.ErrEmptyInput):
		return "input is empty"
	case errors.Is(err, vector.ErrDimensionMismatch):
		return "embedding dimension does not match the collection; re-process the document"
	case errors.Is(err, vector.ErrEmbedding):
		return "retrieval temporarily unavailable"
	case errors.Is(err, answer.ErrGeneration):
		return "answer generation temporarily unavailable"
	case errors.Is(err, vector.ErrPersistence):
		return "collection could not be saved"
	case errors.Is(err, vector.ErrCorruptIndex):
		return "stored collection is unreadable; re-process the document"
	case errors.Is(err, vector.ErrNotFound):
		return "collection not found"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	default:
		return "internal error"
	}
}

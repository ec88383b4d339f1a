package receipt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finance-tracker/internal/domain"
)

var (
	// ErrMissingImage is returned when no image bytes or mime type were supplied.
	ErrMissingImage = errors.New("receipt image is required")
	// ErrParseResponse is returned when the model reply is not valid structured data.
	ErrParseResponse = errors.New("failed to parse response")
)

// InvalidDraftError is returned when the model reply parsed but the extracted
// fields fail validation (unknown kind, non-positive amount, bad date).
type InvalidDraftError struct {
	Fields []string
}

func (e *InvalidDraftError) Error() string {
	return fmt.Sprintf("invalid receipt draft: %s", strings.Join(e.Fields, ", "))
}

// Extractor turns a receipt image into an unpersisted transaction draft.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (*domain.ReceiptDraft, error)
}

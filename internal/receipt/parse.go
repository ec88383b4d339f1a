package receipt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"finance-tracker/internal/domain"
)

type draftPayload struct {
	Kind        string  `json:"kind"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
}

// parseDraft cleans the raw model text, parses it structurally, then
// validates the extracted fields. The two stages fail with distinct errors.
func parseDraft(raw string) (*domain.ReceiptDraft, error) {
	cleaned := cleanModelText(raw)

	var payload draftPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseResponse, err)
	}

	kind := domain.TransactionKind(strings.ToLower(strings.TrimSpace(payload.Kind)))
	category := strings.TrimSpace(payload.Category)
	date := strings.TrimSpace(payload.Date)

	var fields []string
	if !kind.Valid() {
		fields = append(fields, "kind must be income or expense")
	}
	if payload.Amount <= 0 {
		fields = append(fields, "amount must be greater than zero")
	}
	if category == "" {
		fields = append(fields, "category is required")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		fields = append(fields, "date must be YYYY-MM-DD")
	}
	if len(fields) > 0 {
		return nil, &InvalidDraftError{Fields: fields}
	}

	return &domain.ReceiptDraft{
		Kind:        kind,
		Amount:      payload.Amount,
		Category:    category,
		Description: strings.TrimSpace(payload.Description),
		Date:        date,
	}, nil
}

// cleanModelText strips markdown code fences and surrounding prose the model
// tends to wrap its JSON in.
func cleanModelText(raw string) string {
	text := strings.TrimSpace(raw)

	if start := strings.Index(text, "```"); start >= 0 {
		rest := text[start+3:]
		// drop an optional language tag like "json"
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			firstLine := strings.TrimSpace(rest[:nl])
			if firstLine == "" || isFenceTag(firstLine) {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		text = strings.TrimSpace(rest)
	}

	// tolerate prose before/after a bare JSON object
	if first := strings.IndexByte(text, '{'); first > 0 {
		if last := strings.LastIndexByte(text, '}'); last > first {
			text = text[first : last+1]
		}
	}
	return text
}

func isFenceTag(line string) bool {
	for _, r := range line {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

package domain

// ReceiptDraft is the structured guess extracted from a receipt image.
// It is never persisted; the client reviews it and submits a regular
// transaction create or update with the (possibly corrected) values.
type ReceiptDraft struct {
	Kind        TransactionKind
	Amount      float64
	Category    string
	Description string
	Date        string // YYYY-MM-DD
}

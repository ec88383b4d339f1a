package domain

import "time"

type TransactionKind string

const (
	TransactionKindIncome  TransactionKind = "income"
	TransactionKindExpense TransactionKind = "expense"
)

// Valid reports whether the kind is one of the two supported values.
func (k TransactionKind) Valid() bool {
	return k == TransactionKindIncome || k == TransactionKindExpense
}

// Transaction represents a single income or expense record owned by a user.
type Transaction struct {
	ID          string
	UserID      string
	Kind        TransactionKind
	Amount      float64
	Category    string
	Description string
	OccurredOn  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

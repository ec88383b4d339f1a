package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/repository"
)

// CreateTransactionInput carries the caller-supplied fields of a new transaction.
type CreateTransactionInput struct {
	Kind        domain.TransactionKind
	Amount      float64
	Category    string
	Description string
	OccurredOn  time.Time
}

// UpdateTransactionInput carries a partial update; nil fields are left untouched.
type UpdateTransactionInput struct {
	Kind        *domain.TransactionKind
	Amount      *float64
	Category    *string
	Description *string
	OccurredOn  *time.Time
}

// TransactionService coordinates transaction operations for a resolved user.
// Every mutation checks ownership before touching the record.
type TransactionService interface {
	Create(ctx context.Context, userID string, in CreateTransactionInput) (*domain.Transaction, error)
	List(ctx context.Context, userID string) ([]domain.Transaction, error)
	Update(ctx context.Context, userID, id string, in UpdateTransactionInput) (*domain.Transaction, error)
	Delete(ctx context.Context, userID, id string) error
}

type transactionService struct {
	transactions repository.TransactionRepository
}

func NewTransactionService(transactions repository.TransactionRepository) TransactionService {
	return &transactionService{transactions: transactions}
}

func (s *transactionService) Create(ctx context.Context, userID string, in CreateTransactionInput) (*domain.Transaction, error) {
	in.Category = strings.TrimSpace(in.Category)

	if fields := validateTransaction(in.Kind, in.Amount, in.Category, in.OccurredOn); len(fields) > 0 {
		return nil, validationError(fields...)
	}

	tx := &domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        in.Kind,
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		OccurredOn:  in.OccurredOn,
	}

	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *transactionService) List(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return s.transactions.ListByUser(ctx, userID)
}

func (s *transactionService) Update(ctx context.Context, userID, id string, in UpdateTransactionInput) (*domain.Transaction, error) {
	tx, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Kind != nil {
		tx.Kind = *in.Kind
	}
	if in.Amount != nil {
		tx.Amount = *in.Amount
	}
	if in.Category != nil {
		tx.Category = strings.TrimSpace(*in.Category)
	}
	if in.Description != nil {
		tx.Description = *in.Description
	}
	if in.OccurredOn != nil {
		tx.OccurredOn = *in.OccurredOn
	}

	if fields := validateTransaction(tx.Kind, tx.Amount, tx.Category, tx.OccurredOn); len(fields) > 0 {
		return nil, validationError(fields...)
	}

	if err := s.transactions.Update(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

func (s *transactionService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.getOwned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.transactions.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// getOwned loads the record and enforces ownership before any mutation.
func (s *transactionService) getOwned(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	tx, err := s.transactions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if tx.UserID != userID {
		return nil, ErrNotOwner
	}
	return tx, nil
}

func validateTransaction(kind domain.TransactionKind, amount float64, category string, occurredOn time.Time) []string {
	var fields []string
	if kind == "" {
		fields = append(fields, "kind is required")
	} else if !kind.Valid() {
		fields = append(fields, "kind must be income or expense")
	}
	if amount <= 0 {
		fields = append(fields, "amount must be greater than zero")
	}
	if category == "" {
		fields = append(fields, "category is required")
	}
	if occurredOn.IsZero() {
		fields = append(fields, "occurred_on is required")
	}
	return fields
}

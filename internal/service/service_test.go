package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"finance-tracker/internal/repository"
	"finance-tracker/internal/repository/sqlite"
)

func newTestRepos(t *testing.T) (repository.UserRepository, repository.TransactionRepository) {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	users := sqlite.NewUserRepository(db)
	require.NoError(t, users.Init(ctx))
	transactions := sqlite.NewTransactionRepository(db)
	require.NoError(t, transactions.Init(ctx))

	return users, transactions
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"database/sql"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/domain"
	"finance-tracker/internal/receipt"
	"finance-tracker/internal/repository/sqlite"
	"finance-tracker/internal/service"
	"finance-tracker/internal/storage"
)

type stubExtractor struct {
	draft *domain.ReceiptDraft
	err   error
}

func (s *stubExtractor) Extract(_ context.Context, image []byte, mimeType string) (*domain.ReceiptDraft, error) {
	if len(image) == 0 || mimeType == "" {
		return nil, receipt.ErrMissingImage
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.draft, nil
}

type stubStorage struct {
	putKeys       []string
	deletedBucket string
	deletedPrefix string
}

func (s *stubStorage) PutObject(_ context.Context, bucket, key, _ string, _ []byte) (string, error) {
	s.putKeys = append(s.putKeys, key)
	return "s3://" + bucket + "/" + key, nil
}

func (s *stubStorage) GetObjectURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://example.com/" + bucket + "/" + key, nil
}

func (s *stubStorage) DeletePrefix(_ context.Context, bucket, prefix string) error {
	s.deletedBucket = bucket
	s.deletedPrefix = prefix
	return nil
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

func newTestRouter(t *testing.T, extractor receipt.Extractor) *gin.Engine {
	t.Helper()
	router, _ := newTestRouterWithStorage(t, extractor, nil, "", "")
	return router
}

func newTestRouterWithStorage(t *testing.T, extractor receipt.Extractor, store storage.Service, bucket, keyPrefix string) (*gin.Engine, *sql.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	userRepo := sqlite.NewUserRepository(db)
	require.NoError(t, userRepo.Init(ctx))
	txRepo := sqlite.NewTransactionRepository(db)
	require.NoError(t, txRepo.Init(ctx))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	handler := NewHandler(
		service.NewUserService(userRepo),
		service.NewTransactionService(txRepo),
		auth.NewTokenService("test-secret", time.Hour),
		extractor,
		store, bucket, keyPrefix,
		logger,
	)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func registerUser(t *testing.T, router *gin.Engine, name, email, password string) (UserResponse, string) {
	t.Helper()

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)

	var data struct {
		User  UserResponse `json:"user"`
		Token string       `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.User, data.Token
}

func TestRegisterLoginCreatePatchScenario(t *testing.T) {
	router := newTestRouter(t, &stubExtractor{})

	// register Ann
	ann, _ := registerUser(t, router, "Ann", "ann@x.com", "secret1")
	assert.Equal(t, "ann@x.com", ann.Email)

	// wrong password is rejected
	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email": "ann@x.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)

	// unknown email fails with the identical message
	rec2, env2 := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email": "nobody@x.com", "password": "whatever",
	})
	assert.Equal(t, rec.Code, rec2.Code)
	assert.Equal(t, env.Message, env2.Message)

	// correct credentials
	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email": "ann@x.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		User  UserResponse `json:"user"`
		Token string       `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	tokenA := login.Token
	require.NotEmpty(t, tokenA)

	// create a transaction as Ann
	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/transactions", tokenA, gin.H{
		"kind": "expense", "amount": 42.50, "category": "groceries",
		"description": "", "occurred_on": "2024-01-05",
	})
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)
	var created TransactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, ann.ID, created.UserID)
	assert.Equal(t, "2024-01-05", created.OccurredOn)

	// Bob cannot patch Ann's transaction
	_, tokenB := registerUser(t, router, "Bob", "bob@x.com", "secret2")
	rec, env = doJSON(t, router, http.MethodPatch, "/api/v1/transactions/"+created.ID, tokenB, gin.H{
		"amount": 1.00,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)

	// Ann still sees the original amount
	rec, env = doJSON(t, router, http.MethodGet, "/api/v1/transactions", tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []TransactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, 42.50, list[0].Amount)
}

func TestRegisterPayloadNeverContainsPasswordHash(t *testing.T) {
	router := newTestRouter(t, &stubExtractor{})

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "Ann", "email": "ann@x.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.NotContains(t, string(env.Data), "password")
	assert.NotContains(t, string(env.Data), "hash")
}

func TestRegisterValidation(t *testing.T) {
	router := newTestRouter(t, &stubExtractor{})

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "", "email": "bad", "password": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "email")
	assert.Contains(t, env.Message, "password")
}

func TestLoginMissingFields(t *testing.T) {
	router := newTestRouter(t, &stubExtractor{})

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email": "ann@x.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestTransactionsRequireToken(t *testing.T) {
	router := newTestRouter(t, &stubExtractor{})

	rec, env := doJSON(t, router, http.MethodGet, "/api/v1/transactions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not authorized, no token", env.Message)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusUnauthorized, rec2.Code)
	assert.Contains(t, rec2.Body.String(), "token failed")
}

func TestDeleteTwice(t *testing.T) {
	router := newTestRouter(t, &stubExtractor{})
	_, token := registerUser(t, router, "Ann", "ann@x.com", "secret1")

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/transactions", token, gin.H{
		"kind": "income", "amount": 100.0, "category": "salary", "occurred_on": "2024-02-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)
	var created TransactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))

	rec, _ = doJSON(t, router, http.MethodDelete, "/api/v1/transactions/"+created.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, router, http.MethodDelete, "/api/v1/transactions/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchMissingTransaction(t *testing.T) {
	router := newTestRouter(t, &stubExtractor{})
	_, token := registerUser(t, router, "Ann", "ann@x.com", "secret1")

	rec, _ := doJSON(t, router, http.MethodPatch, "/api/v1/transactions/missing-id", token, gin.H{"amount": 1.0})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func scanRequest(t *testing.T, token string, withFile bool) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if withFile {
		part, err := writer.CreateFormFile("receipt", "receipt.jpg")
		require.NoError(t, err)
		_, err = part.Write([]byte("fake-image-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/scan-receipt", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestScanReceipt(t *testing.T) {
	draft := &domain.ReceiptDraft{
		Kind:        domain.TransactionKindExpense,
		Amount:      42.50,
		Category:    "groceries",
		Description: "Weekly shopping",
		Date:        "2024-01-05",
	}
	router := newTestRouter(t, &stubExtractor{draft: draft})
	_, token := registerUser(t, router, "Ann", "ann@x.com", "secret1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, scanRequest(t, token, true))
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var got ReceiptDraftResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "expense", got.Kind)
	assert.Equal(t, 42.50, got.Amount)
	assert.Equal(t, "2024-01-05", got.Date)
}

func TestScanReceiptNoFile(t *testing.T) {
	router := newTestRouter(t, &stubExtractor{})
	_, token := registerUser(t, router, "Ann", "ann@x.com", "secret1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, scanRequest(t, token, false))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no file uploaded")
}

func TestGuardUnknownUserIsUnauthorized(t *testing.T) {
	router := newTestRouter(t, &stubExtractor{})

	// valid signature, but the subject was never registered
	token, err := auth.NewTokenService("test-secret", time.Hour).Issue("ghost-id")
	require.NoError(t, err)

	rec, env := doJSON(t, router, http.MethodGet, "/api/v1/transactions", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not authorized, unknown user", env.Message)
}

func TestGuardPersistenceFailureIsServerError(t *testing.T) {
	router, db := newTestRouterWithStorage(t, &stubExtractor{}, nil, "", "")
	_, token := registerUser(t, router, "Ann", "ann@x.com", "secret1")

	require.NoError(t, db.Close())

	rec, env := doJSON(t, router, http.MethodGet, "/api/v1/transactions", token, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", env.Message)
}

func TestScanReceiptArchivesImage(t *testing.T) {
	draft := &domain.ReceiptDraft{
		Kind:     domain.TransactionKindExpense,
		Amount:   10,
		Category: "food",
		Date:     "2024-01-05",
	}
	store := &stubStorage{}
	router, _ := newTestRouterWithStorage(t, &stubExtractor{draft: draft}, store, "test-bucket", "receipts")
	ann, token := registerUser(t, router, "Ann", "ann@x.com", "secret1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, scanRequest(t, token, true))
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var got ReceiptDraftResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))

	require.Len(t, store.putKeys, 1)
	assert.True(t, strings.HasPrefix(store.putKeys[0], "receipts/"+ann.ID+"/"))
	assert.Equal(t, "s3://test-bucket/"+store.putKeys[0], got.ImageLocation)
	assert.NotEmpty(t, got.ImageURL)
}

func TestPurgeReceiptArchive(t *testing.T) {
	store := &stubStorage{}
	router, _ := newTestRouterWithStorage(t, &stubExtractor{}, store, "test-bucket", "receipts")
	ann, token := registerUser(t, router, "Ann", "ann@x.com", "secret1")

	rec, env := doJSON(t, router, http.MethodDelete, "/api/v1/receipts", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	assert.Equal(t, "test-bucket", store.deletedBucket)
	assert.Equal(t, "receipts/"+ann.ID+"/", store.deletedPrefix)
}

func TestPurgeReceiptArchiveUnconfigured(t *testing.T) {
	router := newTestRouter(t, &stubExtractor{})
	_, token := registerUser(t, router, "Ann", "ann@x.com", "secret1")

	rec, env := doJSON(t, router, http.MethodDelete, "/api/v1/receipts", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, env.Message, "not configured")
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &stubExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestScanReceiptExtractionFailure(t *testing.T) {
	router := newTestRouter(t, &stubExtractor{err: fmt.Errorf("%w: bad json", receipt.ErrParseResponse)})
	_, token := registerUser(t, router, "Ann", "ann@x.com", "secret1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, scanRequest(t, token, true))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "bad json", "raw parse detail must not reach the client")
}

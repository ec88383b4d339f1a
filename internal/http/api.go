package http

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/domain"
	"finance-tracker/internal/receipt"
	"finance-tracker/internal/service"
	"finance-tracker/internal/storage"
)

const (
	dateLayout       = "2006-01-02"
	maxReceiptSize   = 10 << 20
	receiptURLExpiry = 15 * time.Minute
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users        service.UserService
	transactions service.TransactionService
	tokens       *auth.TokenService
	extractor    receipt.Extractor
	storage      storage.Service
	bucket       string
	keyPrefix    string
	logger       *logrus.Logger
}

func NewHandler(
	users service.UserService,
	transactions service.TransactionService,
	tokens *auth.TokenService,
	extractor receipt.Extractor,
	store storage.Service,
	bucket, keyPrefix string,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:        users,
		transactions: transactions,
		tokens:       tokens,
		extractor:    extractor,
		storage:      store,
		bucket:       bucket,
		keyPrefix:    keyPrefix,
		logger:       logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.register)
			authGroup.POST("/login", h.login)
		}

		txGroup := api.Group("/transactions", h.requireUser())
		{
			txGroup.POST("", h.createTransaction)
			txGroup.GET("", h.listTransactions)
			txGroup.PATCH("/:id", h.updateTransaction)
			txGroup.DELETE("/:id", h.deleteTransaction)
			txGroup.POST("/scan-receipt", h.scanReceipt)
		}

		api.DELETE("/receipts", h.requireUser(), h.purgeReceiptArchive)

		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, nil, "invalid request body")
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, gin.H{
		"user":  userToResponse(user),
		"token": token,
	}, "user registered successfully")
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, nil, "please provide email and password")
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"user":  userToResponse(user),
		"token": token,
	}, "login successful")
}

type createTransactionRequest struct {
	Kind        string  `json:"kind"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	OccurredOn  string  `json:"occurred_on"`
}

type updateTransactionRequest struct {
	Kind        *string  `json:"kind"`
	Amount      *float64 `json:"amount"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
	OccurredOn  *string  `json:"occurred_on"`
}

func (h *Handler) createTransaction(c *gin.Context) {
	user := currentUser(c)

	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, nil, "invalid request body")
		return
	}

	in := service.CreateTransactionInput{
		Kind:        domain.TransactionKind(req.Kind),
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
	}
	if req.OccurredOn != "" {
		occurredOn, err := time.Parse(dateLayout, req.OccurredOn)
		if err != nil {
			respond(c, http.StatusBadRequest, nil, "occurred_on must be YYYY-MM-DD")
			return
		}
		in.OccurredOn = occurredOn
	}

	tx, err := h.transactions.Create(c.Request.Context(), user.ID, in)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, transactionToResponse(*tx), "transaction created successfully")
}

func (h *Handler) listTransactions(c *gin.Context) {
	user := currentUser(c)

	txs, err := h.transactions.List(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]TransactionResponse, len(txs))
	for i := range txs {
		resp[i] = transactionToResponse(txs[i])
	}
	respond(c, http.StatusOK, resp, "")
}

func (h *Handler) updateTransaction(c *gin.Context) {
	user := currentUser(c)

	var req updateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, nil, "invalid request body")
		return
	}

	var in service.UpdateTransactionInput
	if req.Kind != nil {
		kind := domain.TransactionKind(*req.Kind)
		in.Kind = &kind
	}
	in.Amount = req.Amount
	in.Category = req.Category
	in.Description = req.Description
	if req.OccurredOn != nil {
		occurredOn, err := time.Parse(dateLayout, *req.OccurredOn)
		if err != nil {
			respond(c, http.StatusBadRequest, nil, "occurred_on must be YYYY-MM-DD")
			return
		}
		in.OccurredOn = &occurredOn
	}

	tx, err := h.transactions.Update(c.Request.Context(), user.ID, c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, transactionToResponse(*tx), "transaction updated successfully")
}

func (h *Handler) deleteTransaction(c *gin.Context) {
	user := currentUser(c)

	if err := h.transactions.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, nil, "transaction deleted successfully")
}

func (h *Handler) scanReceipt(c *gin.Context) {
	user := currentUser(c)

	fileHeader, err := c.FormFile("receipt")
	if err != nil {
		respond(c, http.StatusBadRequest, nil, "no file uploaded")
		return
	}
	if fileHeader.Size > maxReceiptSize {
		respond(c, http.StatusBadRequest, nil, "receipt image is too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, fmt.Errorf("open uploaded file: %w", err))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		h.respondError(c, fmt.Errorf("read uploaded file: %w", err))
		return
	}

	draft, err := h.extractor.Extract(c.Request.Context(), image, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := draftToResponse(draft)
	h.archiveReceipt(c, user, image, fileHeader.Header.Get("Content-Type"), &resp)

	respond(c, http.StatusOK, resp, "")
}

// archiveReceipt stores the original image when a bucket is configured.
// Failures degrade to a warning; the scan result is already in hand.
func (h *Handler) archiveReceipt(c *gin.Context, user *domain.User, image []byte, contentType string, resp *ReceiptDraftResponse) {
	if h.storage == nil || h.bucket == "" {
		return
	}

	key := path.Join(h.keyPrefix, user.ID, uuid.NewString())
	location, err := h.storage.PutObject(c.Request.Context(), h.bucket, key, contentType, image)
	if err != nil {
		h.logger.WithError(err).Warn("archive receipt image")
		return
	}
	resp.ImageLocation = location

	url, err := h.storage.GetObjectURL(c.Request.Context(), h.bucket, key, receiptURLExpiry)
	if err != nil {
		h.logger.WithError(err).Warn("presign receipt image")
		return
	}
	resp.ImageURL = url
}

// purgeReceiptArchive removes every receipt image archived for the caller.
func (h *Handler) purgeReceiptArchive(c *gin.Context) {
	user := currentUser(c)

	if h.storage == nil || h.bucket == "" {
		respond(c, http.StatusOK, nil, "receipt archive is not configured")
		return
	}

	prefix := path.Join(h.keyPrefix, user.ID) + "/"
	if err := h.storage.DeletePrefix(c.Request.Context(), h.bucket, prefix); err != nil {
		h.respondError(c, fmt.Errorf("purge receipt archive: %w", err))
		return
	}

	respond(c, http.StatusOK, nil, "receipt archive purged")
}

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type TransactionResponse struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Kind        string  `json:"kind"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	OccurredOn  string  `json:"occurred_on"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type ReceiptDraftResponse struct {
	Kind          string  `json:"kind"`
	Amount        float64 `json:"amount"`
	Category      string  `json:"category"`
	Description   string  `json:"description"`
	Date          string  `json:"date"`
	ImageLocation string  `json:"image_location,omitempty"`
	ImageURL      string  `json:"image_url,omitempty"`
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}

func transactionToResponse(tx domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          tx.ID,
		UserID:      tx.UserID,
		Kind:        string(tx.Kind),
		Amount:      tx.Amount,
		Category:    tx.Category,
		Description: tx.Description,
		OccurredOn:  tx.OccurredOn.Format(dateLayout),
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   tx.UpdatedAt.Format(time.RFC3339),
	}
}

func draftToResponse(draft *domain.ReceiptDraft) ReceiptDraftResponse {
	return ReceiptDraftResponse{
		Kind:        string(draft.Kind),
		Amount:      draft.Amount,
		Category:    draft.Category,
		Description: draft.Description,
		Date:        draft.Date,
	}
}

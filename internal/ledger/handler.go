package ledger

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"

	"mijob/internal/api"
	"mijob/internal/apperrors"
	"mijob/internal/auth"
	"mijob/internal/logger"
	"mijob/internal/user"

	"github.com/gin-gonic/gin"
)

const PaymentSecretHeader = "X-Payment-Secret"

// Accounts is satisfied by user.Repository.
type Accounts interface {
	FindByID(ctx context.Context, id int) (*user.User, error)
}

type Handler struct {
	service       *Service
	accounts      Accounts
	webhookSecret string
}

func NewHandler(service *Service, accounts Accounts, webhookSecret string) *Handler {
	return &Handler{service: service, accounts: accounts, webhookSecret: webhookSecret}
}

type PaymentRequest struct {
	UserID    int    `json:"user_id" validate:"required,gt=0"`
	Package   string `json:"package" validate:"required,max=40"`
	Amount    int64  `json:"amount" validate:"omitempty,gt=0"`
	Reference string `json:"reference" validate:"required,max=120"`
}

type AdjustRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"max=200"`
}

func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.WriteError(c, apperrors.Unauthorized("User not authenticated"))
		return
	}

	l, err := h.service.Balance(c.Request.Context(), userID)
	if err != nil {
		logger.WithError(err).Error("failed to load token balance")
		api.WriteError(c, apperrors.Database(err))
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.WriteError(c, apperrors.Unauthorized("User not authenticated"))
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		api.WriteError(c, apperrors.InvalidInput("limit", "must be a non-negative integer"))
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		api.WriteError(c, apperrors.InvalidInput("offset", "must be a non-negative integer"))
		return
	}

	txs, err := h.service.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		logger.WithError(err).Error("failed to load token transactions")
		api.WriteError(c, apperrors.Database(err))
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (h *Handler) ListPackages(c *gin.Context) {
	c.JSON(http.StatusOK, Packages())
}

// Verify replays the caller's transaction log against the stored totals.
func (h *Handler) Verify(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.WriteError(c, apperrors.Unauthorized("User not authenticated"))
		return
	}

	audit, err := h.service.Verify(c.Request.Context(), userID)
	if err != nil {
		api.WriteError(c, apperrors.Database(err))
		return
	}
	if !audit.Consistent {
		logger.Error("ledger replay mismatch", "user_id", userID, "problem", audit.Problem)
	}
	c.JSON(http.StatusOK, audit)
}

// PaymentWebhook is called by the payment collaborator once a purchase is
// confirmed. Replays of the same reference are acknowledged without a second
// credit.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	got := c.GetHeader(PaymentSecretHeader)
	if h.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
		api.WriteError(c, apperrors.Unauthorized("Invalid payment secret"))
		return
	}

	var req PaymentRequest
	if !api.BindAndValidate(c, &req) {
		return
	}

	amount := req.Amount
	if pkg, ok := FindPackage(req.Package); ok {
		if amount == 0 {
			amount = pkg.Tokens
		} else if amount != pkg.Tokens {
			api.WriteError(c, apperrors.InvalidInput("amount", "does not match package "+pkg.Name))
			return
		}
	}
	if amount <= 0 {
		api.WriteError(c, apperrors.InvalidInput("amount", "required for custom packages"))
		return
	}

	// Tokens are only spent by individual accounts.
	acct, err := h.accounts.FindByID(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			api.WriteError(c, apperrors.NotFound("User"))
			return
		}
		logger.WithError(err).WithField("user_id", req.UserID).Error("payment account lookup failed")
		api.WriteError(c, apperrors.Database(err))
		return
	}
	if acct.Role != user.RoleIndividual {
		logger.Warn("payment for non-individual account refused", "user_id", req.UserID, "role", string(acct.Role), "reference", req.Reference)
		api.WriteError(c, apperrors.InvalidInput("user_id", "only individual accounts can buy tokens"))
		return
	}

	tx, err := h.service.Purchase(c.Request.Context(), req.UserID, amount, req.Package, req.Reference)
	if err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			logger.Info("duplicate payment webhook", "user_id", req.UserID, "reference", req.Reference)
			c.JSON(http.StatusOK, gin.H{"status": "duplicate", "reference": req.Reference})
			return
		}
		logger.WithError(err).WithField("user_id", req.UserID).Error("token purchase failed")
		api.WriteError(c, apperrors.Database(err))
		return
	}

	logger.Info("tokens purchased", "user_id", req.UserID, "amount", amount, "package", req.Package, "balance", tx.BalanceAfter)
	c.JSON(http.StatusCreated, gin.H{"status": "credited", "transaction": tx})
}

func (h *Handler) Refund(c *gin.Context) {
	h.adjust(c, h.service.Refund)
}

func (h *Handler) Expire(c *gin.Context) {
	h.adjust(c, h.service.Expire)
}

func (h *Handler) adjust(c *gin.Context, op func(ctx context.Context, userID int, amount int64, reason string) (*Transaction, error)) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil || userID <= 0 {
		api.BadRequest(c, "Invalid user ID")
		return
	}

	var req AdjustRequest
	if !api.BindAndValidate(c, &req) {
		return
	}

	tx, err := op(c.Request.Context(), userID, req.Amount, req.Reason)
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			api.WriteError(c, apperrors.InsufficientTokens("Balance is lower than the requested amount"))
			return
		}
		logger.WithError(err).WithField("user_id", userID).Error("ledger adjustment failed")
		api.WriteError(c, apperrors.Database(err))
		return
	}
	c.JSON(http.StatusCreated, tx)
}

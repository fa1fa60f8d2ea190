package funding

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/veltapay/veltapay/internal/gateway"
	"github.com/veltapay/veltapay/internal/ledger"
	"github.com/veltapay/veltapay/internal/wallet"
)

// Handler exposes funding HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Deposit funds the owner's wallet from a stored payment method.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Amount <= 0 {
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	}

	res, err := h.service.Deposit(c.UserContext(), DepositInput{
		OwnerID:         c.Params("ownerId"),
		Amount:          req.Amount,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusCreated).JSON(DepositResponse{
		ID:         res.TransactionID,
		Amount:     res.Amount,
		Currency:   res.Currency,
		Status:     res.Status,
		NewBalance: res.NewBalance,
	})
}

// Withdraw pays out from the owner's wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Amount <= 0 {
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	}

	res, err := h.service.Withdraw(c.UserContext(), WithdrawInput{
		OwnerID: c.Params("ownerId"),
		Amount:  req.Amount,
	})
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusCreated).JSON(WithdrawResponse{
		ID:           res.TransactionID,
		PayoutID:     res.PayoutID,
		PayoutStatus: res.PayoutStatus,
		Amount:       res.Amount,
		Currency:     res.Currency,
		NewBalance:   res.NewBalance,
	})
}

// CreateIntent opens a payment intent for client-driven card entry.
func (h *Handler) CreateIntent(c *fiber.Ctx) error {
	var req IntentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Amount <= 0 {
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	}

	res, err := h.service.CreatePaymentIntent(c.UserContext(), req.OwnerID, req.Amount)
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusCreated).JSON(IntentResponse{
		IntentID:      res.IntentID,
		ClientSecret:  res.ClientSecret,
		Status:        res.Status,
		Amount:        res.Amount,
		Currency:      res.Currency,
		TransactionID: res.TransactionID,
	})
}

// ConfirmIntent funds a previously created intent.
func (h *Handler) ConfirmIntent(c *fiber.Ctx) error {
	var req ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.ConfirmPaymentIntent(c.UserContext(), req.OwnerID, c.Params("intentId"), req.PaymentMethodID)
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusOK).JSON(DepositResponse{
		ID:         res.TransactionID,
		Amount:     res.Amount,
		Currency:   res.Currency,
		Status:     res.Status,
		NewBalance: res.NewBalance,
	})
}

// Status reports the ledger view of a payment by processor reference.
func (h *Handler) Status(c *fiber.Ctx) error {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		return fiber.NewError(http.StatusBadRequest, "owner_id is required")
	}

	tx, err := h.service.PaymentStatus(c.UserContext(), ownerID, c.Params("ref"))
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusOK).JSON(ToTransactionResponse(tx))
}

// ToTransactionResponse converts a ledger entry to the shared wire shape.
func ToTransactionResponse(tx ledger.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:           tx.ID,
		Type:         tx.Type,
		Amount:       tx.Amount,
		Currency:     tx.Currency,
		FromWalletID: tx.FromWalletID,
		ToWalletID:   tx.ToWalletID,
		ExternalRef:  tx.ExternalRef,
		Status:       tx.Status,
		CreatedAt:    tx.CreatedAt.Format(time.RFC3339Nano),
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, wallet.ErrNotFound), errors.Is(err, wallet.ErrMethodNotFound), errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, ErrPaymentFailed):
		return fiber.NewError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, gateway.ErrUpstream):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

package payments

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/veltapay/veltapay/internal/funding"
	"github.com/veltapay/veltapay/internal/wallet"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	FromOwnerID string `json:"from_owner_id"`
	ToOwnerID   string `json:"to_owner_id"`
	Amount      int64  `json:"amount"`
}

// Transfer processes a wallet-to-wallet transfer.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Amount <= 0 {
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	}

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		FromOwnerID: req.FromOwnerID,
		ToOwnerID:   req.ToOwnerID,
		Amount:      req.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		case errors.Is(err, wallet.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient funds")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"from_balance":   res.FromBalance,
		"to_balance":     res.ToBalance,
	})
}

// ListTransactions returns the owner's transactions, most recent first.
func (h *Handler) ListTransactions(c *fiber.Ctx) error {
	txs, err := h.service.ListTransactions(c.UserContext(), c.Params("ownerId"))
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]funding.TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, funding.ToTransactionResponse(tx))
	}
	return c.Status(http.StatusOK).JSON(out)
}

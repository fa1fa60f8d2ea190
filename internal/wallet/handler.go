package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/veltapay/veltapay/internal/gateway"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	OwnerID string `json:"owner_id"`
}

type walletResponse struct {
	ID                  string    `json:"id"`
	OwnerID             string    `json:"owner_id"`
	Balance             int64     `json:"balance"`
	Currency            string    `json:"currency"`
	ExternalCustomerRef string    `json:"external_customer_ref"`
	CreatedAt           time.Time `json:"created_at"`
}

// Create provisions a wallet for the given owner.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	w, err := h.service.Create(c.UserContext(), req.OwnerID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyExists):
			return fiber.NewError(http.StatusConflict, "wallet already exists")
		case errors.Is(err, gateway.ErrUpstream):
			return fiber.NewError(http.StatusBadGateway, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{"wallet": toResponse(w)})
}

// Get returns the owner's wallet including its current balance.
func (h *Handler) Get(c *fiber.Ctx) error {
	w, err := h.service.GetByOwner(c.UserContext(), c.Params("ownerId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"wallet": toResponse(w)})
}

type methodResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Brand     string `json:"brand,omitempty"`
	Last4     string `json:"last4,omitempty"`
	ExpMonth  int    `json:"exp_month,omitempty"`
	ExpYear   int    `json:"exp_year,omitempty"`
	IsDefault bool   `json:"is_default"`
}

// ListMethods returns the owner's stored payment methods.
func (h *Handler) ListMethods(c *fiber.Ctx) error {
	methods, err := h.service.Methods(c.UserContext(), c.Params("ownerId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]methodResponse, 0, len(methods))
	for _, m := range methods {
		out = append(out, methodResponse{
			ID:        m.ID,
			Type:      m.Type,
			Brand:     m.Brand,
			Last4:     m.Last4,
			ExpMonth:  m.ExpMonth,
			ExpYear:   m.ExpYear,
			IsDefault: m.IsDefault,
		})
	}
	return c.Status(http.StatusOK).JSON(out)
}

func toResponse(w Wallet) walletResponse {
	return walletResponse{
		ID:                  w.ID,
		OwnerID:             w.OwnerID,
		Balance:             w.Balance,
		Currency:            w.Currency,
		ExternalCustomerRef: w.ExternalCustomerRef,
		CreatedAt:           w.CreatedAt,
	}
}

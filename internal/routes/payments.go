package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/veltapay/veltapay/internal/funding"
	"github.com/veltapay/veltapay/internal/payments"
)

// RegisterPaymentRoutes wires transfer and payment-intent endpoints.
func RegisterPaymentRoutes(r fiber.Router, fh *funding.Handler, ph *payments.Handler) {
	r.Post("/payments/transfer", ph.Transfer)
	r.Post("/payments/intents", fh.CreateIntent)
	r.Post("/payments/intents/:intentId/confirm", fh.ConfirmIntent)
	r.Get("/payments/status/:ref", fh.Status)
}

package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/veltapay/veltapay/internal/funding"
	"github.com/veltapay/veltapay/internal/payments"
	"github.com/veltapay/veltapay/internal/wallet"
)

// RegisterWalletRoutes wires wallet-scoped endpoints.
func RegisterWalletRoutes(r fiber.Router, wh *wallet.Handler, fh *funding.Handler, ph *payments.Handler) {
	r.Post("/wallets", wh.Create)
	r.Get("/wallets/:ownerId", wh.Get)
	r.Post("/wallets/:ownerId/deposit", fh.Deposit)
	r.Post("/wallets/:ownerId/withdraw", fh.Withdraw)
	r.Get("/wallets/:ownerId/transactions", ph.ListTransactions)
	r.Get("/wallets/:ownerId/payment-methods", wh.ListMethods)
}

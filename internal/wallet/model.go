package wallet

import "time"

// Wallet is the per-owner balance record. Amounts are minor units of Currency.
type Wallet struct {
	ID                  string
	OwnerID             string
	Balance             int64
	Currency            string
	ExternalCustomerRef string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PaymentMethod describes a tokenized funding instrument held at the gateway.
type PaymentMethod struct {
	ID                string
	OwnerID           string
	ExternalMethodRef string
	Type              string
	Brand             string
	Last4             string
	ExpMonth          int
	ExpYear           int
	IsDefault         bool
	CreatedAt         time.Time
}

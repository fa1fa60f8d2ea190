package funding

// DepositRequest captures a deposit from a stored payment method.
type DepositRequest struct {
	Amount          int64  `json:"amount"`
	PaymentMethodID string `json:"payment_method_id"`
}

// DepositResponse is the API shape of a settled deposit.
type DepositResponse struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	NewBalance int64  `json:"new_balance"`
}

// WithdrawRequest captures a payout request.
type WithdrawRequest struct {
	Amount int64 `json:"amount"`
}

// WithdrawResponse is the API shape of a completed withdrawal.
type WithdrawResponse struct {
	ID           string `json:"id"`
	PayoutID     string `json:"payout_id"`
	PayoutStatus string `json:"payout_status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	NewBalance   int64  `json:"new_balance"`
}

// IntentRequest opens a payment intent for UI-driven funding.
type IntentRequest struct {
	OwnerID string `json:"owner_id"`
	Amount  int64  `json:"amount"`
}

// IntentResponse describes a created intent awaiting confirmation.
type IntentResponse struct {
	IntentID      string `json:"intent_id"`
	ClientSecret  string `json:"client_secret"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	TransactionID string `json:"transaction_id"`
}

// ConfirmRequest funds a previously created intent.
type ConfirmRequest struct {
	OwnerID         string `json:"owner_id"`
	PaymentMethodID string `json:"payment_method_id"`
}

// TransactionResponse is the shared API shape of a ledger entry.
type TransactionResponse struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	FromWalletID string `json:"from_wallet_id,omitempty"`
	ToWalletID   string `json:"to_wallet_id,omitempty"`
	ExternalRef  string `json:"external_ref,omitempty"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

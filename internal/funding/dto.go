package funding

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skaet/ussd_bank/internal/ledger"
)

// WebhookEvent is the Flutterwave webhook payload.
type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

// WebhookData identifies the transaction and its processor status. Charges
// carry tx_ref, transfers carry reference.
type WebhookData struct {
	ID          int64           `json:"id"`
	TxRef       string          `json:"tx_ref"`
	FlwRef      string          `json:"flw_ref"`
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	PaymentType string          `json:"payment_type"`
	Customer    struct {
		Name        string `json:"name"`
		PhoneNumber string `json:"phone_number"`
		Email       string `json:"email"`
	} `json:"customer"`
}

// TransactionReference returns the reference the transaction was recorded under.
func (e WebhookEvent) TransactionReference() string {
	if ref := strings.TrimSpace(e.Data.TxRef); ref != "" {
		return ref
	}
	return strings.TrimSpace(e.Data.Reference)
}

// Outcome maps the event's status. final is false while the processor is still working.
func (e WebhookEvent) Outcome() (ledger.Outcome, bool) {
	return OutcomeFor(e.Data.Status)
}

// WebhookResponse acknowledges a webhook.
type WebhookResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
}

// TransactionResponse is the admin view of a transaction.
type TransactionResponse struct {
	Reference     string  `json:"reference"`
	Phone         string  `json:"phone"`
	Kind          string  `json:"kind"`
	Amount        string  `json:"amount"`
	Status        string  `json:"status"`
	Gateway       string  `json:"gateway"`
	FailureReason string  `json:"failure_reason,omitempty"`
	CreatedAt     string  `json:"created_at"`
	SettledAt     *string `json:"settled_at,omitempty"`
}

// ReconcileResponse reports a gateway verification and whether it settled the transaction.
type ReconcileResponse struct {
	GatewayStatus string              `json:"gateway_status"`
	Transitioned  bool                `json:"transitioned"`
	Transaction   TransactionResponse `json:"transaction"`
}

func toTransactionResponse(tx ledger.Transaction) TransactionResponse {
	res := TransactionResponse{
		Reference:     tx.Reference,
		Phone:         tx.Phone,
		Kind:          string(tx.Kind),
		Amount:        tx.Amount.StringFixed(2),
		Status:        string(tx.Status),
		Gateway:       tx.Gateway,
		FailureReason: tx.FailureReason,
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.SettledAt != nil {
		at := tx.SettledAt.Format(time.RFC3339)
		res.SettledAt = &at
	}
	return res
}

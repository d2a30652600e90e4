package funding

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/skaet/ussd_bank/internal/ledger"
	"github.com/skaet/ussd_bank/internal/logging"
)

func setupWebhookApp(t *testing.T) (*fiber.App, fixture) {
	t.Helper()
	f := newFixture(t)
	h := NewHandler(f.service, logging.Discard())
	app := fiber.New()
	app.Post("/webhooks/flutterwave", h.Webhook)
	app.Get("/transactions/:reference", h.Transaction)
	return app, f
}

func postWebhook(t *testing.T, app *fiber.App, body string) (int, WebhookResponse) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/flutterwave", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var out WebhookResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func chargeEvent(ref, status string) string {
	return `{"event":"charge.completed","data":{"id":1,"tx_ref":"` + ref + `","flw_ref":"X","amount":500,"currency":"NGN","status":"` + status + `","payment_type":"ussd","customer":{"phone_number":"08012345678"}}}`
}

func TestWebhookSettlesOnceAndAcknowledgesReplays(t *testing.T) {
	app, f := setupWebhookApp(t)
	receipt, err := f.service.InitiateDeposit(context.Background(), DepositInput{Phone: "08012345678", Amount: decimal.NewFromInt(500), Method: "flutterwave"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	status, out := postWebhook(t, app, chargeEvent(receipt.Reference, "successful"))
	if status != fiber.StatusOK || out.Status != "processed" {
		t.Fatalf("expected processed, got %d %+v", status, out)
	}
	status, out = postWebhook(t, app, chargeEvent(receipt.Reference, "successful"))
	if status != fiber.StatusOK || out.Status != "duplicate" {
		t.Fatalf("expected duplicate, got %d %+v", status, out)
	}
	if !f.balance(t).Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected 500, got %s", f.balance(t))
	}
}

func TestWebhookFailureAndPending(t *testing.T) {
	app, f := setupWebhookApp(t)
	receipt, err := f.service.InitiateDeposit(context.Background(), DepositInput{Phone: "08012345678", Amount: decimal.NewFromInt(500), Method: "flutterwave"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	status, out := postWebhook(t, app, chargeEvent(receipt.Reference, "pending"))
	if status != fiber.StatusOK || out.Status != "ignored" {
		t.Fatalf("expected ignored, got %d %+v", status, out)
	}

	status, out = postWebhook(t, app, chargeEvent(receipt.Reference, "failed"))
	if status != fiber.StatusOK || out.Status != "processed" {
		t.Fatalf("expected processed failure, got %d %+v", status, out)
	}
	tx, _ := f.ledger.Transaction(context.Background(), receipt.Reference)
	if tx.Status != ledger.StatusFailed || tx.FailureReason != "gateway reported failed" {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if !f.balance(t).IsZero() {
		t.Fatalf("failed deposit moved money")
	}
}

func TestWebhookTransferReference(t *testing.T) {
	app, f := setupWebhookApp(t)
	ledger.SeedBalance(f.ledger, f.account.WalletCode, decimal.NewFromInt(800))
	receipt, err := f.service.InitiateWithdrawal(context.Background(), WithdrawalInput{Phone: "08012345678", Amount: decimal.NewFromInt(300), Method: "flutterwave"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	body := `{"event":"transfer.completed","data":{"id":9,"reference":"` + receipt.Reference + `","amount":300,"currency":"NGN","status":"SUCCESSFUL"}}`
	status, out := postWebhook(t, app, body)
	if status != fiber.StatusOK || out.Status != "processed" {
		t.Fatalf("expected processed, got %d %+v", status, out)
	}
	if !f.balance(t).Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected 500, got %s", f.balance(t))
	}
}

func TestWebhookMismatchedReportIsNotSettled(t *testing.T) {
	app, f := setupWebhookApp(t)
	receipt, err := f.service.InitiateDeposit(context.Background(), DepositInput{Phone: "08012345678", Amount: decimal.NewFromInt(5000), Method: "flutterwave"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// chargeEvent reports 500 against a 5000 record.
	status, out := postWebhook(t, app, chargeEvent(receipt.Reference, "successful"))
	if status != fiber.StatusOK || out.Status != "mismatch" {
		t.Fatalf("expected mismatch, got %d %+v", status, out)
	}
	body := `{"event":"charge.completed","data":{"id":1,"tx_ref":"` + receipt.Reference + `","amount":5000,"currency":"GHS","status":"successful"}}`
	status, out = postWebhook(t, app, body)
	if status != fiber.StatusOK || out.Status != "mismatch" {
		t.Fatalf("expected currency mismatch, got %d %+v", status, out)
	}

	tx, _ := f.ledger.Transaction(context.Background(), receipt.Reference)
	if tx.Status != ledger.StatusInitiated || !f.balance(t).IsZero() {
		t.Fatalf("mismatched webhook moved money: %+v balance %s", tx, f.balance(t))
	}
}

func TestWebhookRejections(t *testing.T) {
	app, _ := setupWebhookApp(t)

	if status, _ := postWebhook(t, app, `{not json`); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", status)
	}
	if status, _ := postWebhook(t, app, `{"event":"charge.completed","data":{"status":"successful"}}`); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without reference, got %d", status)
	}
	if status, _ := postWebhook(t, app, chargeEvent("FLW-UNKNOWN1", "successful")); status != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown reference, got %d", status)
	}
}

func TestTransactionEndpoint(t *testing.T) {
	app, f := setupWebhookApp(t)
	receipt, err := f.service.InitiateDeposit(context.Background(), DepositInput{Phone: "08012345678", Amount: decimal.RequireFromString("12.5"), Method: "flutterwave"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/transactions/"+receipt.Reference, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var out TransactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Amount != "12.50" || out.Status != "initiated" || out.Kind != "deposit" {
		t.Fatalf("unexpected response %+v", out)
	}

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/transactions/FLW-NOPE", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

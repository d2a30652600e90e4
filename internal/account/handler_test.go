package account

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/skaet/ussd_bank/internal/auth"
	"github.com/skaet/ussd_bank/internal/logging"
	"github.com/skaet/ussd_bank/internal/middleware"
)

func setupHandlerApp(t *testing.T) *fiber.App {
	t.Helper()
	return setupHandlerAppWithLogger(t, logging.Discard())
}

func setupHandlerAppWithLogger(t *testing.T, logger *slog.Logger, handlers ...fiber.Handler) *fiber.App {
	t.Helper()
	svc, _ := newService(t, nil)
	if _, err := svc.Create(context.Background(), Registration{Phone: "08012345678", FirstName: "Ada", LastName: "Obi", PIN: "1234"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	h := NewHandler(svc, logger)
	app := fiber.New()
	for _, mw := range handlers {
		app.Use(mw)
	}
	app.Get("/accounts/:phone", h.Get)
	app.Post("/accounts/:phone/credit", h.Credit)
	app.Post("/accounts/:phone/debit", h.Debit)
	return app
}

func adjust(t *testing.T, app *fiber.App, path, body string, headers ...string) (int, balanceResponse) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var out balanceResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHandlerCreditDebit(t *testing.T) {
	app := setupHandlerApp(t)

	status, out := adjust(t, app, "/accounts/2348012345678/credit", `{"amount":"150.25"}`)
	if status != fiber.StatusOK || out.Balance != "150.25" || out.Phone != "08012345678" {
		t.Fatalf("unexpected credit response %d %+v", status, out)
	}
	status, out = adjust(t, app, "/accounts/08012345678/debit", `{"amount":50}`)
	if status != fiber.StatusOK || out.Balance != "100.25" {
		t.Fatalf("unexpected debit response %d %+v", status, out)
	}
	if status, _ := adjust(t, app, "/accounts/08012345678/debit", `{"amount":"500"}`); status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on overdraw, got %d", status)
	}
	if status, _ := adjust(t, app, "/accounts/08012345678/credit", `{"amount":"-1"}`); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 on negative amount, got %d", status)
	}
	if status, _ := adjust(t, app, "/accounts/08000000000/credit", `{"amount":"1"}`); status != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown account, got %d", status)
	}
}

func TestHandlerRejectsSubMinorAmounts(t *testing.T) {
	app := setupHandlerApp(t)

	for _, path := range []string{"/accounts/08012345678/credit", "/accounts/08012345678/debit"} {
		if status, _ := adjust(t, app, path, `{"amount":"0.004"}`); status != fiber.StatusBadRequest {
			t.Fatalf("%s: expected 400 for 0.004, got %d", path, status)
		}
		if status, _ := adjust(t, app, path, `{"amount":1.005}`); status != fiber.StatusBadRequest {
			t.Fatalf("%s: expected 400 for 1.005, got %d", path, status)
		}
	}
	status, out := adjust(t, app, "/accounts/08012345678/credit", `{"amount":"1.00"}`)
	if status != fiber.StatusOK || out.Balance != "1.00" {
		t.Fatalf("rejected adjustments moved money: %d %+v", status, out)
	}
}

func TestHandlerLogsOperator(t *testing.T) {
	tokens, err := auth.NewService("admin-secret", "test", time.Minute)
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	token, err := tokens.Issue("ops@skaet", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	var buf bytes.Buffer
	app := setupHandlerAppWithLogger(t, logging.NewWithWriter(&buf, "info", nil), middleware.AdminAuth(tokens))

	status, _ := adjust(t, app, "/accounts/08012345678/credit", `{"amount":"20"}`,
		fiber.HeaderAuthorization, "Bearer "+token.AccessToken)
	if status != fiber.StatusOK {
		t.Fatalf("credit: %d", status)
	}
	status, _ = adjust(t, app, "/accounts/08012345678/debit", `{"amount":"50"}`,
		fiber.HeaderAuthorization, "Bearer "+token.AccessToken)
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("debit: %d", status)
	}

	logs := buf.String()
	if !strings.Contains(logs, `"msg":"manual credit"`) || !strings.Contains(logs, `"msg":"manual debit refused"`) {
		t.Fatalf("missing adjustment records: %s", logs)
	}
	if strings.Count(logs, `"operator":"ops@skaet"`) != 2 {
		t.Fatalf("operator not logged on both adjustments: %s", logs)
	}
}

func TestHandlerGet(t *testing.T) {
	app := setupHandlerApp(t)
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/accounts/08012345678", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var out accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.FirstName != "Ada" || out.Balance != "0.00" || !strings.HasPrefix(out.Wallet, "wallet:") {
		t.Fatalf("unexpected account %+v", out)
	}
}

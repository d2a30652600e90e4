package ussd

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skaet/ussd_bank/internal/account"
	"github.com/skaet/ussd_bank/internal/apperr"
	"github.com/skaet/ussd_bank/internal/currency"
	"github.com/skaet/ussd_bank/internal/funding"
	"github.com/skaet/ussd_bank/internal/gateway"
	"github.com/skaet/ussd_bank/internal/ledger"
	"github.com/skaet/ussd_bank/internal/logging"
	"github.com/skaet/ussd_bank/internal/session"
)

const (
	tokenSeparator      = "*"
	defaultStoreTimeout = 2 * time.Second
)

// Accounts is the account surface used by the dialog.
type Accounts interface {
	Create(ctx context.Context, reg account.Registration) (account.Account, error)
	Verify(ctx context.Context, phone, pin string) (account.Account, error)
	CheckBalance(ctx context.Context, phone, pin string) (decimal.Decimal, error)
}

// Funding starts gateway-backed money movement.
type Funding interface {
	InitiateDeposit(ctx context.Context, input funding.DepositInput) (funding.Receipt, error)
	InitiateWithdrawal(ctx context.Context, input funding.WithdrawalInput) (funding.Receipt, error)
}

// Converter converts between menu currencies.
type Converter interface {
	Convert(ctx context.Context, base, target currency.Code, amount decimal.Decimal) decimal.Decimal
}

// Engine answers one USSD request at a time. It holds no per-session state
// of its own; everything conversational lives in the session store.
type Engine struct {
	sessions     session.Store
	accounts     Accounts
	funding      Funding
	converter    Converter
	logger       *slog.Logger
	ttl          time.Duration
	storeTimeout time.Duration
}

type Option func(*Engine)

// WithSessionTTL overrides the sliding session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithStoreTimeout bounds each session store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.storeTimeout = d
		}
	}
}

// NewEngine wires the dialog to its collaborators.
func NewEngine(sessions session.Store, accounts Accounts, funds Funding, converter Converter, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		sessions:     sessions,
		accounts:     accounts,
		funding:      funds,
		converter:    converter,
		logger:       logger,
		ttl:          session.DefaultTTL,
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle consumes the newest token of text and returns the CON/END reply.
// Earlier tokens only rebuild context and never trigger side effects.
func (e *Engine) Handle(ctx context.Context, phone, text, sessionID string) string {
	phone = account.NormalizePhone(phone)
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || phone == "" {
		return msgInvalidSession
	}

	tokens := splitTokens(text)
	if len(tokens) == 0 {
		start := Start()
		e.save(ctx, session.Session{ID: sessionID, Phone: phone, State: start.State}, 0)
		return start.Reply
	}

	current, ok := e.resume(ctx, sessionID, phone, tokens)
	if !ok {
		e.discard(ctx, sessionID)
		return msgSessionExpired
	}

	t := Advance(current.State, tokens[len(tokens)-1])
	reply := t.Reply
	if t.Effect.Action != ActionNone {
		reply = e.apply(ctx, phone, t.Effect)
	}

	if t.Terminal() {
		e.discard(ctx, sessionID)
		return reply
	}
	current.State = t.State
	e.save(ctx, current, len(tokens))
	return reply
}

// resume returns the session positioned just before the newest token. A
// stored session is used when it matches the caller and the token count;
// otherwise the state is rebuilt by replaying the earlier tokens. ok is false
// when the replayed path already ended the dialog.
func (e *Engine) resume(ctx context.Context, id, phone string, tokens []string) (session.Session, bool) {
	consumed := len(tokens) - 1

	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	stored, err := e.sessions.Get(storeCtx, id)
	cancel()
	switch {
	case err == nil && stored.Phone == phone && stored.Depth == consumed:
		return stored, true
	case err == nil:
		e.logger.Info("session out of step, replaying input",
			"session_id", id, logging.Phone(phone), "stored_depth", stored.Depth, "depth", consumed)
	case errors.Is(err, session.ErrNotFound):
		if consumed > 0 {
			e.logger.Info("session missing, replaying input", "session_id", id, logging.Phone(phone), "depth", consumed)
		}
	default:
		e.logger.Warn("session store unavailable, replaying input", "session_id", id, logging.Phone(phone), "error", err)
	}

	state, ok := replay(tokens[:consumed])
	if !ok {
		return session.Session{}, false
	}
	s := session.New(id, phone)
	s.State = state
	s.Depth = consumed
	return s, true
}

// replay folds tokens through Advance without running effects.
func replay(tokens []string) (session.State, bool) {
	var state session.State = session.MainMenu{}
	for _, token := range tokens {
		t := Advance(state, token)
		if t.Terminal() {
			return nil, false
		}
		state = t.State
	}
	return state, true
}

func (e *Engine) save(ctx context.Context, s session.Session, depth int) {
	s.Depth = depth
	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	if err := e.sessions.Put(storeCtx, s, e.ttl); err != nil {
		e.logger.Warn("session save failed", "session_id", s.ID, logging.Phone(s.Phone), "error", err)
	}
}

func (e *Engine) discard(ctx context.Context, id string) {
	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	if err := e.sessions.Delete(storeCtx, id); err != nil {
		e.logger.Warn("session delete failed", "session_id", id, "error", err)
	}
}

func (e *Engine) apply(ctx context.Context, phone string, eff Effect) string {
	switch eff.Action {
	case ActionCreateAccount:
		return e.createAccount(ctx, phone, eff)
	case ActionCheckBalance:
		return e.checkBalance(ctx, phone, eff.PIN)
	case ActionDeposit:
		return e.deposit(ctx, phone, eff)
	case ActionWithdraw:
		return e.withdraw(ctx, phone, eff)
	case ActionConvert:
		converted := e.converter.Convert(ctx, eff.Base, eff.Target, eff.Amount)
		return conversionMessage(eff.Amount, eff.Base, converted, eff.Target)
	default:
		return msgTransactionFail
	}
}

func (e *Engine) createAccount(ctx context.Context, phone string, eff Effect) string {
	_, err := e.accounts.Create(ctx, account.Registration{
		Phone:     phone,
		FirstName: eff.FirstName,
		LastName:  eff.LastName,
		PIN:       eff.PIN,
	})
	switch {
	case err == nil:
		return msgAccountCreated
	case errors.Is(err, account.ErrAccountExists):
		return msgAccountExists
	case errors.Is(err, account.ErrMalformedPIN):
		return msgMalformedPIN
	default:
		e.logger.Error("account creation failed", logging.Phone(phone), "error", err)
		return msgCreateFailed
	}
}

func (e *Engine) checkBalance(ctx context.Context, phone, pin string) string {
	balance, err := e.accounts.CheckBalance(ctx, phone, pin)
	if err == nil {
		return balanceMessage(balance)
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return msgAccountNotFound
	case apperr.KindAuth:
		return msgInvalidPIN
	default:
		e.logger.Error("balance check failed", logging.Phone(phone), "error", err)
		return msgBalanceFailed
	}
}

func (e *Engine) deposit(ctx context.Context, phone string, eff Effect) string {
	receipt, err := e.funding.InitiateDeposit(ctx, funding.DepositInput{Phone: phone, Amount: eff.Amount, Method: eff.Method})
	if err != nil {
		return e.fundingFailure(phone, "deposit", err, msgDepositFailed)
	}
	return depositMessage(receipt.Gateway, receipt.Amount, receipt.Reference)
}

func (e *Engine) withdraw(ctx context.Context, phone string, eff Effect) string {
	if _, err := e.accounts.Verify(ctx, phone, eff.PIN); err != nil {
		return e.fundingFailure(phone, "withdrawal", err, msgWithdrawalFailed)
	}
	receipt, err := e.funding.InitiateWithdrawal(ctx, funding.WithdrawalInput{Phone: phone, Amount: eff.Amount, Method: eff.Method})
	if err != nil {
		return e.fundingFailure(phone, "withdrawal", err, msgWithdrawalFailed)
	}
	return withdrawalMessage(receipt.Gateway, receipt.Amount, receipt.Reference)
}

// fundingFailure maps an initiation error to its terminal message.
func (e *Engine) fundingFailure(phone, kind string, err error, gatewayMsg string) string {
	switch {
	case errors.Is(err, gateway.ErrUnknownGateway):
		return msgInvalidOption
	case errors.Is(err, ledger.ErrAmountPrecision):
		return msgNotNumeric
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return msgAccountNotFound
	case apperr.KindAuth:
		return msgInvalidPIN
	case apperr.KindInsufficientFunds:
		return msgInsufficientFunds
	case apperr.KindValidation:
		return msgNotPositive
	case apperr.KindGateway:
		e.logger.Warn("gateway rejected "+kind, logging.Phone(phone), "error", err)
		return gatewayMsg
	default:
		e.logger.Error(kind+" initiation failed", logging.Phone(phone), "error", err)
		return msgTransactionFail
	}
}

func splitTokens(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return strings.Split(text, tokenSeparator)
}

package ussd

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/skaet/ussd_bank/internal/currency"
	"github.com/skaet/ussd_bank/internal/gateway"
	"github.com/skaet/ussd_bank/internal/ledger"
	"github.com/skaet/ussd_bank/internal/session"
)

// Action names the side effect a transition asks the engine to run.
type Action int

const (
	ActionNone Action = iota
	ActionCreateAccount
	ActionCheckBalance
	ActionDeposit
	ActionWithdraw
	ActionConvert
)

// Effect carries the inputs collected for an Action.
type Effect struct {
	Action    Action
	FirstName string
	LastName  string
	PIN       string
	Method    string
	Amount    decimal.Decimal
	Base      currency.Code
	Target    currency.Code
}

// Transition is the result of consuming one input token. State is nil when
// the dialog ends. Reply is empty when the Effect decides the final text.
type Transition struct {
	State  session.State
	Reply  string
	Effect Effect
}

// Terminal reports whether the dialog ends after this transition.
func (t Transition) Terminal() bool {
	return t.State == nil
}

// Start is the transition for an empty input: the main menu.
func Start() Transition {
	return next(session.MainMenu{}, mainMenu())
}

// Advance consumes token against state. It performs no I/O; replaying the
// same tokens always yields the same transitions.
func Advance(state session.State, token string) Transition {
	token = strings.TrimSpace(token)
	switch s := state.(type) {
	case nil, session.MainMenu:
		return advanceMainMenu(token)
	case session.AccountCreation:
		return advanceAccountCreation(s, token)
	case session.BalanceCheck:
		if token == "0" {
			return Start()
		}
		return effect(Effect{Action: ActionCheckBalance, PIN: token})
	case session.Deposit:
		return advanceDeposit(s, token)
	case session.Withdrawal:
		return advanceWithdrawal(s, token)
	case session.Conversion:
		return advanceConversion(s, token)
	default:
		return end(msgInvalidSession)
	}
}

func advanceMainMenu(token string) Transition {
	switch token {
	case "1":
		return next(session.AccountCreation{Step: session.StepFirstName}, promptFirstName)
	case "2":
		return next(session.BalanceCheck{}, promptPIN)
	case "3":
		return next(session.Deposit{Step: session.StepMethod}, depositMenu())
	case "4":
		return next(session.Withdrawal{Step: session.StepMethod}, withdrawalMenu())
	case "5":
		return next(session.Conversion{Step: session.StepBase}, baseCurrencyMenu())
	case "6":
		return end(msgExit)
	default:
		return end(msgInvalidOption)
	}
}

func advanceAccountCreation(s session.AccountCreation, token string) Transition {
	switch s.Step {
	case session.StepFirstName, "":
		if token == "0" {
			return Start()
		}
		if token == "" {
			return end(msgInvalidName)
		}
		return next(session.AccountCreation{Step: session.StepLastName, FirstName: token}, promptLastName)
	case session.StepLastName:
		if token == "" {
			return end(msgInvalidName)
		}
		s.Step, s.LastName = session.StepPIN, token
		return next(s, promptCreatePIN)
	case session.StepPIN:
		return effect(Effect{Action: ActionCreateAccount, FirstName: s.FirstName, LastName: s.LastName, PIN: token})
	default:
		return end(msgInvalidSession)
	}
}

func advanceDeposit(s session.Deposit, token string) Transition {
	switch s.Step {
	case session.StepMethod, "":
		switch token {
		case "0":
			return Start()
		case "1":
			return next(session.Deposit{Step: session.StepAmount, Method: gateway.FlutterwaveName}, promptDeposit)
		default:
			return end(msgInvalidOption)
		}
	case session.StepAmount:
		amount, failure := parseAmount(token)
		if failure != "" {
			return end(failure)
		}
		return effect(Effect{Action: ActionDeposit, Method: s.Method, Amount: amount})
	default:
		return end(msgInvalidSession)
	}
}

func advanceWithdrawal(s session.Withdrawal, token string) Transition {
	switch s.Step {
	case session.StepMethod, "":
		switch token {
		case "0":
			return Start()
		case "1":
			return next(session.Withdrawal{Step: session.StepAmount, Method: gateway.FlutterwaveName}, promptWithdraw)
		default:
			return end(msgInvalidOption)
		}
	case session.StepAmount:
		amount, failure := parseAmount(token)
		if failure != "" {
			return end(failure)
		}
		s.Step, s.Amount = session.StepPIN, amount.String()
		return next(s, promptPIN)
	case session.StepPIN:
		amount, err := decimal.NewFromString(s.Amount)
		if err != nil || ledger.ValidateAmount(amount) != nil {
			return end(msgInvalidSession)
		}
		return effect(Effect{Action: ActionWithdraw, Method: s.Method, Amount: amount, PIN: token})
	default:
		return end(msgInvalidSession)
	}
}

func advanceConversion(s session.Conversion, token string) Transition {
	switch s.Step {
	case session.StepBase, "":
		if token == "0" {
			return Start()
		}
		code, ok := currencyChoice(token)
		if !ok {
			return end(msgInvalidBase)
		}
		return next(session.Conversion{Step: session.StepTarget, Base: string(code)}, targetCurrencyMenu())
	case session.StepTarget:
		code, ok := currencyChoice(token)
		if !ok {
			return end(msgInvalidTarget)
		}
		s.Step, s.Target = session.StepAmount, string(code)
		return next(s, promptConvert)
	case session.StepAmount:
		base, okBase := currency.Parse(s.Base)
		target, okTarget := currency.Parse(s.Target)
		if !okBase || !okTarget {
			return end(msgInvalidSession)
		}
		amount, failure := parseAmount(token)
		if failure != "" {
			return end(failure)
		}
		return effect(Effect{Action: ActionConvert, Base: base, Target: target, Amount: amount})
	default:
		return end(msgInvalidSession)
	}
}

// currencyChoice maps a 1-based menu selection to a currency.
func currencyChoice(token string) (currency.Code, bool) {
	if len(token) != 1 || token[0] < '1' {
		return "", false
	}
	i := int(token[0] - '1')
	if i >= len(currency.Supported) {
		return "", false
	}
	return currency.Supported[i], true
}

const maxAmountLength = 15

// parseAmount returns the amount or the terminal message explaining why it
// was rejected. Exponent notation is refused; handsets cannot type it. More
// than two decimals is not a money amount and is refused as non-numeric.
func parseAmount(token string) (decimal.Decimal, string) {
	if len(token) > maxAmountLength || strings.ContainsAny(token, "eE") {
		return decimal.Decimal{}, msgNotNumeric
	}
	amount, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Decimal{}, msgNotNumeric
	}
	switch err := ledger.ValidateAmount(amount); {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return decimal.Decimal{}, msgNotPositive
	case err != nil:
		return decimal.Decimal{}, msgNotNumeric
	}
	return amount, ""
}

func next(state session.State, reply string) Transition {
	return Transition{State: state, Reply: reply}
}

func end(reply string) Transition {
	return Transition{Reply: reply}
}

func effect(e Effect) Transition {
	return Transition{Effect: e}
}

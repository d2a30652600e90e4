package session

import (
	"encoding/json"
	"fmt"
)

// Flow names a dialog menu level.
type Flow string

const (
	FlowMainMenu        Flow = "main_menu"
	FlowAccountCreation Flow = "account_creation"
	FlowBalanceCheck    Flow = "balance_check"
	FlowDeposit         Flow = "deposit"
	FlowWithdrawal      Flow = "withdrawal"
	FlowConversion      Flow = "conversion"
)

// Step is the prompt a flow is waiting on. Each flow uses the subset it needs.
type Step string

const (
	StepFirstName Step = "first_name"
	StepLastName  Step = "last_name"
	StepPIN       Step = "pin"
	StepMethod    Step = "method"
	StepAmount    Step = "amount"
	StepBase      Step = "base"
	StepTarget    Step = "target"
)

// State is one of the tagged dialog variants below.
type State interface {
	Flow() Flow
}

// MainMenu waits for a menu selection.
type MainMenu struct{}

// AccountCreation walks first name, last name, PIN.
type AccountCreation struct {
	Step      Step   `json:"step"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// BalanceCheck waits for the PIN.
type BalanceCheck struct{}

// Deposit walks method, amount.
type Deposit struct {
	Step   Step   `json:"step"`
	Method string `json:"method,omitempty"`
}

// Withdrawal walks method, amount, PIN. Amount is kept as the decimal text the
// user entered.
type Withdrawal struct {
	Step   Step   `json:"step"`
	Method string `json:"method,omitempty"`
	Amount string `json:"amount,omitempty"`
}

// Conversion walks base currency, target currency, amount.
type Conversion struct {
	Step   Step   `json:"step"`
	Base   string `json:"base,omitempty"`
	Target string `json:"target,omitempty"`
}

func (MainMenu) Flow() Flow        { return FlowMainMenu }
func (AccountCreation) Flow() Flow { return FlowAccountCreation }
func (BalanceCheck) Flow() Flow    { return FlowBalanceCheck }
func (Deposit) Flow() Flow         { return FlowDeposit }
func (Withdrawal) Flow() Flow      { return FlowWithdrawal }
func (Conversion) Flow() Flow      { return FlowConversion }

type envelope struct {
	Flow Flow            `json:"flow"`
	Data json.RawMessage `json:"data,omitempty"`
}

func encodeState(s State) (envelope, error) {
	if s == nil {
		s = MainMenu{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Flow: s.Flow(), Data: data}, nil
}

func decodeState(e envelope) (State, error) {
	var target State
	switch e.Flow {
	case FlowMainMenu, "":
		return MainMenu{}, nil
	case FlowBalanceCheck:
		return BalanceCheck{}, nil
	case FlowAccountCreation:
		var v AccountCreation
		if err := unmarshalData(e.Data, &v); err != nil {
			return nil, err
		}
		target = v
	case FlowDeposit:
		var v Deposit
		if err := unmarshalData(e.Data, &v); err != nil {
			return nil, err
		}
		target = v
	case FlowWithdrawal:
		var v Withdrawal
		if err := unmarshalData(e.Data, &v); err != nil {
			return nil, err
		}
		target = v
	case FlowConversion:
		var v Conversion
		if err := unmarshalData(e.Data, &v); err != nil {
			return nil, err
		}
		target = v
	default:
		return nil, fmt.Errorf("session: unknown flow %q", e.Flow)
	}
	return target, nil
}

func unmarshalData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

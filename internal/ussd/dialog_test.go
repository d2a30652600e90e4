package ussd

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/skaet/ussd_bank/internal/currency"
	"github.com/skaet/ussd_bank/internal/session"
)

func walk(t *testing.T, tokens ...string) Transition {
	t.Helper()
	tr := Start()
	for i, token := range tokens {
		require.False(t, tr.Terminal(), "dialog ended before token %d", i)
		tr = Advance(tr.State, token)
	}
	return tr
}

func TestStartListsMainMenu(t *testing.T) {
	tr := Start()
	require.Equal(t, session.MainMenu{}, tr.State)
	require.True(t, strings.HasPrefix(tr.Reply, "CON "))
	for _, option := range []string{"1. Create Account", "2. Check Balance", "3. Deposit", "4. Withdraw", "5. Currency Converter", "6. Exit"} {
		require.Contains(t, tr.Reply, option)
	}
}

func TestMainMenuSelections(t *testing.T) {
	cases := map[string]string{
		"1": promptFirstName,
		"2": promptPIN,
		"3": depositMenu(),
		"4": withdrawalMenu(),
		"5": baseCurrencyMenu(),
	}
	for token, reply := range cases {
		tr := walk(t, token)
		require.False(t, tr.Terminal(), token)
		require.Equal(t, reply, tr.Reply)
	}

	require.Equal(t, msgExit, walk(t, "6").Reply)
	bad := walk(t, "9")
	require.True(t, bad.Terminal())
	require.Equal(t, msgInvalidOption, bad.Reply)
	require.Equal(t, ActionNone, bad.Effect.Action)
}

func TestMenuTexts(t *testing.T) {
	require.Equal(t, "CON Select deposit method:\n1. Flutterwave USSD\n0. Back to Main Menu", depositMenu())
	require.Equal(t, "CON Select withdrawal method:\n1. Flutterwave\n0. Back to Main Menu", withdrawalMenu())
	require.Equal(t, "CON Select base currency:\n1. NGN\n2. USD\n3. EUR\n4. GBP\n0. Back to Main Menu", baseCurrencyMenu())
	require.Equal(t, "CON Select target currency:\n1. NGN\n2. USD\n3. EUR\n4. GBP", targetCurrencyMenu())
}

func TestAccountCreationCollectsFields(t *testing.T) {
	tr := walk(t, "1", "John")
	require.Equal(t, promptLastName, tr.Reply)
	tr = walk(t, "1", "John", "Doe")
	require.Equal(t, promptCreatePIN, tr.Reply)

	tr = walk(t, "1", "John", "Doe", "1234")
	require.True(t, tr.Terminal())
	require.Equal(t, Effect{Action: ActionCreateAccount, FirstName: "John", LastName: "Doe", PIN: "1234"}, tr.Effect)
}

func TestBackAtFirstPromptReturnsMainMenu(t *testing.T) {
	for _, flow := range []string{"1", "2", "3", "4", "5"} {
		tr := walk(t, flow, "0")
		require.Equal(t, session.MainMenu{}, tr.State, flow)
		require.Equal(t, mainMenu(), tr.Reply, flow)
	}
	// The menu keeps working after going back.
	tr := walk(t, "3", "0", "2")
	require.Equal(t, session.BalanceCheck{}, tr.State)
}

func TestDepositAmountValidation(t *testing.T) {
	require.Equal(t, msgInvalidOption, walk(t, "3", "2").Reply)
	require.Equal(t, msgNotNumeric, walk(t, "3", "1", "abc").Reply)
	require.Equal(t, msgNotNumeric, walk(t, "3", "1", "1e9").Reply)
	require.Equal(t, msgNotPositive, walk(t, "3", "1", "0").Reply)
	require.Equal(t, msgNotPositive, walk(t, "3", "1", "-5").Reply)

	tr := walk(t, "3", "1", "500")
	require.True(t, tr.Terminal())
	require.Equal(t, ActionDeposit, tr.Effect.Action)
	require.Equal(t, "flutterwave", tr.Effect.Method)
	require.True(t, tr.Effect.Amount.Equal(decimal.NewFromInt(500)))
}

func TestAmountsFinerThanKoboAreRejected(t *testing.T) {
	for _, raw := range []string{"0.004", "1.005", "100.005"} {
		require.Equal(t, msgNotNumeric, walk(t, "3", "1", raw).Reply, raw)
		require.Equal(t, msgNotNumeric, walk(t, "4", "1", raw).Reply, raw)
		require.Equal(t, msgNotNumeric, walk(t, "5", "2", "1", raw).Reply, raw)
	}

	// Trailing zeros are still two-decimal amounts.
	tr := walk(t, "3", "1", "100.500")
	require.Equal(t, ActionDeposit, tr.Effect.Action)
	require.Equal(t, "100.50", tr.Effect.Amount.StringFixed(2))
}

func TestWithdrawalAsksForPINLast(t *testing.T) {
	tr := walk(t, "4", "1", "250.50")
	require.False(t, tr.Terminal())
	require.Equal(t, promptPIN, tr.Reply)
	require.Equal(t, ActionNone, tr.Effect.Action)

	tr = walk(t, "4", "1", "250.50", "1234")
	require.Equal(t, ActionWithdraw, tr.Effect.Action)
	require.Equal(t, "1234", tr.Effect.PIN)
	require.True(t, tr.Effect.Amount.Equal(decimal.RequireFromString("250.5")))
}

func TestConversionFlow(t *testing.T) {
	require.Equal(t, msgInvalidBase, walk(t, "5", "7").Reply)
	require.Equal(t, msgInvalidTarget, walk(t, "5", "2", "0").Reply)
	require.Equal(t, msgNotPositive, walk(t, "5", "2", "1", "0").Reply)

	tr := walk(t, "5", "2", "1", "100")
	require.Equal(t, ActionConvert, tr.Effect.Action)
	require.Equal(t, currency.USD, tr.Effect.Base)
	require.Equal(t, currency.NGN, tr.Effect.Target)
	require.True(t, tr.Effect.Amount.Equal(decimal.NewFromInt(100)))
}

func TestAdvanceIsDeterministic(t *testing.T) {
	paths := [][]string{
		{"1", "John", "Doe", "1234"},
		{"4", "1", "300", "1234"},
		{"5", "3", "4", "12.5"},
	}
	for _, path := range paths {
		first := walk(t, path...)
		second := walk(t, path...)
		require.Equal(t, first, second)
	}
}

package ussd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/skaet/ussd_bank/internal/currency"
	"github.com/skaet/ussd_bank/internal/gateway"
)

const (
	msgExit            = "END Thank you for using our service"
	msgInvalidOption   = "END Invalid option selected"
	msgInvalidSession  = "END Invalid session"
	msgSessionExpired  = "END Session expired. Please start again."
	msgInvalidName     = "END Invalid name entered. Please start again."
	msgNotNumeric      = "END Invalid amount entered. Please enter a numeric value."
	msgNotPositive     = "END Invalid amount. Please enter a positive number."
	msgInvalidBase     = "END Invalid currency selected"
	msgInvalidTarget   = "END Invalid target currency"
	msgTransactionFail = "END Transaction failed. Please try again"

	msgAccountExists  = "END Account already exists"
	msgMalformedPIN   = "END PIN must be 4 digits and contain only numbers"
	msgAccountCreated = "END Account created successfully"
	msgCreateFailed   = "END Account creation failed. Please try again"

	msgAccountNotFound = "END Account not found"
	msgInvalidPIN      = "END Invalid PIN"
	msgBalanceFailed   = "END Unable to check balance. Please try again"

	msgDepositFailed     = "END Deposit failed. Please try again later."
	msgWithdrawalFailed  = "END Withdrawal failed. Please try again later."
	msgInsufficientFunds = "END Insufficient balance."

	promptFirstName = "CON Enter your first name:"
	promptLastName  = "CON Enter your last name:"
	promptCreatePIN = "CON Create your 4-digit PIN:"
	promptPIN       = "CON Enter your PIN:"
	promptDeposit   = "CON Enter amount to deposit:"
	promptWithdraw  = "CON Enter amount to withdraw:"
	promptConvert   = "CON Enter amount to convert:"
)

// displayName renders a registry gateway name for the handset. A Caser
// carries state, so each call gets its own.
func displayName(name string) string {
	return cases.Title(language.English).String(strings.ToLower(name))
}

func mainMenu() string {
	return "CON Welcome to SKAET USSD Banking\n" +
		"1. Create Account\n" +
		"2. Check Balance\n" +
		"3. Deposit\n" +
		"4. Withdraw\n" +
		"5. Currency Converter\n" +
		"6. Exit"
}

func depositMenu() string {
	return "CON Select deposit method:\n" +
		"1. " + displayName(gateway.FlutterwaveName) + " USSD\n" +
		"0. Back to Main Menu"
}

func withdrawalMenu() string {
	return "CON Select withdrawal method:\n" +
		"1. " + displayName(gateway.FlutterwaveName) + "\n" +
		"0. Back to Main Menu"
}

func currencyMenu(title string, withBack bool) string {
	var b strings.Builder
	b.WriteString("CON ")
	b.WriteString(title)
	for i, code := range currency.Supported {
		fmt.Fprintf(&b, "\n%d. %s", i+1, code)
	}
	if withBack {
		b.WriteString("\n0. Back to Main Menu")
	}
	return b.String()
}

func baseCurrencyMenu() string   { return currencyMenu("Select base currency:", true) }
func targetCurrencyMenu() string { return currencyMenu("Select target currency:", false) }

func balanceMessage(balance decimal.Decimal) string {
	return fmt.Sprintf("END Your balance is NGN %s", balance.StringFixed(2))
}

func depositMessage(gatewayName string, amount decimal.Decimal, reference string) string {
	return fmt.Sprintf("END Deposit initiated via %s\nAmount: NGN %s\nReference: %s\nCheck your SMS for payment instructions",
		displayName(gatewayName), amount.StringFixed(2), reference)
}

func withdrawalMessage(gatewayName string, amount decimal.Decimal, reference string) string {
	return fmt.Sprintf("END Withdrawal initiated via %s\nAmount: NGN %s\nReference: %s\nYou will receive a confirmation SMS once processed",
		displayName(gatewayName), amount.StringFixed(2), reference)
}

func conversionMessage(amount decimal.Decimal, base currency.Code, converted decimal.Decimal, target currency.Code) string {
	return fmt.Sprintf("END %s %s = %s %s", amount.String(), base, converted.StringFixed(2), target)
}

package account

import (
	"strings"
	"time"
)

// Account represents a registered wallet owner. Identity fields are fixed
// after creation.
type Account struct {
	ID         string
	Phone      string
	FirstName  string
	LastName   string
	PINHash    []byte
	WalletCode string
	CreatedAt  time.Time
}

// FullName joins the first and last name.
func (a Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Registration is the input to account creation.
type Registration struct {
	Phone     string
	FirstName string
	LastName  string
	PIN       string
}

// NormalizePhone strips '+' and rewrites a leading 234 country code to a local leading 0.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(strings.ReplaceAll(phone, "+", ""))
	if strings.HasPrefix(phone, "234") {
		return "0" + phone[3:]
	}
	return phone
}

// ValidPIN reports whether pin is exactly four ASCII digits.
func ValidPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

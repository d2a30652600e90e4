package infra

import (
	"strings"
	"testing"
)

func TestSchemaDeclaresTables(t *testing.T) {
	ddl := Schema()
	for _, table := range []string{"wallets", "accounts", "transactions"} {
		if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("schema missing table %s", table)
		}
	}
	if !strings.Contains(ddl, "CHECK (balance >= 0)") {
		t.Fatalf("schema must forbid negative balances")
	}
}

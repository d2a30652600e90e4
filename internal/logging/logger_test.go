package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestMaskPhone(t *testing.T) {
	cases := map[string]string{
		"08012345678": "*******5678",
		"1234":        "1234",
		"":            "",
	}
	for in, want := range cases {
		if got := MaskPhone(in); got != want {
			t.Fatalf("MaskPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewWithWriterStampsAttrsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn", []slog.Attr{slog.String("app", "ussd")})

	logger.Info("dropped")
	logger.Warn("kept", Phone("08012345678"))

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected a single json record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "kept" || rec["app"] != "ussd" || rec["phone"] != "*******5678" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "loud", nil)
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered at default info level")
	}
	logger.Info("shown")
	if buf.Len() == 0 {
		t.Fatalf("expected info record")
	}
}

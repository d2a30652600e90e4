package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrappedSentinel(t *testing.T) {
	sentinel := New(KindConflict, "account exists")
	err := fmt.Errorf("create account: %w", sentinel)

	if got := KindOf(err); got != KindConflict {
		t.Fatalf("expected conflict, got %s", got)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected errors.Is to match sentinel")
	}
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("expected internal, got %s", got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %s", got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(KindGateway, "initiate deposit", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain")
	}
	if !Is(err, KindGateway) {
		t.Fatalf("expected gateway kind")
	}
	if err.Error() != "gateway: initiate deposit: dial tcp: timeout" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

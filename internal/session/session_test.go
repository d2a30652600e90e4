package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedisStore(client), mr
}

func TestRedisStoreRoundTripsVariants(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	states := []State{
		MainMenu{},
		AccountCreation{Step: StepPIN, FirstName: "John", LastName: "Doe"},
		BalanceCheck{},
		Deposit{Step: StepAmount, Method: "flutterwave"},
		Withdrawal{Step: StepPIN, Method: "flutterwave", Amount: "250.50"},
		Conversion{Step: StepAmount, Base: "USD", Target: "NGN"},
	}
	for _, st := range states {
		s := New("sess-1", "08012345678")
		s.State = st
		s.Depth = 3
		if err := store.Put(ctx, s, time.Minute); err != nil {
			t.Fatalf("put %s: %v", st.Flow(), err)
		}
		got, err := store.Get(ctx, "sess-1")
		if err != nil {
			t.Fatalf("get %s: %v", st.Flow(), err)
		}
		if got.State != st {
			t.Fatalf("state mismatch: got %#v want %#v", got.State, st)
		}
		if got.Phone != "08012345678" || got.Depth != 3 || got.ExpiresAt.IsZero() {
			t.Fatalf("unexpected session fields: %+v", got)
		}
	}
}

func TestRedisStoreSlidingTTL(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()
	s := New("sess-ttl", "0801")

	if err := store.Put(ctx, s, DefaultTTL); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(200 * time.Second)
	if err := store.Put(ctx, s, DefaultTTL); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	mr.FastForward(200 * time.Second)
	if _, err := store.Get(ctx, "sess-ttl"); err != nil {
		t.Fatalf("expected refreshed session to be live, got %v", err)
	}

	mr.FastForward(301 * time.Second)
	if _, err := store.Get(ctx, "sess-ttl"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired session to be absent, got %v", err)
	}
}

func TestRedisStoreDeleteIsIdempotent(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	if err := store.Put(ctx, New("sess-del", "0801"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Delete(ctx, "sess-del"); err != nil {
			t.Fatalf("delete %d: %v", i, err)
		}
	}
	if _, err := store.Get(ctx, "sess-del"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestRedisStoreCorruptRecord(t *testing.T) {
	store, mr := setupStore(t)
	if err := mr.Set(keyPrefix+"bad", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := store.Get(context.Background(), "bad")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := setupStore(t)
	mr.Close()
	_, err := store.Get(context.Background(), "any")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected an operational error, got %v", err)
	}
}

func TestSessionJSONShape(t *testing.T) {
	s := New("sess-json", "0801")
	s.State = Deposit{Step: StepMethod}
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	state, _ := generic["state"].(map[string]any)
	if state["flow"] != string(FlowDeposit) {
		t.Fatalf("expected tagged flow, got %v", generic["state"])
	}

	var unknown Session
	if err := json.Unmarshal([]byte(`{"id":"x","state":{"flow":"teleport"}}`), &unknown); err == nil {
		t.Fatalf("expected error for unknown flow")
	}
}

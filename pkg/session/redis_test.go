//go:build integration

package session

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

// setupRedisContainer starts a Redis container for testing
func setupRedisContainer(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	redisContainer, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	endpoint, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	// Strip "redis://" prefix if present
	addr := endpoint
	if len(endpoint) > 8 && endpoint[:8] == "redis://" {
		addr = endpoint[8:]
	}

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return addr
}

func TestRedisStore_New(t *testing.T) {
	addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping error: %v", err)
	}
}

func TestRedisStore_New_BadParams(t *testing.T) {
	if _, err := NewRedisStore("", "", 0, time.Minute); err == nil {
		t.Error("expected error for empty address")
	}
	if _, err := NewRedisStore("localhost:6379", "", -1, time.Minute); err == nil {
		t.Error("expected error for negative db")
	}
}

func TestRedisStore_PutGet(t *testing.T) {
	addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	want := testState("races.csv")
	want.DistanceChosen = "10K"

	if err := store.Put(ctx, "default", want); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, found, err := store.Get(ctx, "default")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !found {
		t.Fatal("expected session to be found")
	}
	if got.Name != want.Name {
		t.Errorf("Name = %q, want %q", got.Name, want.Name)
	}
	if string(got.RaceData) != string(want.RaceData) {
		t.Errorf("RaceData did not round-trip")
	}
	if got.DistanceChosen != "10K" {
		t.Errorf("DistanceChosen = %q", got.DistanceChosen)
	}
}

func TestRedisStore_GetMissing(t *testing.T) {
	addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_, found, err := store.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if found {
		t.Error("expected not found")
	}
}

func TestRedisStore_InvalidSessionID(t *testing.T) {
	addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.Put(context.Background(), "bad id!", testState("x")); err == nil {
		t.Error("expected error for invalid session id")
	}
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Put(ctx, "default", testState("races.csv")); err != nil {
		t.Fatal(err)
	}

	time.Sleep(1500 * time.Millisecond)

	_, found, err := store.Get(ctx, "default")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("expected session to have expired")
	}
}

func TestRedisStore_CloseIdempotent(t *testing.T) {
	addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisKVClient struct {
	lastSetKey string
	lastSetTTL time.Duration
	lastGetDel string

	setErr    error
	getDelErr error
}

func (m *mockRedisKVClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.lastSetKey = key
	m.lastSetTTL = expiration
	cmd := redis.NewStatusCmd(ctx)
	if m.setErr != nil {
		cmd.SetErr(m.setErr)
		return cmd
	}
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisKVClient) GetDel(ctx context.Context, key string) *redis.StringCmd {
	m.lastGetDel = key
	cmd := redis.NewStringCmd(ctx)
	if m.getDelErr != nil {
		cmd.SetErr(m.getDelErr)
		return cmd
	}
	cmd.SetVal("1")
	return cmd
}

func TestMemoryStateStore_SingleUse(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	ok, err := store.Consume(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("expected missing state false,nil; got %v,%v", ok, err)
	}

	if err := store.Save(ctx, "st-1", time.Minute); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	ok, err = store.Consume(ctx, "st-1")
	if err != nil || !ok {
		t.Fatalf("expected first consume true, got %v,%v", ok, err)
	}
	ok, err = store.Consume(ctx, "st-1")
	if err != nil || ok {
		t.Fatalf("expected replay rejected, got %v,%v", ok, err)
	}
}

func TestMemoryStateStore_Expired(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()
	if err := store.Save(ctx, "st-2", 20*time.Millisecond); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	ok, err := store.Consume(ctx, "st-2")
	if err != nil || ok {
		t.Fatalf("expected expired state rejected, got %v,%v", ok, err)
	}
}

func TestRedisStateStore_Basics(t *testing.T) {
	mock := &mockRedisKVClient{}
	store := &redisStateStore{client: mock, prefix: "oauth:state:"}
	ctx := context.Background()

	if err := store.Save(ctx, " st-1 ", 0); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if mock.lastSetKey != "oauth:state:st-1" {
		t.Fatalf("unexpected key, got %q", mock.lastSetKey)
	}
	if mock.lastSetTTL != StateTTL {
		t.Fatalf("expected default TTL, got %v", mock.lastSetTTL)
	}

	ok, err := store.Consume(ctx, "st-1")
	if err != nil || !ok {
		t.Fatalf("expected consume true,nil; got %v,%v", ok, err)
	}
	if mock.lastGetDel != "oauth:state:st-1" {
		t.Fatalf("unexpected getdel key, got %q", mock.lastGetDel)
	}
}

func TestRedisStateStore_MissingAndErrors(t *testing.T) {
	ctx := context.Background()

	missing := &redisStateStore{client: &mockRedisKVClient{getDelErr: redis.Nil}, prefix: "oauth:state:"}
	ok, err := missing.Consume(ctx, "st-x")
	if err != nil || ok {
		t.Fatalf("expected redis.Nil as false,nil; got %v,%v", ok, err)
	}

	broken := &redisStateStore{
		client: &mockRedisKVClient{setErr: errors.New("set failed"), getDelErr: errors.New("down")},
		prefix: "oauth:state:",
	}
	if err := broken.Save(ctx, "st-y", time.Minute); err == nil {
		t.Fatalf("expected save error")
	}
	if _, err := broken.Consume(ctx, "st-y"); err == nil {
		t.Fatalf("expected consume error")
	}
	ok, err = broken.Consume(ctx, "  ")
	if err != nil || ok {
		t.Fatalf("empty state should be false,nil; got %v,%v", ok, err)
	}
}

package cache

import (
	"context"
	"testing"
	"time"
)

type page struct {
	Titles []string `json:"titles"`
}

func TestTTLCache_SetGet(t *testing.T) {
	c := NewTTLCache(time.Minute)
	ctx := context.Background()
	if err := c.Set(ctx, "catalog:movie:popular:1", page{Titles: []string{"Dune"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got page
	ok, err := c.Get(ctx, "catalog:movie:popular:1", &got)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got.Titles) != 1 || got.Titles[0] != "Dune" {
		t.Fatalf("unexpected value %+v", got)
	}
}

func TestTTLCache_Expires(t *testing.T) {
	now := time.Now()
	c := NewTTLCache(time.Minute)
	c.now = func() time.Time { return now }
	_ = c.Set(context.Background(), "k", page{})

	now = now.Add(2 * time.Minute)
	var got page
	if ok, _ := c.Get(context.Background(), "k", &got); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestTTLCache_Invalidate(t *testing.T) {
	c := NewTTLCache(time.Minute)
	ctx := context.Background()
	_ = c.Set(ctx, "a", page{})
	_ = c.Set(ctx, "b", page{})

	_ = c.Invalidate(ctx, "a")
	var got page
	if ok, _ := c.Get(ctx, "a", &got); ok {
		t.Fatal("expected a to be invalidated")
	}
	if ok, _ := c.Get(ctx, "b", &got); !ok {
		t.Fatal("expected b to survive a single-key invalidation")
	}

	_ = c.Invalidate(ctx, "all")
	if ok, _ := c.Get(ctx, "b", &got); ok {
		t.Fatal("expected ALL to clear every entry")
	}
}

func TestTTLCache_SubscribeWithoutNATS(t *testing.T) {
	c := NewTTLCache(time.Minute)
	if err := c.SubscribeInvalidation(nil, "cache.invalidate", nil); err != nil {
		t.Fatalf("expected nil connection to be a no-op, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestNewRedisCache_BadURL(t *testing.T) {
	if _, err := NewRedisCache("not a url", time.Minute, ""); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}

package knowledge

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

func newMiniRedisCache(t *testing.T, ttl time.Duration) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(RedisConfig{Addr: mr.Addr(), TTL: ttl}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCacheGetSet(t *testing.T) {
	c := newMiniRedisCache(t, time.Hour)

	if _, err := c.Get("wiki:gatsby"); !IsCacheMiss(err) {
		t.Errorf("expected cache miss, got %v", err)
	}
	if err := c.Set("wiki:gatsby", "entry"); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get("wiki:gatsby")
	if err != nil || got != "entry" {
		t.Errorf("Get = %q, %v", got, err)
	}
}

func TestRedisCacheTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(RedisConfig{Addr: mr.Addr(), TTL: time.Minute}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Set("lit:beloved", "analysis"); err != nil {
		t.Fatal(err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := c.Get("lit:beloved"); !IsCacheMiss(err) {
		t.Errorf("expected expiry after TTL, got %v", err)
	}
}

func TestRedisCacheConnectFailure(t *testing.T) {
	_, err := NewRedisCache(RedisConfig{Addr: "127.0.0.1:1"}, zap.NewNop())
	if err == nil {
		t.Error("expected connection error")
	}
}

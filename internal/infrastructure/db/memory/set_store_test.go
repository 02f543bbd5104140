package memory

import (
	"context"
	"sort"
	"testing"
	"time"
)

func members(t *testing.T, s *SetStore, key string) []string {
	t.Helper()
	got, err := s.SMembers(context.Background(), key)
	if err != nil {
		t.Fatalf("SMembers: %v", err)
	}
	sort.Strings(got)
	return got
}

func TestSetStore_AddRemove(t *testing.T) {
	ctx := context.Background()
	s := NewSetStore()

	_ = s.SAdd(ctx, "k", "b", "a", "a")
	if got := members(t, s, "k"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("members = %v", got)
	}

	_ = s.SRem(ctx, "k", "a", "missing")
	if got := members(t, s, "k"); len(got) != 1 || got[0] != "b" {
		t.Fatalf("members after SRem = %v", got)
	}

	_ = s.SRem(ctx, "k", "b")
	if got := members(t, s, "k"); len(got) != 0 {
		t.Fatalf("empty set should disappear, got %v", got)
	}
}

func TestSetStore_MissingKeyIsEmpty(t *testing.T) {
	s := NewSetStore()
	got, err := s.SMembers(context.Background(), "nope")
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("SMembers(missing) = %#v, %v", got, err)
	}
}

func TestSetStore_Expire(t *testing.T) {
	ctx := context.Background()
	s := NewSetStore()

	_ = s.SAdd(ctx, "k", "a")
	_ = s.Expire(ctx, "k", 20*time.Millisecond)
	// Adding to a set keeps its deadline.
	_ = s.SAdd(ctx, "k", "b")

	time.Sleep(40 * time.Millisecond)
	if got := members(t, s, "k"); len(got) != 0 {
		t.Fatalf("expired set still readable: %v", got)
	}
}

func TestSetStore_Del(t *testing.T) {
	ctx := context.Background()
	s := NewSetStore()
	_ = s.SAdd(ctx, "a", "1")
	_ = s.SAdd(ctx, "b", "1")

	_ = s.Del(ctx, "a", "b", "c")
	if len(members(t, s, "a"))+len(members(t, s, "b")) != 0 {
		t.Fatalf("keys survived Del")
	}
}

package genstore

import (
	"context"
	"testing"
	"time"
)

func TestLocalUnknownTagIsZero(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	g, err := s.Snapshot(ctx, "certificate:A")
	if err != nil {
		t.Fatal(err)
	}
	if g != 0 {
		t.Fatalf("got=%d want 0", g)
	}
}

func TestLocalBumpIsPerTag(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	for i := 0; i < 2; i++ {
		if _, err := s.Bump(ctx, "certificate:A"); err != nil {
			t.Fatal(err)
		}
	}
	if g, _ := s.Snapshot(ctx, "certificate:A"); g != 2 {
		t.Fatalf("certificate:A got=%d want 2", g)
	}
	if g, _ := s.Snapshot(ctx, "certificates"); g != 0 {
		t.Fatalf("certificates got=%d want 0", g)
	}
}

func TestLocalCleanupForgetsOldTags(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := s.Bump(ctx, "fresh"); err != nil {
		t.Fatal(err)
	}
	s.Cleanup(25 * time.Millisecond)

	if g, _ := s.Snapshot(ctx, "old"); g != 0 {
		t.Fatalf("old tag should be forgotten, got %d", g)
	}
	if g, _ := s.Snapshot(ctx, "fresh"); g != 1 {
		t.Fatalf("fresh tag should survive, got %d", g)
	}
}

func TestLocalCloseIsIdempotent(t *testing.T) {
	s := NewLocal(time.Millisecond, time.Hour)
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}

package sessionlock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAcquireSerializesSameSession(t *testing.T) {
	reg := NewRegistry()

	release, err := reg.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		rel, err := reg.Acquire(context.Background(), "s1")
		if err != nil {
			t.Errorf("second Acquire failed: %v", err)
			return
		}
		close(acquired)
		rel()
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire succeeded while lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire did not proceed after release")
	}
}

func TestAcquireDifferentSessionsDoNotBlock(t *testing.T) {
	reg := NewRegistry()

	rel1, err := reg.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire s1 failed: %v", err)
	}
	defer rel1()

	done := make(chan struct{})
	go func() {
		rel2, err := reg.Acquire(context.Background(), "s2")
		if err != nil {
			t.Errorf("Acquire s2 failed: %v", err)
			return
		}
		rel2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Acquire for an independent session blocked")
	}
}

func TestAcquireRespectsCancellation(t *testing.T) {
	reg := NewRegistry()

	release, err := reg.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := reg.Acquire(ctx, "s1")
		errCh <- err
	}()

	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Acquire error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("canceled Acquire did not return")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	reg := NewRegistry()

	release, err := reg.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	release()
	release()

	rel2, err := reg.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire after double release failed: %v", err)
	}
	rel2()
}

func TestRegistryReclaimsIdleLocks(t *testing.T) {
	reg := NewRegistry()

	release, err := reg.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if got := reg.Len(); got != 1 {
		t.Errorf("Len() while held = %d, want 1", got)
	}

	release()
	if got := reg.Len(); got != 0 {
		t.Errorf("Len() after release = %d, want 0", got)
	}
}

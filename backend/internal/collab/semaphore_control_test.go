package collab

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSemaphoreControl(t *testing.T) {
	s := NewSemaphoreControl(2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := s.Acquire(ctx); err != nil {
			t.Fatalf("Acquire(%d) error = %v", i, err)
		}
	}
	if s.InUse() != 2 {
		t.Fatalf("InUse() = %d, want 2", s.InUse())
	}

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := s.Acquire(short); !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("Acquire() on full semaphore error = %v, want ErrAcquireTimeout", err)
	}

	_ = s.Release()
	_ = s.Release()
	if err := s.Release(); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("extra Release() error = %v, want ErrNotAcquired", err)
	}
}

func TestSemaphoreControl_DefaultSize(t *testing.T) {
	if got := cap(NewSemaphoreControl(0).ch); got != MaxSemaphore {
		t.Fatalf("default capacity = %d, want %d", got, MaxSemaphore)
	}
}

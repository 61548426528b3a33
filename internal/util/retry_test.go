package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SuccessAfterRetries(t *testing.T) {
	calls := 0
	result, err := Retry(3, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 99, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != 99 {
		t.Fatalf("expected 99, got %d", result)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_PersistentFailure(t *testing.T) {
	calls := 0
	err := RetryErr(3, func() error {
		calls++
		return errors.New("persistent")
	})
	if err == nil || err.Error() != "persistent" {
		t.Fatalf("expected persistent error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_MaxTriesZeroOrNegative(t *testing.T) {
	for _, tries := range []int{0, -1} {
		calls := 0
		_ = RetryErr(tries, func() error {
			calls++
			return errors.New("fail")
		})
		if calls != 1 {
			t.Fatalf("expected 1 call for maxTries=%d, got %d", tries, calls)
		}
	}
}

func TestRetryWithContext_CancelledNotRetried(t *testing.T) {
	calls := 0
	err := RetryErrWithContext(context.Background(), Backoff{Tries: 5}, func(context.Context) error {
		calls++
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithContext_StopsDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := RetryWithContext(ctx, Backoff{Tries: 5, Delay: time.Second}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestBackoffNext(t *testing.T) {
	b := Backoff{Delay: time.Second, MaxDelay: 3 * time.Second}
	d := b.Delay
	var got []time.Duration
	for range 3 {
		d = b.next(d)
		got = append(got, d)
	}
	expected := []time.Duration{2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, got)
		}
	}
}

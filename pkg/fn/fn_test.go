package fn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	var calls atomic.Int32
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond}

	result := Retry(context.Background(), opts, func(context.Context) Result[int] {
		if calls.Add(1) < 3 {
			return Errf[int]("attempt %d failed", calls.Load())
		}
		return Ok(42)
	})

	v, err := result.Unwrap()
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if v != 42 || calls.Load() != 3 {
		t.Errorf("v=%d calls=%d", v, calls.Load())
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	opts := RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	sentinel := errors.New("permanent")

	result := Retry(context.Background(), opts, func(context.Context) Result[int] {
		return Err[int](sentinel)
	})
	if _, err := result.Unwrap(); !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want sentinel", err)
	}
}

func TestRetry_ContextCancelStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := RetryOpts{MaxAttempts: 5, InitialWait: time.Hour, MaxWait: time.Hour}

	result := Retry(ctx, opts, func(context.Context) Result[int] {
		return Errf[int]("fail")
	})
	if _, err := result.Unwrap(); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestParMap_PreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	got := ParMap(items, 2, func(v int) int { return v * v })
	want := []int{1, 4, 9, 16, 25}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestParMap_EmptyInput(t *testing.T) {
	if got := ParMap(nil, 4, func(v int) int { return v }); len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestFanOut_AllRun(t *testing.T) {
	got := FanOut(
		func() int { return 1 },
		func() int { return 2 },
		func() int { return 3 },
	)
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("got %v", got)
	}
}

func TestCollect_FirstError(t *testing.T) {
	sentinel := errors.New("bad")
	r := Collect([]Result[int]{Ok(1), Err[int](sentinel), Ok(3)})
	if _, err := r.Unwrap(); !errors.Is(err, sentinel) {
		t.Errorf("err = %v", err)
	}
}

func TestSliceHelpers(t *testing.T) {
	if got := Map([]int{1, 2}, func(v int) int { return v + 1 }); got[0] != 2 || got[1] != 3 {
		t.Errorf("Map = %v", got)
	}
	if got := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 }); len(got) != 2 {
		t.Errorf("Filter = %v", got)
	}
	if got := Unique([]string{"a", "b", "a"}); len(got) != 2 || got[0] != "a" {
		t.Errorf("Unique = %v", got)
	}
	if got := UniqueBy([]string{"aa", "ab", "ba"}, func(s string) byte { return s[0] }); len(got) != 2 {
		t.Errorf("UniqueBy = %v", got)
	}
	if got := Chunk([]int{1, 2, 3, 4, 5}, 2); len(got) != 3 || len(got[2]) != 1 {
		t.Errorf("Chunk = %v", got)
	}
	if got := Chunk([]int{1}, 0); got != nil {
		t.Errorf("Chunk with n=0 = %v", got)
	}
}

func TestUnwrapOrAndFromPair(t *testing.T) {
	if v := Err[int](errors.New("x")).UnwrapOr(7); v != 7 {
		t.Errorf("UnwrapOr = %d", v)
	}
	if r := FromPair(5, nil); r.IsErr() {
		t.Error("FromPair(5, nil) is error")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Error("FromPair with error is ok")
	}
}

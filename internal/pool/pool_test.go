package pool

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkers(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{4, 4},
		{1, 1},
		{0, runtime.GOMAXPROCS(0)},
		{-3, runtime.GOMAXPROCS(0)},
	}

	for _, tt := range tests {
		if got := Workers(tt.in); got != tt.want {
			t.Errorf("Workers(%d): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMap_PreservesOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}

	got, err := Map(context.Background(), 3, items, func(_ context.Context, _ int, v int) (int, error) {
		// Later items finish first.
		time.Sleep(time.Duration(v) * time.Millisecond)
		return v * v, nil
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}

	want := []int{25, 1, 16, 4, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMap_BoundsConcurrency(t *testing.T) {
	var running, peak int32
	items := make([]int, 20)

	_, err := Map(context.Background(), 2, items, func(_ context.Context, _ int, _ int) (struct{}, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if peak > 2 {
		t.Errorf("peak concurrency %d exceeds 2 workers", peak)
	}
}

func TestMap_ReturnsFirstError(t *testing.T) {
	errOdd := errors.New("odd")
	var calls int32

	got, err := Map(context.Background(), 4, []int{0, 1, 2, 3}, func(_ context.Context, i int, v int) (int, error) {
		atomic.AddInt32(&calls, 1)
		if v%2 == 1 {
			return 0, errOdd
		}
		return v + 10, nil
	})
	if !errors.Is(err, errOdd) {
		t.Fatalf("got %v, want errOdd", err)
	}
	if calls != 4 {
		t.Errorf("expected every item processed, got %d calls", calls)
	}
	if got[2] != 12 {
		t.Errorf("successful results should be kept, got %v", got)
	}
}

func TestMap_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	_, err := Map(ctx, 2, []int{1, 2, 3}, func(_ context.Context, _ int, v int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return v, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("no item should run after cancellation, got %d", calls)
	}
}

func TestMap_Empty(t *testing.T) {
	got, err := Map(context.Background(), 0, []string(nil), func(_ context.Context, _ int, s string) (int, error) {
		return len(s), nil
	})
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v; want empty result", got, err)
	}
}

package rendezvous

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWriteWaitDeliversResponse(t *testing.T) {
	p := New[int]("test")
	wrote := false

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Deliver(42)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := p.WriteWait(ctx, 0, func() error {
		wrote = true
		return nil
	})
	if err != nil {
		t.Fatalf("WriteWait error: %v", err)
	}
	if !wrote {
		t.Fatal("write func never called")
	}
	if got != 42 {
		t.Fatalf("got %d want 42", got)
	}
}

func TestWriteWaitPropagatesWriteError(t *testing.T) {
	p := New[int]("test")
	wantErr := errors.New("boom")

	_, err := p.WriteWait(context.Background(), time.Second, func() error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected write error, got %v", err)
	}
}

func TestWriteWaitTimesOutWithoutDelivery(t *testing.T) {
	p := New[int]("test")
	_, err := p.WriteWait(context.Background(), 30*time.Millisecond, func() error { return nil })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestWriteWaitSerializesConcurrentCallers(t *testing.T) {
	p := New[int]("test")
	const callers = 8
	var wg sync.WaitGroup
	results := make([]int, callers)

	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			v, err := p.WriteWait(ctx, 0, func() error {
				go func() {
					// deliver shortly after this caller's write acquires the lock
					time.Sleep(5 * time.Millisecond)
					p.Deliver(i)
				}()
				return nil
			})
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			results[i] = v
		}()
	}
	wg.Wait()
	for i, v := range results {
		if v != i {
			t.Errorf("caller %d got reply %d", i, v)
		}
	}
}

func TestWriteWaitMultiYieldsUntilTerminate(t *testing.T) {
	p := New[string]("test")

	go func() {
		time.Sleep(5 * time.Millisecond)
		p.Deliver("a")
		p.Deliver("b")
		p.Deliver("c")
		p.Terminate()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []string
	seq := p.WriteWaitMulti(ctx, 0, func() error { return nil })
	seq(func(v string, err error) bool {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, v)
		return true
	})

	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected sequence: %v", got)
	}
}

func TestWriteWaitMultiStopsOnTimeoutWithoutTerminate(t *testing.T) {
	p := New[string]("test")

	go func() {
		time.Sleep(5 * time.Millisecond)
		p.Deliver("only")
		// no Terminate: sequence must stop once timeout elapses.
	}()

	var got []string
	seq := p.WriteWaitMulti(context.Background(), 50*time.Millisecond, func() error { return nil })
	seq(func(v string, err error) bool {
		got = append(got, v)
		return true
	})

	if len(got) != 1 || got[0] != "only" {
		t.Fatalf("expected [only], got %v", got)
	}
}

func TestWriteWaitMultiEarlyBreakReleasesLock(t *testing.T) {
	p := New[int]("test")
	go func() {
		time.Sleep(5 * time.Millisecond)
		p.Deliver(1)
		p.Deliver(2)
	}()

	seq := p.WriteWaitMulti(context.Background(), time.Second, func() error { return nil })
	count := 0
	seq(func(v int, err error) bool {
		count++
		return false // stop after first item
	})
	if count != 1 {
		t.Fatalf("expected exactly one item before break, got %d", count)
	}

	// lock must have been released by the deferred Unlock; a fresh call
	// should not deadlock.
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		p.WriteWait(ctx, 0, func() error { return nil })
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("rendezvous point appears deadlocked after early break")
	}
}

func TestDeliverWithNoWaiterIsDiscarded(t *testing.T) {
	p := New[int]("test")
	p.Deliver(99) // nobody waiting; must be discarded, not queued for the next caller

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := p.WriteWait(ctx, 30*time.Millisecond, func() error { return nil })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("stale reply leaked into a fresh wait, got err %v", err)
	}
}

func TestTerminateWithNoWaiterIsDiscarded(t *testing.T) {
	p := New[string]("test")
	p.Terminate() // nobody waiting; must not be queued as a premature end-of-sequence

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Deliver("a")
		p.Terminate()
	}()

	var got []string
	seq := p.WriteWaitMulti(ctx, 0, func() error { return nil })
	seq(func(v string, err error) bool {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, v)
		return true
	})
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected [a], got %v", got)
	}
}

func TestLateDeliveryAfterTimeoutIsDiscarded(t *testing.T) {
	p := New[int]("test")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := p.WriteWait(ctx, 20*time.Millisecond, func() error { return nil })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// Reply arrives after this caller's wait already released the mutex; it
	// must not be handed to the next, unrelated caller below.
	p.Deliver(123)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel2()
	_, err = p.WriteWait(ctx2, 30*time.Millisecond, func() error { return nil })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("stale late reply leaked into next caller's wait, got err %v", err)
	}
}

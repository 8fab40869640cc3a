package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(n int) Policy {
	delays := make([]time.Duration, n)
	for i := range delays {
		delays[i] = time.Millisecond
	}
	return Policy{Delays: delays}
}

func TestDo_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	done, err := Do(context.Background(), fastPolicy(5), func(context.Context) (bool, error) {
		calls++
		return true, nil
	})
	if !done || err != nil {
		t.Errorf("Do = (%v, %v), want (true, nil)", done, err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_SucceedsAfterNQueries(t *testing.T) {
	calls := 0
	done, err := Do(context.Background(), fastPolicy(5), func(context.Context) (bool, error) {
		calls++
		return calls >= 4, nil
	})
	if !done || err != nil {
		t.Errorf("Do = (%v, %v), want (true, nil)", done, err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestDo_Exhaustion(t *testing.T) {
	calls := 0
	done, err := Do(context.Background(), fastPolicy(3), func(context.Context) (bool, error) {
		calls++
		return false, nil
	})
	if done {
		t.Error("done = true after exhaustion, want false")
	}
	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (initial attempt + 3 delays)", calls)
	}
}

func TestDo_ExhaustionKeepsLastError(t *testing.T) {
	sentinel := errors.New("still missing")
	done, err := Do(context.Background(), fastPolicy(2), func(context.Context) (bool, error) {
		return false, sentinel
	})
	if done {
		t.Error("done = true, want false")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want sentinel", err)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done, err := Do(ctx, Policy{Delays: []time.Duration{time.Hour}}, func(context.Context) (bool, error) {
		calls++
		cancel()
		return false, nil
	})
	if done {
		t.Error("done = true, want false")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestAttempts(t *testing.T) {
	if got := DefaultPolicy().Attempts(); got != 7 {
		t.Errorf("DefaultPolicy().Attempts() = %d, want 7", got)
	}
	if got := (Policy{}).Attempts(); got != 1 {
		t.Errorf("empty policy Attempts() = %d, want 1", got)
	}
}

func TestExponential(t *testing.T) {
	p := Exponential(3, time.Second)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(p.Delays) != len(want) {
		t.Fatalf("len(Delays) = %d, want %d", len(p.Delays), len(want))
	}
	for i, d := range want {
		if p.Delays[i] != d {
			t.Errorf("Delays[%d] = %v, want %v", i, p.Delays[i], d)
		}
	}
	if !p.Jitter {
		t.Error("Jitter = false, want true")
	}
	if got := p.Attempts(); got != 4 {
		t.Errorf("Attempts() = %d, want 4", got)
	}
}

func TestExponential_ZeroRetries(t *testing.T) {
	p := Exponential(0, time.Second)
	if len(p.Delays) != 0 {
		t.Errorf("len(Delays) = %d, want 0", len(p.Delays))
	}
	if got := p.Attempts(); got != 1 {
		t.Errorf("Attempts() = %d, want 1", got)
	}
}

func TestDo_JitteredDelaysStillRun(t *testing.T) {
	calls := 0
	done, err := Do(context.Background(), Exponential(2, time.Millisecond), func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	if !done || err != nil {
		t.Fatalf("Do() = (%v, %v), want (true, nil)", done, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

package fallback

import (
	"context"
	"errors"
	"testing"
)

func TestChain_StopsAtFirstNonEmpty(t *testing.T) {
	var outcomes []string
	observe := func(_, attempt, outcome string) { outcomes = append(outcomes, attempt+"="+outcome) }
	thirdCalled := false

	res := New[int]("test", nil, observe).
		Add("broken", func(context.Context) ([]int, error) { return nil, errors.New("db down") }).
		Add("empty", func(context.Context) ([]int, error) { return nil, nil }).
		Add("hit", func(context.Context) ([]int, error) { return []int{1, 2}, nil }).
		Add("never", func(context.Context) ([]int, error) { thirdCalled = true; return []int{3}, nil }).
		Run(context.Background())

	if res.Source != "hit" || len(res.Items) != 2 {
		t.Fatalf("expected hit with 2 items, got %q %v", res.Source, res.Items)
	}
	if thirdCalled {
		t.Error("attempts after a hit must not run")
	}
	if len(res.Errors) != 1 {
		t.Errorf("expected 1 collected error, got %d", len(res.Errors))
	}
	want := []string{"broken=error", "empty=empty", "hit=hit"}
	if len(outcomes) != len(want) {
		t.Fatalf("expected %v, got %v", want, outcomes)
	}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Errorf("outcome %d: expected %s, got %s", i, want[i], outcomes[i])
		}
	}
}

func TestChain_AllEmptyIsNotAnError(t *testing.T) {
	res := New[string]("test", nil, nil).
		Add("a", func(context.Context) ([]string, error) { return nil, nil }).
		AddIf(false, "skipped", func(context.Context) ([]string, error) { return []string{"x"}, nil }).
		Run(context.Background())

	if len(res.Items) != 0 || res.Source != "" {
		t.Errorf("expected empty result, got %q %v", res.Source, res.Items)
	}
}

func TestChain_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	res := New[int]("test", nil, nil).
		Add("a", func(context.Context) ([]int, error) { called = true; return []int{1}, nil }).
		Run(ctx)

	if called {
		t.Error("no attempt should run with a cancelled context")
	}
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0], context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", res.Errors)
	}
}

package di

import (
	"sync"
	"sync/atomic"
	"testing"
)

type greeter struct{ name string }

func TestRegisterToken_LazySingleton(t *testing.T) {
	c := New()
	tok := NewToken[*greeter]("test.Greeter")

	var built atomic.Int32
	RegisterToken(c, tok, func(ServiceRegistry) *greeter {
		built.Add(1)
		return &greeter{name: "hi"}
	})

	if built.Load() != 0 {
		t.Fatal("factory must not run before first Get")
	}

	var wg sync.WaitGroup
	results := make([]*greeter, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = GetToken(c, tok)
		}(i)
	}
	wg.Wait()

	if built.Load() != 1 {
		t.Errorf("factory ran %d times, want 1", built.Load())
	}
	for _, r := range results {
		if r != results[0] {
			t.Fatal("expected the same instance for every Get")
		}
	}
}

func TestGet_FactoryCanResolveDependencies(t *testing.T) {
	c := New()
	c.Set("config", "cfg-value")
	tok := NewToken[string]("test.Derived")
	RegisterToken(c, tok, func(sr ServiceRegistry) string {
		return sr.Get("config").(string) + "-derived"
	})

	if got := GetToken(c, tok); got != "cfg-value-derived" {
		t.Errorf("got %q", got)
	}
}

func TestGet_PanicsWhenMissing(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unregistered service")
		}
	}()
	New().Get("missing")
}

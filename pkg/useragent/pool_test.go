package useragent

import (
	"sync"
	"testing"
)

func TestPool_Next(t *testing.T) {
	p := NewPool([]string{"A", "B", "C"})
	for _, want := range []string{"A", "B", "C", "A"} {
		if got := p.Next(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}

func TestPool_Default(t *testing.T) {
	p := NewPool(nil)
	if p.Len() != len(DefaultPool) {
		t.Errorf("expected pool length %d, got %d", len(DefaultPool), p.Len())
	}
	if got := p.Next(); got != DefaultPool[0] {
		t.Errorf("expected %s, got %s", DefaultPool[0], got)
	}
}

func TestPool_Fixed(t *testing.T) {
	p := Fixed("listcrawl/1.0")
	for i := 0; i < 3; i++ {
		if got := p.Next(); got != "listcrawl/1.0" {
			t.Errorf("expected fixed agent, got %s", got)
		}
	}
	if Fixed("").Len() != len(DefaultPool) {
		t.Errorf("expected empty fixed agent to use the default pool")
	}
}

func TestPool_Random(t *testing.T) {
	p := NewPool([]string{"A", "B"})
	for i := 0; i < 20; i++ {
		if got := p.Random(); got != "A" && got != "B" {
			t.Fatalf("unexpected agent %s", got)
		}
	}
}

func TestPool_Concurrent(t *testing.T) {
	p := NewPool([]string{"A", "B", "C"})
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Next()
		}()
	}
	wg.Wait()
	if got := p.counter.Load(); got != 100 {
		t.Errorf("expected counter 100, got %d", got)
	}
}

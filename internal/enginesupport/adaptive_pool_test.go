package enginesupport

import (
	"context"
	"testing"
)

func testFactory(created *int) PageFactory {
	return func(ctx context.Context) (any, error) {
		*created++
		return *created, nil
	}
}

func TestAdaptivePool_CreatesAndReuses(t *testing.T) {
	var created, destroyed int
	p := NewAdaptivePool(AdaptivePoolConfig{MaxSize: 2}, testFactory(&created), func(any) { destroyed++ })
	defer p.Stop()

	h, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	p.Put(h)

	h2, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if created != 1 {
		t.Fatalf("expected reuse of idle handle, created = %d", created)
	}
	p.Put(h2)
}

func TestAdaptivePool_ExhaustsAtMaxSize(t *testing.T) {
	var created int
	p := NewAdaptivePool(AdaptivePoolConfig{MaxSize: 1}, testFactory(&created), func(any) {})
	defer p.Stop()

	h, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := p.Get(context.Background()); err == nil {
		t.Fatal("expected pool exhaustion error")
	}
	p.Put(h)
}

func TestPageHandle_RetiresOnErrorScore(t *testing.T) {
	h := &PageHandle{}
	for i := 0; i < 3; i++ {
		h.RecordFailure()
	}
	if !h.ShouldRetire() {
		t.Fatal("expected handle to retire after repeated failures")
	}
}

func TestAdaptivePool_RetiredHandleNotReused(t *testing.T) {
	var created, destroyed int
	p := NewAdaptivePool(AdaptivePoolConfig{MaxSize: 2}, testFactory(&created), func(any) { destroyed++ })
	defer p.Stop()

	h, _ := p.Get(context.Background())
	h.RecordFailure()
	h.RecordFailure()
	h.RecordFailure()
	p.Put(h)

	if p.Size() != 0 {
		t.Fatalf("expected retired handle to be destroyed not idled, Size() = %d", p.Size())
	}
	if destroyed != 1 {
		t.Fatalf("destroyed = %d, want 1", destroyed)
	}
}

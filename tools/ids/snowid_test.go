package ids

import (
	"sync"
	"testing"
)

func TestGeneratorUniqueUnderContention(t *testing.T) {
	g := NewGenerator(7)
	const workers, per = 8, 2000

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, per)
			for i := 0; i < per; i++ {
				local = append(local, g.Next())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*per {
		t.Fatalf("duplicate ids: got %d unique of %d", len(seen), workers*per)
	}
}

func TestNodeIDIsEncoded(t *testing.T) {
	g := NewGenerator(42)
	if got := NodeOf(g.Next()); got != 42 {
		t.Fatalf("NodeOf = %d, want 42", got)
	}
	if got := NodeOf(NewGenerator(5000).Next()); got != 1 {
		t.Fatalf("out of range node should fall back to 1, got %d", got)
	}
}

func TestIdsIncrease(t *testing.T) {
	g := NewGenerator(1)
	prev := g.Next()
	for i := 0; i < 1000; i++ {
		next := g.Next()
		if next <= prev {
			t.Fatalf("id %d not greater than %d", next, prev)
		}
		prev = next
	}
}

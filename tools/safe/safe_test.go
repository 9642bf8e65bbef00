package safe

import (
	"testing"
	"time"
)

func TestGoRecovers(t *testing.T) {
	done := make(chan struct{})
	Go("test", func() {
		defer close(done)
		panic("boom")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not finish")
	}
}

func TestMustNotNil(t *testing.T) {
	var p *int
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil pointer")
		}
	}()
	MustNotNil(1, "int")
	MustNotNil(p, "p")
}

package chat

import (
	"testing"

	"PShop/tools/errs"
)

func TestClusterViewKeepsNewest(t *testing.T) {
	v := NewClusterView()
	for _, raw := range []string{
		`{"gateway":"gw-b","ids":["b1"],"at":10}`,
		`{"gateway":"gw-a","ids":["a1","a2"],"at":20}`,
		`{"gateway":"gw-a","ids":["a1"],"at":5}`,
	} {
		if err := v.Apply([]byte(raw)); err != nil {
			t.Fatal(err)
		}
	}
	snap := v.Snapshot()
	if len(snap) != 2 || snap[0].Gateway != "gw-a" || len(snap[0].IDs) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if v.Total() != 3 {
		t.Fatalf("total = %d", v.Total())
	}
}

func TestClusterViewRejectsGarbage(t *testing.T) {
	v := NewClusterView()
	if err := v.Apply([]byte(`nope`)); !errs.ErrArgs.Is(err) {
		t.Fatalf("garbage: %v", err)
	}
	if err := v.Apply([]byte(`{"ids":[]}`)); !errs.ErrArgs.Is(err) {
		t.Fatalf("no gateway: %v", err)
	}
}

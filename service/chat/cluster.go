package chat

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"PShop/tools/errs"

	"github.com/gin-gonic/gin"
)

// ClusterView keeps the last roster each gateway announced on the bus.
type ClusterView struct {
	mu       sync.RWMutex
	gateways map[string]RosterEvent
}

func NewClusterView() *ClusterView {
	return &ClusterView{gateways: make(map[string]RosterEvent)}
}

// Apply folds one SubjectRoster payload in; out of order events are ignored.
func (v *ClusterView) Apply(data []byte) error {
	var ev RosterEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return errs.ErrArgs.WrapMsg("decode roster event", "err", err)
	}
	if ev.Gateway == "" {
		return errs.ErrArgs.WrapMsg("roster event without gateway")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if cur, ok := v.gateways[ev.Gateway]; ok && cur.At > ev.At {
		return nil
	}
	v.gateways[ev.Gateway] = ev
	return nil
}

// Snapshot returns gateways sorted by id.
func (v *ClusterView) Snapshot() []RosterEvent {
	v.mu.RLock()
	out := make([]RosterEvent, 0, len(v.gateways))
	for _, ev := range v.gateways {
		out = append(out, ev)
	}
	v.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Gateway < out[j].Gateway })
	return out
}

func (v *ClusterView) Total() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n := 0
	for _, ev := range v.gateways {
		n += len(ev.IDs)
	}
	return n
}

func (v *ClusterView) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"gateways": v.Snapshot(), "connections": v.Total()})
}

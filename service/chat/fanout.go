package chat

import (
	"sync"

	"PShop/tools/safe"
)

type fanoutJob struct {
	conns   []*WsConn
	payload []byte
}

// Fanout delivers broadcasts from a single goroutine so every connection
// sees broadcasts in the order they were submitted.
type Fanout struct {
	jobs     chan fanoutJob
	stop     chan struct{}
	stopOnce sync.Once
	onSlow   func(*WsConn)
}

func NewFanout(queue int, onSlow func(*WsConn)) *Fanout {
	f := &Fanout{
		jobs:   make(chan fanoutJob, queue),
		stop:   make(chan struct{}),
		onSlow: onSlow,
	}
	safe.Go("fanout", f.run)
	return f
}

func (f *Fanout) run() {
	for {
		select {
		case <-f.stop:
			return
		case job := <-f.jobs:
			for _, c := range job.conns {
				if !c.Enqueue(job.payload) && f.onSlow != nil {
					select {
					case <-c.closing:
					default:
						f.onSlow(c)
					}
				}
			}
		}
	}
}

func (f *Fanout) Broadcast(conns []*WsConn, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	select {
	case f.jobs <- fanoutJob{conns: conns, payload: payload}:
	case <-f.stop:
	}
}

func (f *Fanout) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
}

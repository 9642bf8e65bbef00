package chat

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"PShop/tools/errs"

	"github.com/gorilla/websocket"
)

// pair returns a managed server side conn and the client end of it.
func pair(t *testing.T, m *ConnManager) (*WsConn, *websocket.Conn) {
	t.Helper()
	accepted := make(chan *WsConn, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgraded.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		accepted <- m.Add(ws)
	}))
	t.Cleanup(ts.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	select {
	case wc := <-accepted:
		return wc, client
	case <-time.After(3 * time.Second):
		t.Fatal("server side never accepted")
		return nil, nil
	}
}

func seqIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("s%d", n.Add(1)) }
}

func readText(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func TestBroadcastSkipsUnregistered(t *testing.T) {
	m := NewConnManager("gw", seqIDs())
	defer m.Close()

	a, ca := pair(t, m)
	_, cb := pair(t, m)
	a.markRegistered("u1", DeviceDesktop)

	m.Broadcast([]byte("one"))
	m.Broadcast([]byte("two"))

	if got := readText(t, ca); got != "one" {
		t.Fatalf("first = %q", got)
	}
	if got := readText(t, ca); got != "two" {
		t.Fatalf("second = %q", got)
	}

	_ = cb.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := cb.ReadMessage(); err == nil {
		t.Fatal("unregistered socket received a broadcast")
	}
}

func TestSendOneUnknownConn(t *testing.T) {
	m := NewConnManager("gw", seqIDs())
	defer m.Close()

	err := m.SendOne("missing", []byte("x"))
	if !errs.ErrConnNotFound.Is(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestTerminateSendsPolicyClose(t *testing.T) {
	m := NewConnManager("gw", seqIDs())
	defer m.Close()

	wc, client := pair(t, m)
	if !wc.Enqueue([]byte("last words")) {
		t.Fatal("enqueue failed")
	}
	if err := wc.Terminate("replaced"); err != nil {
		t.Fatal(err)
	}
	if err := wc.Terminate("again"); err == nil {
		t.Fatal("second terminate should report already closing")
	}

	if got := readText(t, client); got != "last words" {
		t.Fatalf("flushed = %q", got)
	}
	_ = client.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := client.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.ClosePolicyViolation || ce.Text != "replaced" {
		t.Fatalf("close = %v", err)
	}

	select {
	case <-wc.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("write loop did not finish")
	}
	if wc.Enqueue([]byte("late")) {
		t.Fatal("enqueue after close succeeded")
	}
}

func TestSlowConsumerDropped(t *testing.T) {
	m := NewConnManagerWithConf(ManagerConf{SendQueue: 1}, "gw", seqIDs())
	defer m.Close()

	wc, _ := pair(t, m)
	wc.markRegistered("u1", DeviceMobile)

	// the client never reads, so the tiny queue overflows eventually
	for i := 0; i < 5000; i++ {
		m.Broadcast(make([]byte, 4096))
		select {
		case <-wc.closing:
			return
		default:
		}
	}
	select {
	case <-wc.closing:
	case <-time.After(3 * time.Second):
		t.Fatal("slow consumer was never dropped")
	}
}

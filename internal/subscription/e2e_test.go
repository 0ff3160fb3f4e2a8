package subscription

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/buskit/buskit/internal/transport"
)

// collector gathers reply payloads delivered to one client.
type collector struct {
	mu       sync.Mutex
	payloads []string
}

func (r *collector) handler() transport.HandlerFunc {
	return func(msg *transport.Message) {
		r.mu.Lock()
		r.payloads = append(r.payloads, string(msg.Payload()))
		r.mu.Unlock()
	}
}

func (r *collector) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

// testService hosts a catalog-backed service on a loopback broker with a
// subscribe method, an explicit-add method and a cancel method.
func testService(t *testing.T, hook CancelFunc) (*transport.Broker, *Catalog) {
	t.Helper()

	broker := transport.NewBroker()
	svc, err := broker.Connect("com.buskit.svc")
	if err != nil {
		t.Fatalf("Connect(service) error = %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	var opts []Option
	if hook != nil {
		opts = append(opts, WithCancelFunc(hook))
	}
	catalog := New(svc, opts...)
	t.Cleanup(catalog.Close)

	svc.Register("foo", "bar", func(msg *transport.Message) {
		if _, err := catalog.Process(msg); err != nil {
			t.Errorf("Process() error = %v", err)
		}
	})
	svc.Register("foo", "join", func(msg *transport.Message) {
		if err := catalog.Add("/foo/bar", msg); err != nil {
			t.Errorf("Add() error = %v", err)
		}
	})
	svc.Register("foo", "cancel", func(msg *transport.Message) {
		if err := catalog.HandleCancel(msg); err != nil {
			t.Errorf("HandleCancel() error = %v", err)
		}
	})

	return broker, catalog
}

func TestEndToEndFanOut(t *testing.T) {
	broker, catalog := testService(t, nil)

	c1, err := broker.Connect("com.example.app")
	if err != nil {
		t.Fatalf("Connect(c1) error = %v", err)
	}
	defer c1.Close()
	c2, err := broker.Connect("com.example.two")
	if err != nil {
		t.Fatalf("Connect(c2) error = %v", err)
	}
	defer c2.Close()

	var r1, r2 collector
	if _, err := c1.Call("com.buskit.svc", "foo", "bar",
		[]byte(`{"subscribe":true}`), r1.handler()); err != nil {
		t.Fatalf("subscribe call error = %v", err)
	}
	if _, err := c2.Call("com.buskit.svc", "foo", "join",
		[]byte(`{}`), r2.handler()); err != nil {
		t.Fatalf("join call error = %v", err)
	}

	if err := catalog.Reply("/foo/bar", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("Reply() error = %v", err)
	}

	for _, r := range []*collector{&r1, &r2} {
		if r.count() != 1 {
			t.Fatalf("subscriber received %d replies, want 1", r.count())
		}
		r.mu.Lock()
		if r.payloads[0] != `{"x":1}` {
			t.Errorf("reply payload = %q, want %q", r.payloads[0], `{"x":1}`)
		}
		r.mu.Unlock()
	}
}

func TestEndToEndExplicitCancel(t *testing.T) {
	var (
		hookMu sync.Mutex
		hooked []string
	)
	broker, catalog := testService(t, func(msg *transport.Message) {
		hookMu.Lock()
		hooked = append(hooked, msg.UniqueToken())
		hookMu.Unlock()
	})

	c1, err := broker.Connect("com.example.app")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c1.Close()

	var r1 collector
	serial, err := c1.Call("com.buskit.svc", "foo", "bar",
		[]byte(`{"subscribe":true}`), r1.handler())
	if err != nil {
		t.Fatalf("subscribe call error = %v", err)
	}

	body := []byte(`{"token": ` + strconv.FormatUint(uint64(serial), 10) + `}`)
	if _, err := c1.Call("com.buskit.svc", "foo", "cancel", body, nil); err != nil {
		t.Fatalf("cancel call error = %v", err)
	}

	hookMu.Lock()
	if len(hooked) != 1 || hooked[0] != "com.example.app."+strconv.FormatUint(uint64(serial), 10) {
		t.Fatalf("hook invocations = %v, want the cancelled token once", hooked)
	}
	hookMu.Unlock()

	if err := catalog.Reply("/foo/bar", []byte(`{"x":2}`)); err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if r1.count() != 0 {
		t.Errorf("cancelled subscriber still received %d replies", r1.count())
	}
}

func TestEndToEndDisconnect(t *testing.T) {
	var (
		hookMu sync.Mutex
		hooked []string
	)
	broker, catalog := testService(t, func(msg *transport.Message) {
		hookMu.Lock()
		hooked = append(hooked, msg.UniqueToken())
		hookMu.Unlock()
	})

	c1, err := broker.Connect("com.example.app")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	var r1 collector
	serial, err := c1.Call("com.buskit.svc", "foo", "bar",
		[]byte(`{"subscribe":true}`), r1.handler())
	if err != nil {
		t.Fatalf("subscribe call error = %v", err)
	}
	if got := catalog.CountByKey("/foo/bar"); got != 1 {
		t.Fatalf("CountByKey = %d before disconnect, want 1", got)
	}

	// Silent disconnect: the liveness watch drives the removal, identical
	// to explicit cancellation including the hook.
	if err := c1.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	hookMu.Lock()
	want := "com.example.app." + strconv.FormatUint(uint64(serial), 10)
	if len(hooked) != 1 || hooked[0] != want {
		t.Fatalf("hook invocations = %v, want [%s]", hooked, want)
	}
	hookMu.Unlock()

	if got := catalog.CountByKey("/foo/bar"); got != 0 {
		t.Errorf("CountByKey = %d after disconnect, want 0", got)
	}
	if err := catalog.Reply("/foo/bar", []byte(`{"x":3}`)); err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if r1.count() != 0 {
		t.Errorf("departed subscriber still received %d replies", r1.count())
	}
}

func TestEndToEndAddAfterConnClosed(t *testing.T) {
	broker := transport.NewBroker()
	svc, err := broker.Connect("com.buskit.svc")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	catalog := New(svc)
	defer catalog.Close()

	svc.Close()

	msg := testMsg("com.example.app", 1, "foo", "bar", `{}`)
	err = catalog.Add("/foo/bar", msg)
	if !errors.Is(err, ErrWatchFailed) {
		t.Fatalf("Add() on closed conn error = %v, want ErrWatchFailed", err)
	}
	if !errors.Is(err, transport.ErrConnClosed) {
		t.Errorf("Add() error should wrap the transport failure, got %v", err)
	}
}

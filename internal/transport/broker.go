package transport

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"
)

// statusCategory and statusMethod name the synthetic signal delivered to
// liveness watchers when a watched service disconnects.
const (
	statusCategory = "signal"
	statusMethod   = "serverStatus"

	// busName is the sender identity on broker-originated signals.
	busName = "com.buskit.bus"
)

// watch is one outstanding liveness watch: owner asked to be told when
// target disconnects.
type watch struct {
	owner  *Conn
	serial Token
	target string
	fn     HandlerFunc
}

// Broker is the in-memory exchange connecting endpoints. It routes requests
// by service name, routes replies back through the caller's pending table,
// and delivers disconnect signals to liveness watchers.
//
// All methods are safe for concurrent use. Handler callbacks are always
// invoked with no broker locks held.
type Broker struct {
	mu      sync.Mutex
	conns   map[string]*Conn
	watches map[string][]*watch
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		conns:   make(map[string]*Conn),
		watches: make(map[string][]*watch),
	}
}

// Connect registers a new endpoint under serviceName. An empty name gets an
// anonymous identity derived from a fresh UUID. Connecting with a name that
// is already registered fails with ErrNameTaken.
func (b *Broker) Connect(serviceName string) (*Conn, error) {
	if serviceName == "" {
		serviceName = "anon." + uuid.NewString()[:8]
	}

	c := &Conn{
		broker:   b,
		name:     serviceName,
		handlers: make(map[string]HandlerFunc),
		pending:  make(map[Token]HandlerFunc),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.conns[serviceName]; exists {
		return nil, ErrNameTaken
	}
	b.conns[serviceName] = c
	return c, nil
}

// lookup returns the connection registered under name, or nil.
func (b *Broker) lookup(name string) *Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conns[name]
}

// addWatch registers a liveness watch owned by owner against target.
func (b *Broker) addWatch(owner *Conn, serial Token, target string, fn HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watches[target] = append(b.watches[target], &watch{
		owner:  owner,
		serial: serial,
		target: target,
		fn:     fn,
	})
}

// removeWatch drops the watch owned by owner with the given serial.
// It reports whether such a watch existed.
func (b *Broker) removeWatch(owner *Conn, serial Token) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for target, ws := range b.watches {
		for i, w := range ws {
			if w.owner == owner && w.serial == serial {
				b.watches[target] = append(ws[:i], ws[i+1:]...)
				if len(b.watches[target]) == 0 {
					delete(b.watches, target)
				}
				return true
			}
		}
	}
	return false
}

// disconnect removes c from the registry, drops every watch c owns, and
// notifies every watcher of c's service name. Watcher callbacks run after
// the broker lock is released.
func (b *Broker) disconnect(c *Conn) {
	b.mu.Lock()

	delete(b.conns, c.name)

	// Drop watches owned by the departing connection.
	for target, ws := range b.watches {
		kept := ws[:0]
		for _, w := range ws {
			if w.owner != c {
				kept = append(kept, w)
			}
		}
		if len(kept) == 0 {
			delete(b.watches, target)
		} else {
			b.watches[target] = kept
		}
	}

	// Collect watchers of the departing service.
	notify := b.watches[c.name]
	delete(b.watches, c.name)

	b.mu.Unlock()

	if len(notify) == 0 {
		return
	}

	payload, err := statusPayload(c.name, false)
	if err != nil {
		slog.Error("transport: building disconnect signal failed",
			"service", c.name, "error", err)
		return
	}

	for _, w := range notify {
		msg := NewMessage(busName, busName, statusCategory, statusMethod, w.serial, payload)
		w.fn(msg)
	}
}

// statusPayload builds the serverStatus signal body.
func statusPayload(serviceName string, connected bool) ([]byte, error) {
	body, err := sjson.Set("", "connected", connected)
	if err != nil {
		return nil, err
	}
	body, err = sjson.Set(body, "serviceName", serviceName)
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

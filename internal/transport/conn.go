package transport

import (
	"sync"
	"sync/atomic"
)

// HandlerFunc handles an inbound message: a routed request, a reply to an
// outstanding call, or a liveness signal.
type HandlerFunc func(msg *Message)

// Conn is one endpoint on the broker. A Conn issues outbound calls with
// per-connection serial tokens, serves inbound requests through registered
// method handlers, and replies to requests it has received.
//
// All methods are safe for concurrent use.
type Conn struct {
	broker *Broker
	name   string

	nextSerial atomic.Uint64
	closed     atomic.Bool

	mu       sync.Mutex
	handlers map[string]HandlerFunc // kind -> request handler
	pending  map[Token]HandlerFunc  // call serial -> reply handler
}

// Name returns the connection's bus identity.
func (c *Conn) Name() string {
	return c.name
}

// Register installs the handler for inbound requests to category/method.
// Registering the same category/method again replaces the previous handler.
func (c *Conn) Register(category, method string, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[Kind(category, method)] = fn
}

// Call sends a request to the named service and returns the call token.
// If reply is non-nil it stays registered until CancelCall, so a single
// call can receive any number of replies (the subscription pattern).
func (c *Conn) Call(service, category, method string, payload []byte, reply HandlerFunc) (Token, error) {
	if c.closed.Load() {
		return 0, ErrConnClosed
	}

	target := c.broker.lookup(service)
	if target == nil {
		return 0, errorf(ErrServiceUnknown, service)
	}

	serial := Token(c.nextSerial.Add(1))

	target.mu.Lock()
	fn := target.handlers[Kind(category, method)]
	target.mu.Unlock()
	if fn == nil {
		return 0, errorf(ErrMethodUnknown, Kind(category, method))
	}

	if reply != nil {
		c.mu.Lock()
		c.pending[serial] = reply
		c.mu.Unlock()
	}

	msg := NewMessage(c.name, c.name, category, method, serial, payload)
	msg.origin = c
	fn(msg)

	return serial, nil
}

// CancelCall withdraws the reply handler or liveness watch registered under
// tok. Cancelling a token with nothing outstanding fails with
// ErrCallNotFound.
func (c *Conn) CancelCall(tok Token) error {
	c.mu.Lock()
	_, hadPending := c.pending[tok]
	delete(c.pending, tok)
	c.mu.Unlock()

	hadWatch := c.broker.removeWatch(c, tok)

	if !hadPending && !hadWatch {
		return ErrCallNotFound
	}
	return nil
}

// Reply sends payload back to the sender of msg. The reply is delivered to
// the handler the sender registered when it made the call; if the sender
// has since cancelled the call the reply is dropped, which is a success.
// Replying on behalf of a closed connection or to a message with no origin
// fails.
func (c *Conn) Reply(msg *Message, payload []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	origin := msg.origin
	if origin == nil {
		return ErrNoOrigin
	}
	if origin.closed.Load() {
		return ErrConnClosed
	}

	origin.mu.Lock()
	fn := origin.pending[msg.serial]
	origin.mu.Unlock()
	if fn == nil {
		return nil // call cancelled, reply dropped
	}

	reply := NewMessage(c.name, c.name, msg.category, msg.method, msg.serial, payload)
	fn(reply)
	return nil
}

// WatchService asks the broker to signal this connection when the named
// service disconnects. The returned token cancels the watch via CancelCall.
func (c *Conn) WatchService(name string, fn HandlerFunc) (Token, error) {
	if c.closed.Load() {
		return 0, ErrConnClosed
	}

	serial := Token(c.nextSerial.Add(1))
	c.broker.addWatch(c, serial, name, fn)
	return serial, nil
}

// Close disconnects the endpoint from the broker. Watchers of this
// connection's service name receive a disconnect signal before Close
// returns. Close is idempotent.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	c.pending = make(map[Token]HandlerFunc)
	c.mu.Unlock()

	c.broker.disconnect(c)
	return nil
}

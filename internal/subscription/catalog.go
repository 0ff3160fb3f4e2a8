package subscription

import (
	"fmt"
	"slices"
	"sync"

	"github.com/buskit/buskit/internal/transport"
)

// Bus is what the catalog needs from its bus connection: liveness watch
// registration and cancellation, and sending replies to stored requests.
// *transport.Conn satisfies it.
type Bus interface {
	WatchService(name string, fn transport.HandlerFunc) (transport.Token, error)
	CancelCall(tok transport.Token) error
	Reply(msg *transport.Message, payload []byte) error
}

// CancelFunc is the cancellation-notification hook. It is invoked with the
// original subscribing message when a subscriber cancels explicitly or
// drops off the bus, while the record is still guaranteed alive.
type CancelFunc func(msg *transport.Message)

// Catalog is the subscription store for one bus connection. It maps unique
// tokens to subscriber records and topic keys to ordered token lists, and
// keeps the two indices mutually consistent under a single lock.
//
// All methods are safe for concurrent use.
type Catalog struct {
	bus Bus

	mu       sync.Mutex
	tokens   map[string]*record
	topics   map[string]*subList
	cancelFn CancelFunc
	closed   bool
}

// Option configures a Catalog at construction time.
type Option func(*Catalog)

// WithCancelFunc sets the cancellation-notification hook at construction.
func WithCancelFunc(fn CancelFunc) Option {
	return func(c *Catalog) {
		c.cancelFn = fn
	}
}

// New creates an empty catalog on the given bus connection.
func New(bus Bus, opts ...Option) *Catalog {
	c := &Catalog{
		bus:    bus,
		tokens: make(map[string]*record),
		topics: make(map[string]*subList),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCancelFunc replaces the cancellation-notification hook. The previous
// hook is discarded; passing nil removes it.
func (c *Catalog) SetCancelFunc(fn CancelFunc) {
	c.mu.Lock()
	c.cancelFn = fn
	c.mu.Unlock()
}

// Add registers message under the topic key. The first Add for a given
// sender/serial pair creates the subscriber record and registers a liveness
// watch against the sender; if that registration fails the catalog is left
// unchanged. Add is idempotent per (key, token) pair.
func (c *Catalog) Add(key string, msg *transport.Message) error {
	token := msg.UniqueToken()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if rec := c.tokens[token]; rec != nil {
		c.attachLocked(rec, key, token)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	// Watch registration calls into the bus and may be slow; it happens
	// outside the critical section.
	rec, err := c.newRecord(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.release(rec)
		return ErrClosed
	}
	if existing := c.tokens[token]; existing != nil {
		// Lost the insert race; the redundant record's watch is
		// cancelled by its release.
		c.attachLocked(existing, key, token)
		c.mu.Unlock()
		c.release(rec)
		return nil
	}
	c.tokens[token] = rec
	c.attachLocked(rec, key, token)
	c.mu.Unlock()
	return nil
}

// attachLocked links token into key's list and key into the record's key
// set, creating the list lazily. Both sides are deduplicated. Caller holds
// the lock.
func (c *Catalog) attachLocked(rec *record, key, token string) {
	list := c.topics[key]
	if list == nil {
		list = newSubList()
		c.topics[key] = list
	}
	list.add(token)

	if !slices.Contains(rec.keys, key) {
		rec.keys = append(rec.keys, key)
	}
}

// removeToken removes the subscription for token from both indices and
// reports whether one existed. When notify is set the cancellation hook, if
// any, runs first, while the record is still registered and alive. Topic
// lists that become empty are deleted.
func (c *Catalog) removeToken(token string, notify bool) bool {
	rec := c.acquire(token)
	if rec == nil {
		return false
	}

	if notify {
		c.mu.Lock()
		fn := c.cancelFn
		c.mu.Unlock()
		if fn != nil {
			fn(rec.msg)
		}
	}

	c.mu.Lock()
	for _, key := range rec.keys {
		list := c.topics[key]
		list.remove(token)
		if list.len() == 0 {
			delete(c.topics, key)
		}
	}
	_, held := c.tokens[token]
	delete(c.tokens, token)
	c.mu.Unlock()

	if held {
		c.release(rec) // the token map's count unit
	}
	c.release(rec) // our temporary reference
	return true
}

// Remove cancels the subscription for token without invoking the
// cancellation hook. It reports whether a subscription existed.
func (c *Catalog) Remove(token string) bool {
	return c.removeToken(token, false)
}

// Reply sends payload to every current subscriber of key. A key with no
// subscribers is a silent success. The first transport failure aborts the
// fan-out and is returned.
func (c *Catalog) Reply(key string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.topics[key]
	if list == nil {
		return nil
	}

	for _, token := range list.toks {
		rec := c.tokens[token]
		if rec == nil {
			continue
		}
		if err := c.bus.Reply(rec.msg, payload); err != nil {
			return fmt.Errorf("reply to %s: %w", token, err)
		}
	}
	return nil
}

// Post sends payload to every subscriber of the default topic key derived
// from category and method.
func (c *Catalog) Post(category, method string, payload []byte) error {
	return c.Reply(transport.Kind(category, method), payload)
}

// Count returns the number of active subscriptions.
func (c *Catalog) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tokens)
}

// CountByKey returns the number of subscribers of key.
func (c *Catalog) CountByKey(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topics[key].len()
}

// Close releases every remaining subscription, cancelling their liveness
// watches. The cancellation hook is not invoked. Further Adds fail with
// ErrClosed; Close is idempotent.
func (c *Catalog) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	recs := make([]*record, 0, len(c.tokens))
	for _, rec := range c.tokens {
		recs = append(recs, rec)
	}
	c.tokens = make(map[string]*record)
	c.topics = make(map[string]*subList)
	c.mu.Unlock()

	for _, rec := range recs {
		c.release(rec)
	}
}

package subscription

import (
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/tidwall/gjson"

	"github.com/buskit/buskit/internal/transport"
)

// record is one subscribing request. It owns the inbound message, the set
// of topic keys it is registered under, and the liveness watch against its
// sender.
//
// Records are reference counted: the token map holds one count unit and
// every iterator that has yielded the record holds another. The watch is
// cancelled exactly when the count reaches zero. Fields other than ref are
// written only during creation and teardown.
type record struct {
	token string
	msg   *transport.Message
	keys  []string
	watch transport.Token
	ref   atomic.Int32
}

// newRecord creates a record for msg with a reference count of one and
// registers a liveness watch against the sender. Registration happens
// without the catalog lock held; on failure no record is created.
func (c *Catalog) newRecord(msg *transport.Message) (*record, error) {
	rec := &record{
		token: msg.UniqueToken(),
		msg:   msg,
	}
	rec.ref.Store(1)

	watch, err := c.bus.WatchService(msg.Sender(), c.senderStatus(msg.Token()))
	if err != nil {
		return nil, xerrWatch(err)
	}
	rec.watch = watch
	return rec, nil
}

// acquire returns a strong reference to the record for token, or nil. The
// count is incremented before the lock is released, so the reference stays
// valid even if another goroutine removes the token immediately after.
func (c *Catalog) acquire(token string) *record {
	c.mu.Lock()
	rec := c.tokens[token]
	if rec != nil {
		rec.ref.Add(1)
	}
	c.mu.Unlock()
	return rec
}

// release drops one reference. The last release tears the record down.
func (c *Catalog) release(rec *record) {
	if rec == nil {
		return
	}
	n := rec.ref.Add(-1)
	if n < 0 {
		panic("subscription: release of already freed record")
	}
	if n == 0 {
		rec.free(c)
	}
}

// free cancels the liveness watch and drops the key set. A watch that has
// already fired reports ErrCallNotFound, which is the normal disconnect
// teardown path. Other cancellation failures are logged, not propagated;
// the record is gone either way.
func (rec *record) free(c *Catalog) {
	if rec.watch != 0 {
		err := c.bus.CancelCall(rec.watch)
		if err != nil && !errors.Is(err, transport.ErrCallNotFound) {
			slog.Warn("subscription: cancelling liveness watch failed",
				"token", rec.token, "error", err)
		}
	}
	rec.keys = nil
}

// senderStatus builds the liveness-watch callback for a subscription whose
// request carried the given serial. The watched sender's identity arrives
// in the signal payload; together with the captured serial it reconstructs
// the exact unique token that was subscribed.
func (c *Catalog) senderStatus(serial transport.Token) transport.HandlerFunc {
	return func(msg *transport.Message) {
		payload := msg.Payload()
		if !gjson.ValidBytes(payload) {
			slog.Error("subscription: malformed status signal",
				"payload", string(payload))
			return
		}

		connected := gjson.GetBytes(payload, "connected")
		serviceName := gjson.GetBytes(payload, "serviceName")
		if !connected.IsBool() || serviceName.Type != gjson.String {
			slog.Error("subscription: status signal missing fields",
				"payload", string(payload))
			return
		}

		if connected.Bool() {
			return
		}

		token := serviceName.String() + "." + strconv.FormatUint(uint64(serial), 10)
		if rec := c.acquire(token); rec != nil {
			c.removeToken(token, true)
			c.release(rec)
		}
	}
}

package subscription

import "github.com/buskit/buskit/internal/transport"

// Iter walks the subscribers of one topic key over a snapshot taken at
// acquisition time. Adds and removes after acquisition do not change the
// sequence. Every record the iterator yields is retained until Release, so
// yielded messages stay valid even if the subscription is concurrently
// removed.
//
// The protocol is HasNext then Next, Release exactly once on every exit
// path. Calling Next past the snapshot is caller misuse and panics.
type Iter struct {
	catalog *Catalog
	tokens  *subList
	seen    []*record
	index   int
}

// Acquire returns an iterator over the current subscribers of key. A key
// with no subscribers yields an empty iterator.
func (c *Catalog) Acquire(key string) *Iter {
	c.mu.Lock()
	snap := c.topics[key].dup()
	c.mu.Unlock()

	return &Iter{
		catalog: c,
		tokens:  snap,
		index:   -1,
	}
}

// HasNext reports whether the cursor can advance within the snapshot.
func (it *Iter) HasNext() bool {
	return it.index+1 < it.tokens.len()
}

// Next advances the cursor and returns the subscribing message at that
// position. A token that no longer resolves (subscriber already removed)
// yields nil for that step without ending the iteration.
func (it *Iter) Next() *transport.Message {
	it.index++
	token := it.tokens.get(it.index)

	rec := it.catalog.acquire(token)
	if rec == nil {
		return nil
	}
	it.seen = append(it.seen, rec)
	return rec.msg
}

// Remove deletes the subscription at the current cursor position from the
// catalog. The cancellation hook is not invoked; this path is for
// caller-driven pruning during iteration. The snapshot is unaffected.
func (it *Iter) Remove() {
	token := it.tokens.get(it.index)
	it.catalog.removeToken(token, false)
}

// Release drops every retained record reference and the snapshot. It must
// be called exactly once per acquired iterator.
func (it *Iter) Release() {
	for _, rec := range it.seen {
		it.catalog.release(rec)
	}
	it.seen = nil
	it.tokens = nil
}

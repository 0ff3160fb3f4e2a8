// Package subscription implements the subscription catalog of a bus
// connection: it remembers which inbound requests asked to be kept informed
// under a topic key, fans replies out to every current subscriber of a key,
// reacts to subscribers dropping off the bus, and lets subscribers cancel
// explicitly.
//
// # Catalog
//
// The Catalog holds two mutually consistent indices behind one lock:
//
//	token map   unique token -> subscriber record
//	topic map   topic key    -> ordered token list
//
// Add and removal are the only mutation entry points; each restores both
// index invariants before releasing the lock. A topic list that becomes
// empty is deleted, never left as a placeholder.
//
// # Records and lifetime
//
// A subscriber record is reference counted. The token map holds one count
// unit; every iterator that yields the record holds another. The record's
// liveness watch is cancelled exactly when the last holder releases it, so
// a message yielded by an iterator stays valid until the iterator is
// released even if the subscription is concurrently removed.
//
// # Iteration
//
// Acquire snapshots a topic's token list under the lock. The iterator walks
// the snapshot, resolving each token to a live record on demand:
//
//	iter := catalog.Acquire("/clock/time")
//	defer iter.Release()
//	for iter.HasNext() {
//	    msg := iter.Next()
//	    if msg == nil {
//	        continue // subscriber already gone
//	    }
//	    // use msg
//	}
//
// Adds and removes after acquisition do not affect the snapshot.
//
// # Cancellation
//
// Explicit cancellation (HandleCancel) and implicit cancellation (the
// subscriber disconnecting from the bus) converge on the same removal path
// and both invoke the catalog's cancellation hook. Pruning through
// Iter.Remove is housekeeping and deliberately does not invoke the hook.
package subscription

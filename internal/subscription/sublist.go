package subscription

import "fmt"

// subList is the ordered, deduplicated token sequence for one topic key.
// It is not safe for concurrent use; callers hold the catalog lock, or own
// a private snapshot.
type subList struct {
	toks []string
}

func newSubList() *subList {
	return &subList{}
}

func (l *subList) len() int {
	if l == nil {
		return 0
	}
	return len(l.toks)
}

// add appends token if it is not already present.
func (l *subList) add(token string) {
	if !l.contains(token) {
		l.toks = append(l.toks, token)
	}
}

func (l *subList) contains(token string) bool {
	if l == nil {
		return false
	}
	for _, t := range l.toks {
		if t == token {
			return true
		}
	}
	return false
}

// remove deletes the first occurrence of token, preserving order.
func (l *subList) remove(token string) {
	if l == nil {
		return
	}
	for i, t := range l.toks {
		if t == token {
			l.toks = append(l.toks[:i], l.toks[i+1:]...)
			return
		}
	}
}

// dup returns an independent copy for snapshot iteration.
func (l *subList) dup() *subList {
	if l == nil {
		return newSubList()
	}
	dst := &subList{toks: make([]string, len(l.toks))}
	copy(dst.toks, l.toks)
	return dst
}

// get returns the token at position i. Reading outside the list is a
// violation of the HasNext/Next protocol and panics.
func (l *subList) get(i int) string {
	if i < 0 || i >= l.len() {
		panic(fmt.Sprintf("subscription: token index %d out of range %d; "+
			"Next called without HasNext", i, l.len()))
	}
	return l.toks[i]
}

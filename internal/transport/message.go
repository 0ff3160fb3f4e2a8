package transport

import (
	"strconv"
	"strings"
)

// Token is a per-connection message serial number. Serials start at 1 and
// never repeat within a connection's lifetime.
type Token uint64

// Message is one inbound request or signal on the bus.
// A Message is immutable after construction and safe to share across
// goroutines.
type Message struct {
	serial   Token
	sender   string
	service  string
	category string
	method   string
	payload  []byte
	origin   *Conn
}

// NewMessage builds a message outside the broker's routing path. It is used
// by the broker internally and by tests that need to fabricate requests.
// Messages built this way have no origin connection and cannot be replied to.
func NewMessage(sender, service, category, method string, serial Token, payload []byte) *Message {
	return &Message{
		serial:   serial,
		sender:   sender,
		service:  service,
		category: category,
		method:   method,
		payload:  payload,
	}
}

// Token returns the message's per-connection serial.
func (m *Message) Token() Token {
	return m.serial
}

// UniqueToken returns the bus-wide identifier for this request:
// the sender identity joined with the serial, e.g. "com.example.app.7".
func (m *Message) UniqueToken() string {
	return m.sender + "." + strconv.FormatUint(uint64(m.serial), 10)
}

// Sender returns the sending connection's bus identity.
func (m *Message) Sender() string {
	return m.sender
}

// SenderServiceName returns the sender's registered service name.
func (m *Message) SenderServiceName() string {
	return m.service
}

// Payload returns the raw request payload.
func (m *Message) Payload() []byte {
	return m.payload
}

// Category returns the request's method category.
func (m *Message) Category() string {
	return m.category
}

// Method returns the request's method name.
func (m *Message) Method() string {
	return m.method
}

// Kind returns the default topic key for this request, derived from
// category and method.
func (m *Message) Kind() string {
	return Kind(m.category, m.method)
}

// Kind derives the "/category/method" topic key. Leading and trailing
// slashes on either part are normalized, and a root or empty category
// collapses to a single slash:
//
//	Kind("foo", "bar")  -> "/foo/bar"
//	Kind("/foo", "bar") -> "/foo/bar"
//	Kind("/", "status") -> "/status"
//	Kind("", "status")  -> "/status"
func Kind(category, method string) string {
	c := strings.Trim(category, "/")
	m := strings.Trim(method, "/")
	if c == "" {
		return "/" + m
	}
	return "/" + c + "/" + m
}

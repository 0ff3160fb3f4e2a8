package subscription

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestDumpEmptyCatalog(t *testing.T) {
	c := New(newFakeBus())
	defer c.Close()

	out, err := c.Dump()
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	doc := gjson.ParseBytes(out)
	if !doc.Get("returnValue").Bool() {
		t.Error("returnValue = false, want true")
	}
	if n := len(doc.Get("subscriptions").Array()); n != 0 {
		t.Errorf("subscriptions length = %d, want 0", n)
	}
}

func TestDumpDescribesSubscribers(t *testing.T) {
	c := New(newFakeBus())
	defer c.Close()

	m1 := testMsg("com.example.one", 1, "zebra", "z", `{"subscribe":true}`)
	m2 := testMsg("com.example.two", 4, "alpha", "a", `{"subscribe":true,"n":2}`)
	if err := c.Add("/zebra/z", m1); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := c.Add("/alpha/a", m2); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	out, err := c.Dump()
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	doc := gjson.ParseBytes(out)
	subs := doc.Get("subscriptions").Array()
	if len(subs) != 2 {
		t.Fatalf("subscriptions length = %d, want 2", len(subs))
	}

	// Keys come out sorted.
	if got := subs[0].Get("key").String(); got != "/alpha/a" {
		t.Errorf("first key = %q, want /alpha/a", got)
	}
	if got := subs[1].Get("key").String(); got != "/zebra/z" {
		t.Errorf("second key = %q, want /zebra/z", got)
	}

	alpha := subs[0].Get("subscribers").Array()
	if len(alpha) != 1 {
		t.Fatalf("subscribers of /alpha/a = %d, want 1", len(alpha))
	}
	if got := alpha[0].Get("unique_name").String(); got != "com.example.two" {
		t.Errorf("unique_name = %q, want com.example.two", got)
	}
	if got := alpha[0].Get("service_name").String(); got != "com.example.two" {
		t.Errorf("service_name = %q, want com.example.two", got)
	}
	if got := alpha[0].Get("subscription_message").String(); got != `{"subscribe":true,"n":2}` {
		t.Errorf("subscription_message = %q, want original payload", got)
	}
}

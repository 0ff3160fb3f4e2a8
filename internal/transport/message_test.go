package transport

import "testing"

func TestKind(t *testing.T) {
	tests := []struct {
		category string
		method   string
		want     string
	}{
		{"foo", "bar", "/foo/bar"},
		{"/foo", "bar", "/foo/bar"},
		{"/foo/", "/bar", "/foo/bar"},
		{"/", "status", "/status"},
		{"", "status", "/status"},
		{"clock", "time", "/clock/time"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Kind(tt.category, tt.method); got != tt.want {
				t.Errorf("Kind(%q, %q) = %q, want %q", tt.category, tt.method, got, tt.want)
			}
		})
	}
}

func TestMessageAccessors(t *testing.T) {
	msg := NewMessage("com.example.app", "com.example.app", "foo", "bar", 7, []byte(`{"subscribe":true}`))

	if got := msg.Token(); got != 7 {
		t.Errorf("Token() = %d, want 7", got)
	}
	if got := msg.UniqueToken(); got != "com.example.app.7" {
		t.Errorf("UniqueToken() = %q, want com.example.app.7", got)
	}
	if got := msg.Sender(); got != "com.example.app" {
		t.Errorf("Sender() = %q", got)
	}
	if got := msg.SenderServiceName(); got != "com.example.app" {
		t.Errorf("SenderServiceName() = %q", got)
	}
	if got := string(msg.Payload()); got != `{"subscribe":true}` {
		t.Errorf("Payload() = %q", got)
	}
	if got := msg.Kind(); got != "/foo/bar" {
		t.Errorf("Kind() = %q, want /foo/bar", got)
	}
}

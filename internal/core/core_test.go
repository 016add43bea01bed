package core

import (
	"strings"
	"testing"
)

func TestMessage_HasToolCalls(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"assistant with calls", Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "1"}}}, true},
		{"assistant without calls", Message{Role: RoleAssistant, Content: "hi"}, false},
		{"user never", Message{Role: RoleUser, ToolCalls: []ToolCall{{ID: "1"}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.HasToolCalls(); got != tt.want {
				t.Errorf("HasToolCalls() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewRequestID_Unique(t *testing.T) {
	a := NewRequestID()
	b := NewRequestID()

	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
	if !strings.HasPrefix(string(a), "req_") {
		t.Errorf("expected req_ prefix, got %q", a)
	}
}

func TestNewToolCallID_Prefix(t *testing.T) {
	if id := NewToolCallID(); !strings.HasPrefix(id, "call_") || len(id) != len("call_")+12 {
		t.Errorf("unexpected tool call id %q", id)
	}
}

func TestNumericConversions(t *testing.T) {
	if got := IntFromAny(float64(42)); got != 42 {
		t.Errorf("IntFromAny(float64) = %d", got)
	}
	if got := IntFromAny("nope"); got != 0 {
		t.Errorf("IntFromAny(string) = %d", got)
	}
	if got := FloatFromAny(3); got != 3 {
		t.Errorf("FloatFromAny(int) = %v", got)
	}
}

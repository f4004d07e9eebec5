package httpclient

import (
	"testing"
	"time"
)

func TestNewOutbound_Timeout(t *testing.T) {
	if got := NewOutbound(0).Timeout; got != defaultTimeout {
		t.Fatalf("default timeout = %v", got)
	}
	if got := NewOutbound(3 * time.Second).Timeout; got != 3*time.Second {
		t.Fatalf("timeout = %v", got)
	}
}

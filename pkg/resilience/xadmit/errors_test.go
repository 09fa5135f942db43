package xadmit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestIsStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"store unavailable", ErrStoreUnavailable, true},
		{"wrapped store unavailable", fmt.Errorf("try_consume: %w", ErrStoreUnavailable), true},
		{"breaker open", gobreaker.ErrOpenState, true},
		{"breaker half-open saturated", gobreaker.ErrTooManyRequests, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "redis.internal"}, true},
		{"op error", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"quota exceeded is not a store error", &QuotaError{Policy: "strict", RetryAfter: time.Second}, false},
		{"plain error", errors.New("bad policy"), false},
		{"unknown policy", ErrUnknownPolicy, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStoreError(tt.err); got != tt.want {
				t.Errorf("IsStoreError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "none"},
		{"breaker open", gobreaker.ErrOpenState, "breaker_open"},
		{"timeout", context.DeadlineExceeded, "timeout"},
		{"network", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, "network"},
		{"other", errors.New("script reply malformed"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStoreError(tt.err); got != tt.want {
				t.Errorf("classifyStoreError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

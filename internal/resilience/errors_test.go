package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type selfClassified struct {
	retryable bool
}

func (e *selfClassified) Error() string   { return "classified failure" }
func (e *selfClassified) Retryable() bool { return e.retryable }

type timeoutError struct{}

func (timeoutError) Error() string   { return "deadline exceeded" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"transient wrapper", NewTransientError(errors.New("503"), 503), true},
		{"wrapped transient", fmt.Errorf("call: %w", NewTransientError(errors.New("503"), 503)), true},
		{"self-classified retryable", &selfClassified{retryable: true}, true},
		{"self-classified terminal", &selfClassified{retryable: false}, false},
		{"net timeout", net.Error(timeoutError{}), true},
		{"connection reset syscall", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"connection reset text", errors.New("read tcp: connection reset by peer"), true},
		{"no such host", errors.New("dial tcp: lookup api: no such host"), true},
		{"i/o timeout text", errors.New("read: i/o timeout"), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

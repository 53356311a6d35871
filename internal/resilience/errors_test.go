package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient wrapper", NewTransientError(errors.New("x"), 503), true},
		{"wrapped transient", eris.Wrap(NewTransientError(errors.New("x"), 429), "places: search"), true},
		{"status 500", &StatusError{Service: "chat", StatusCode: 500}, true},
		{"status 429", fmt.Errorf("call: %w", &StatusError{Service: "chat", StatusCode: 429}), true},
		{"status 401", &StatusError{Service: "chat", StatusCode: 401}, false},
		{"status 400", &StatusError{Service: "chat", StatusCode: 400}, false},
		{"deadline", fmt.Errorf("attempt: %w", context.DeadlineExceeded), true},
		{"net timeout", timeoutErr{}, true},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"string pattern", errors.New("read tcp: connection reset by peer"), true},
		{"plain", errors.New("invalid api key"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&StatusError{StatusCode: 429}))
	assert.True(t, IsRateLimited(eris.Wrap(NewTransientError(errors.New("slow down"), 429), "x")))
	assert.False(t, IsRateLimited(&StatusError{StatusCode: 503}))
	assert.False(t, IsRateLimited(errors.New("429")))
}

func TestStatusError_TruncatesBody(t *testing.T) {
	body := make([]byte, 1000)
	for i := range body {
		body[i] = 'x'
	}
	err := &StatusError{Service: "google", StatusCode: 500, Body: string(body)}
	assert.Contains(t, err.Error(), "google: unexpected status 500")
	assert.Less(t, len(err.Error()), 300)
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, ClassTransient, ClassifyError(context.DeadlineExceeded))
	assert.Equal(t, ClassPermanent, ClassifyError(errors.New("validation: id: identifier is empty")))
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/infrastructure/logger"
)

type httpStatusError struct{ code int }

func (e httpStatusError) Error() string       { return fmt.Sprintf("status %d", e.code) }
func (e httpStatusError) HTTPStatusCode() int { return e.code }

func TestClassify(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name   string
		status int
		err    error
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, base, output.ErrAuthentication},
		{"forbidden", http.StatusForbidden, base, output.ErrAuthentication},
		{"rate limited", http.StatusTooManyRequests, base, output.ErrServiceUnavailable},
		{"server error", http.StatusBadGateway, base, output.ErrServiceUnavailable},
		{"gateway timeout", http.StatusGatewayTimeout, base, output.ErrTimeout},
		{"bad request", http.StatusBadRequest, base, output.ErrModel},
		{"deadline", 0, fmt.Errorf("post: %w", context.DeadlineExceeded), output.ErrTimeout},
		{"status from error", 0, httpStatusError{code: 401}, output.ErrAuthentication},
		{"unknown", 0, base, output.ErrModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify("bedrock", tt.status, tt.err)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), "bedrock: ")
		})
	}
}

func TestClassify_KeepsExistingSentinel(t *testing.T) {
	err := Classify("gemini", http.StatusInternalServerError, fmt.Errorf("x: %w", output.ErrAuthentication))
	assert.ErrorIs(t, err, output.ErrAuthentication)
	assert.NotErrorIs(t, err, output.ErrServiceUnavailable)

	assert.NoError(t, Classify("gemini", 500, nil))
	assert.ErrorIs(t, Classify("gemini", 0, context.Canceled), context.Canceled)
}

func TestStatusTransport_RecordsLastStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	transport := NewStatusTransport(nil, logger.NewNop())
	assert.Equal(t, 0, transport.LastStatus())

	resp, err := transport.Client(time.Second).Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, transport.LastStatus())
}

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCheck struct {
	name  string
	err   error
	sleep time.Duration
}

func (s *stubCheck) Name() string { return s.name }

func (s *stubCheck) Check(ctx context.Context) error {
	if s.sleep > 0 {
		select {
		case <-time.After(s.sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func TestNew_Options(t *testing.T) {
	h := New()
	assert.Equal(t, 5*time.Second, h.timeout)
	assert.Equal(t, 3, h.failureThreshold)

	h = New(WithTimeout(time.Second), WithFailureThreshold(1), WithFailureThreshold(0))
	assert.Equal(t, time.Second, h.timeout)
	assert.Equal(t, 1, h.failureThreshold)
}

func TestCheckReadiness_NoChecksIsHealthy(t *testing.T) {
	status, err := New().CheckReadiness(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Checks)
}

func TestFailureThreshold(t *testing.T) {
	failing := &stubCheck{name: "sqlite", err: errors.New("database is locked")}
	h := New(WithFailureThreshold(2))
	h.AddReadinessCheck(failing)

	status, err := h.CheckReadiness(context.Background())
	require.NoError(t, err, "first failure is below threshold")
	assert.True(t, status.Healthy)

	status, err = h.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
	assert.Equal(t, "database is locked", status.Checks[0].Error)

	failing.err = nil
	status, err = h.CheckReadiness(context.Background())
	require.NoError(t, err, "success resets the streak")
	assert.True(t, status.Healthy)
}

func TestCheckTimeout(t *testing.T) {
	h := New(WithTimeout(20*time.Millisecond), WithFailureThreshold(1))
	h.AddLivenessCheck(&stubCheck{name: "slow", sleep: time.Second})

	status, err := h.CheckLiveness(context.Background())
	require.Error(t, err)
	assert.Contains(t, status.Checks[0].Error, context.DeadlineExceeded.Error())
}

func TestHandlers(t *testing.T) {
	h := New(WithFailureThreshold(1))
	h.AddLivenessCheck(NewCheckFunc("process", func(context.Context) error { return nil }))
	h.AddReadinessCheck(NewCheckFunc("store", func(context.Context) error { return errors.New("closed") }))

	rec := httptest.NewRecorder()
	h.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var live HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &live))
	assert.Equal(t, "healthy", live.Status)
	assert.Equal(t, "ok", live.Checks["process"].Status)

	rec = httptest.NewRecorder()
	h.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var ready HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, "unhealthy", ready.Status)
	assert.Equal(t, "closed", ready.Checks["store"].Error)
	assert.Contains(t, ready.Message, "store")
}

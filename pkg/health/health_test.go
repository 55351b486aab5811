package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err atomic.Pointer[error] }

func (p *fakePinger) Ping(context.Context) error {
	if e := p.err.Load(); e != nil {
		return *e
	}
	return nil
}

func (p *fakePinger) fail(err error) { p.err.Store(&err) }

func get(t *testing.T, endpoint http.HandlerFunc) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	endpoint(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, body
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLiveness(Check{Name: "goroutines", Func: GoroutineCountCheck(1 << 20)})

	code, body := get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
}

func TestProbeThresholds(t *testing.T) {
	pinger := &fakePinger{}
	pinger.fail(errors.New("connection refused"))

	h := New()
	h.AddLiveness(Check{Name: "postgres", Func: PingCheck(pinger), FailureThreshold: 2, SuccessThreshold: 2})
	p := h.liveness[0]
	ctx := context.Background()

	p.run(ctx)
	code, _ := get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "one failure is below the threshold")

	p.run(ctx)
	code, body := get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "ping: connection refused", body.Checks["postgres"])

	pinger.err.Store(nil)
	p.run(ctx)
	code, _ = get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code, "one success is below the threshold")

	p.run(ctx)
	code, _ = get(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadiness(Check{Name: "redis", Func: func(context.Context) error { return nil }})

	code, body := get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _ = get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())
}

func TestStartRunsChecks(t *testing.T) {
	var runs atomic.Int32
	h := New()
	h.AddReadiness(Check{Name: "counter", Func: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	h.Stop()
	h.Stop()
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.AddReadiness(Check{
		Name:             "slow",
		Timeout:          time.Millisecond,
		FailureThreshold: 1,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	h.SetReady(true)
	h.readiness[0].run(context.Background())

	code, body := get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, context.DeadlineExceeded.Error(), body.Checks["slow"])
}

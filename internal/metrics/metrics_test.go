package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/speedwagon-io/co2hook/internal/model"
)

func TestObserveAcquisition(t *testing.T) {
	r := NewRecorder()

	r.ObserveAcquisition(model.KindSerial, 415, 120*time.Millisecond, nil)
	r.ObserveAcquisition(model.KindSerial, 0, time.Millisecond, model.NewError(model.CategoryPort, model.ErrPortOpen, nil))
	r.ObserveAcquisition(model.KindHTTPGet, 0, time.Millisecond, errors.New("plain"))

	if got := testutil.ToFloat64(r.acquisitions.WithLabelValues("serial", "ok")); got != 1 {
		t.Fatalf("ok count = %v", got)
	}
	if got := testutil.ToFloat64(r.acquisitions.WithLabelValues("serial", "port")); got != 1 {
		t.Fatalf("port count = %v", got)
	}
	if got := testutil.ToFloat64(r.acquisitions.WithLabelValues("http-get", "unknown")); got != 1 {
		t.Fatalf("unknown count = %v", got)
	}
	if got := testutil.ToFloat64(r.lastReading); got != 415 {
		t.Fatalf("last reading = %v", got)
	}
}

func TestObserveHooks(t *testing.T) {
	r := NewRecorder()
	r.ObserveHooks([]model.HookInvocation{
		{Hook: "a"},
		{Hook: "b", Err: errors.New("exit 1")},
		{Hook: "c"},
	})

	if got := testutil.ToFloat64(r.hooks.WithLabelValues("ok")); got != 2 {
		t.Fatalf("ok hooks = %v", got)
	}
	if got := testutil.ToFloat64(r.hooks.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed hooks = %v", got)
	}
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.ObserveAcquisition(model.KindSerial, 600, time.Millisecond, nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "co2hook_last_reading 600") {
		t.Fatalf("metrics output missing last reading:\n%s", rec.Body.String())
	}
}

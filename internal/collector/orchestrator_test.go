package collector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/speedwagon-io/co2hook/internal/config"
	"github.com/speedwagon-io/co2hook/internal/hooks"
	"github.com/speedwagon-io/co2hook/internal/lib/logger/sl"
	"github.com/speedwagon-io/co2hook/internal/model"
)

type fakeCollector struct {
	name    string
	reading model.Reading
	err     error
	delay   time.Duration
	active  *int32
	overlap *int32
	closed  bool
}

func (c *fakeCollector) Collect(ctx context.Context) (model.Reading, error) {
	if c.active != nil {
		if atomic.AddInt32(c.active, 1) > 1 {
			atomic.StoreInt32(c.overlap, 1)
		}
		defer atomic.AddInt32(c.active, -1)
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.reading, c.err
}

func (c *fakeCollector) Name() string { return c.name }

func (c *fakeCollector) Close() error {
	c.closed = true
	return nil
}

type fakeDispatcher struct {
	calls   []model.Reading
	results []model.HookInvocation
	err     error
}

func (d *fakeDispatcher) Run(ctx context.Context, reading model.Reading) ([]model.HookInvocation, error) {
	d.calls = append(d.calls, reading)
	return d.results, d.err
}

type fakePublisher struct {
	envelopes []*model.Envelope
	ctxErrs   []error
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, envelope *model.Envelope) error {
	p.envelopes = append(p.envelopes, envelope)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	return p.err
}

// cancellingCollector returns a reading and cancels the request context on
// the way out, like a client that hangs up right after the sensor answers.
type cancellingCollector struct {
	cancel context.CancelFunc
}

func (c *cancellingCollector) Collect(context.Context) (model.Reading, error) {
	c.cancel()
	return 415, nil
}

func (c *cancellingCollector) Name() string { return "cancelling" }
func (c *cancellingCollector) Close() error { return nil }

type factoryCalls struct {
	serial, http int
	built        []*fakeCollector
}

func (f *factoryCalls) factory(serial, http *fakeCollector) Factory {
	return Factory{
		Serial: func(model.SerialSource) Collector {
			f.serial++
			f.built = append(f.built, serial)
			return serial
		},
		HTTPGet: func(model.HTTPGetSource) Collector {
			f.http++
			f.built = append(f.built, http)
			return http
		},
	}
}

var (
	serialSource = config.SourceConfig{Kind: "serial", Port: "/dev/ttyUSB0"}
	httpSource   = config.SourceConfig{Kind: "http-get", URL: "http://sensor", Authorization: "Bearer x", Key: "co2"}
)

func TestHandleSerialNeverUsesHTTP(t *testing.T) {
	calls := &factoryCalls{}
	hooks := &fakeDispatcher{}
	o := NewOrchestrator(sl.Discard(), calls.factory(&fakeCollector{reading: 415}, &fakeCollector{}), hooks)

	acq, err := o.HandleAcquisitionRequest(context.Background(), serialSource)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if acq.Reading != 415 || acq.Source != model.KindSerial || acq.ID == "" {
		t.Fatalf("unexpected acquisition: %+v", acq)
	}
	if calls.serial != 1 || calls.http != 0 {
		t.Fatalf("factory calls serial=%d http=%d", calls.serial, calls.http)
	}
	if len(hooks.calls) != 1 || hooks.calls[0] != 415 {
		t.Fatalf("hooks not invoked with the reading: %v", hooks.calls)
	}
	if !calls.built[0].closed {
		t.Fatalf("collector not closed")
	}
}

func TestHandleHTTPNeverOpensSerial(t *testing.T) {
	calls := &factoryCalls{}
	o := NewOrchestrator(sl.Discard(), calls.factory(&fakeCollector{}, &fakeCollector{reading: 600}), &fakeDispatcher{})

	acq, err := o.HandleAcquisitionRequest(context.Background(), httpSource)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if acq.Reading != 600 || acq.Source != model.KindHTTPGet {
		t.Fatalf("unexpected acquisition: %+v", acq)
	}
	if calls.serial != 0 || calls.http != 1 {
		t.Fatalf("factory calls serial=%d http=%d", calls.serial, calls.http)
	}
}

func TestHandleUnknownKind(t *testing.T) {
	calls := &factoryCalls{}
	hooks := &fakeDispatcher{}
	o := NewOrchestrator(sl.Discard(), calls.factory(&fakeCollector{}, &fakeCollector{}), hooks)

	acq, err := o.HandleAcquisitionRequest(context.Background(), config.SourceConfig{Kind: "modbus"})
	if !errors.Is(err, model.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if acq != nil {
		t.Fatalf("expected no acquisition, got %+v", acq)
	}
	if calls.serial+calls.http != 0 || len(hooks.calls) != 0 {
		t.Fatalf("nothing should run for an unknown kind")
	}
}

func TestHandleCollectorErrorSkipsHooks(t *testing.T) {
	calls := &factoryCalls{}
	hooks := &fakeDispatcher{}
	pub := &fakePublisher{}
	want := model.NewError(model.CategoryPort, model.ErrPortOpen, errors.New("busy"))
	o := NewOrchestrator(sl.Discard(), calls.factory(&fakeCollector{err: want}, nil), hooks, WithPublisher(pub))

	_, err := o.HandleAcquisitionRequest(context.Background(), serialSource)
	if !errors.Is(err, model.ErrPortOpen) {
		t.Fatalf("expected ErrPortOpen, got %v", err)
	}
	if len(hooks.calls) != 0 || len(pub.envelopes) != 0 {
		t.Fatalf("hooks or publisher ran after a failed acquisition")
	}
	if !calls.built[0].closed {
		t.Fatalf("collector not closed after failure")
	}

	at, lastErr := o.Last()
	if at.IsZero() || !errors.Is(lastErr, model.ErrPortOpen) {
		t.Fatalf("last status not recorded: %v %v", at, lastErr)
	}
}

func TestHandleHookFailuresDoNotFailAcquisition(t *testing.T) {
	calls := &factoryCalls{}
	hooks := &fakeDispatcher{
		results: []model.HookInvocation{
			{Hook: "a", Arg: "415", Err: model.NewError(model.CategoryHook, model.ErrHookExit, nil)},
			{Hook: "b", Arg: "415"},
		},
		err: errors.New("permission denied"),
	}
	pub := &fakePublisher{err: errors.New("broker down")}
	o := NewOrchestrator(sl.Discard(), calls.factory(&fakeCollector{reading: 415}, nil), hooks, WithPublisher(pub))

	acq, err := o.HandleAcquisitionRequest(context.Background(), serialSource)
	if err != nil {
		t.Fatalf("hook and publish failures must not fail the acquisition: %v", err)
	}
	if acq.Reading != 415 || len(acq.Hooks) != 2 {
		t.Fatalf("unexpected acquisition: %+v", acq)
	}
	if len(pub.envelopes) != 1 || pub.envelopes[0].Value != 415 || pub.envelopes[0].ID != acq.ID {
		t.Fatalf("unexpected published envelopes: %+v", pub.envelopes)
	}
	if _, lastErr := o.Last(); lastErr != nil {
		t.Fatalf("last status should be healthy, got %v", lastErr)
	}
}

func TestHandleUsesContextID(t *testing.T) {
	calls := &factoryCalls{}
	o := NewOrchestrator(sl.Discard(), calls.factory(&fakeCollector{reading: 1}, nil), nil)

	acq, err := o.HandleAcquisitionRequest(ContextWithID(context.Background(), "req-42"), serialSource)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if acq.ID != "req-42" {
		t.Fatalf("id = %q", acq.ID)
	}
}

func TestHandleSerializesRequests(t *testing.T) {
	var active, overlap int32
	o := NewOrchestrator(sl.Discard(), Factory{
		Serial: func(model.SerialSource) Collector {
			return &fakeCollector{reading: 1, delay: 5 * time.Millisecond, active: &active, overlap: &overlap}
		},
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.HandleAcquisitionRequest(context.Background(), serialSource); err != nil {
				t.Errorf("acquire: %v", err)
			}
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&overlap) != 0 {
		t.Fatalf("acquisitions overlapped")
	}
}

func TestHandleRunsHooksAfterCallerCancels(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell hooks are not available on windows")
	}

	dir := t.TempDir()
	marker := filepath.Join(t.TempDir(), "ran")
	script := "#!/bin/sh\necho \"$1\" > " + marker + "\n"
	if err := os.WriteFile(filepath.Join(dir, "record"), []byte(script), 0o755); err != nil {
		t.Fatalf("write hook: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := &fakePublisher{}
	o := NewOrchestrator(sl.Discard(), Factory{
		Serial: func(model.SerialSource) Collector { return &cancellingCollector{cancel: cancel} },
	}, hooks.NewDispatcher(sl.Discard(), dir, 5*time.Second), WithPublisher(pub))

	acq, err := o.HandleAcquisitionRequest(ctx, serialSource)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatalf("collector should have cancelled the request context")
	}

	if len(acq.Hooks) != 1 || !acq.Hooks[0].Succeeded() {
		t.Fatalf("hook did not run cleanly: %+v", acq.Hooks)
	}
	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("hook left no trace: %v", err)
	}
	if strings.TrimSpace(string(data)) != "415" {
		t.Fatalf("hook got %q", data)
	}

	if len(pub.ctxErrs) != 1 || pub.ctxErrs[0] != nil {
		t.Fatalf("publish ran on a cancelled context: %v", pub.ctxErrs)
	}
}

package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/speedwagon-io/co2hook/internal/config"
	"github.com/speedwagon-io/co2hook/internal/lib/logger/sl"
	"github.com/speedwagon-io/co2hook/internal/model"
)

type Dispatcher interface {
	Run(ctx context.Context, reading model.Reading) ([]model.HookInvocation, error)
}

type Publisher interface {
	Publish(ctx context.Context, envelope *model.Envelope) error
}

type Observer interface {
	ObserveAcquisition(source model.Kind, value model.Reading, elapsed time.Duration, err error)
	ObserveHooks(invocations []model.HookInvocation)
}

// Acquisition is the outcome of one successful request.
type Acquisition struct {
	ID      string
	Source  model.Kind
	Reading model.Reading
	Hooks   []model.HookInvocation
	At      time.Time
}

type Option func(*Orchestrator)

func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

type idKey struct{}

// ContextWithID attaches a caller-chosen acquisition ID.
func ContextWithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// IDFromContext returns the acquisition ID attached by ContextWithID.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idKey{}).(string)
	return id, ok && id != ""
}

func idFromContext(ctx context.Context) string {
	if id, ok := IDFromContext(ctx); ok {
		return id
	}
	return uuid.New().String()
}

// Orchestrator turns an acquisition request into a reading and runs the
// hooks for it. Requests are serialized: the physical port supports a single
// session at a time.
type Orchestrator struct {
	log       *slog.Logger
	factory   Factory
	hooks     Dispatcher
	publisher Publisher
	observer  Observer

	mu sync.Mutex

	lastMu  sync.RWMutex
	lastAt  time.Time
	lastErr error
}

func NewOrchestrator(log *slog.Logger, factory Factory, hooks Dispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:     log.With(slog.String("component", "orchestrator")),
		factory: factory,
		hooks:   hooks,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleAcquisitionRequest obtains one reading from the source described by
// src. Hook and publish failures are logged and never turn a successful
// reading into an error.
func (o *Orchestrator) HandleAcquisitionRequest(ctx context.Context, src config.SourceConfig) (*Acquisition, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := idFromContext(ctx)
	log := o.log.With(slog.String("acquisition_id", id), slog.String("kind", src.Kind))

	resolved, err := src.Resolve()
	if err != nil {
		log.Error("invalid source configuration", sl.Err(err))
		o.record(model.Kind(src.Kind), 0, 0, err)
		return nil, err
	}

	coll, err := o.collectorFor(resolved)
	if err != nil {
		log.Error("no collector for source", sl.Err(err))
		o.record(resolved.Kind(), 0, 0, err)
		return nil, err
	}
	defer func() {
		if err := coll.Close(); err != nil {
			log.Warn("failed to close collector", sl.Err(err))
		}
	}()

	start := time.Now()
	reading, err := coll.Collect(ctx)
	elapsed := time.Since(start)
	o.record(resolved.Kind(), reading, elapsed, err)
	if err != nil {
		log.Error("acquisition failed",
			slog.String("category", string(model.CategoryOf(err))),
			slog.Duration("elapsed", elapsed),
			sl.Err(err),
		)
		return nil, err
	}

	log.Info("reading acquired",
		slog.String("collector", coll.Name()),
		slog.Int("value", int(reading)),
		slog.Duration("elapsed", elapsed),
	)

	envelope := model.NewEnvelope(id, resolved.Kind(), reading)
	acq := &Acquisition{
		ID:      envelope.ID,
		Source:  envelope.Source,
		Reading: envelope.Value,
		At:      envelope.Timestamp,
	}

	// The reading exists now; a caller that goes away must not cancel its hooks.
	hookCtx := context.WithoutCancel(ctx)
	acq.Hooks = o.runHooks(hookCtx, log, reading)
	o.publish(hookCtx, log, envelope)

	return acq, nil
}

func (o *Orchestrator) collectorFor(src model.Source) (Collector, error) {
	switch s := src.(type) {
	case model.SerialSource:
		return o.factory.Serial(s), nil
	case model.HTTPGetSource:
		return o.factory.HTTPGet(s), nil
	default:
		return nil, model.NewError(model.CategoryConfig, model.ErrUnknownKind, fmt.Errorf("source %T", src))
	}
}

func (o *Orchestrator) runHooks(ctx context.Context, log *slog.Logger, reading model.Reading) []model.HookInvocation {
	if o.hooks == nil {
		return nil
	}

	invocations, err := o.hooks.Run(ctx, reading)
	if err != nil {
		log.Error("hook dispatch failed", sl.Err(err))
	}
	if o.observer != nil {
		o.observer.ObserveHooks(invocations)
	}

	failed := 0
	for _, inv := range invocations {
		if !inv.Succeeded() {
			failed++
		}
	}
	log.Debug("hooks finished",
		slog.Int("total", len(invocations)),
		slog.Int("failed", failed),
	)

	return invocations
}

func (o *Orchestrator) publish(ctx context.Context, log *slog.Logger, envelope *model.Envelope) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, envelope); err != nil {
		log.Error("failed to publish reading", sl.Err(err))
	}
}

func (o *Orchestrator) record(kind model.Kind, reading model.Reading, elapsed time.Duration, err error) {
	o.lastMu.Lock()
	o.lastAt = time.Now().UTC()
	o.lastErr = err
	o.lastMu.Unlock()

	if o.observer != nil {
		o.observer.ObserveAcquisition(kind, reading, elapsed, err)
	}
}

// Last reports when the previous acquisition finished and how. A zero time
// means nothing has been attempted yet.
func (o *Orchestrator) Last() (time.Time, error) {
	o.lastMu.RLock()
	defer o.lastMu.RUnlock()
	return o.lastAt, o.lastErr
}

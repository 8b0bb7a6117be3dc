package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/speedwagon-io/co2hook/internal/collector/adapters"
	"github.com/speedwagon-io/co2hook/internal/model"
)

// Collector obtains one reading per call from a single source.
type Collector interface {
	Collect(ctx context.Context) (model.Reading, error)
	Name() string
	Close() error
}

var (
	_ Collector = (*adapters.SerialAdapter)(nil)
	_ Collector = (*adapters.HTTPGetAdapter)(nil)
)

// Factory builds the Collector for each Source variant.
type Factory struct {
	Serial  func(src model.SerialSource) Collector
	HTTPGet func(src model.HTTPGetSource) Collector
}

func DefaultFactory(log *slog.Logger, httpTimeout time.Duration) Factory {
	return Factory{
		Serial: func(src model.SerialSource) Collector {
			return adapters.NewSerialAdapter(log, src.Port, nil)
		},
		HTTPGet: func(src model.HTTPGetSource) Collector {
			return adapters.NewHTTPGetAdapter(log, src, httpTimeout)
		},
	}
}

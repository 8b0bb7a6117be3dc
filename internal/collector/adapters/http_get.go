package adapters

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/speedwagon-io/co2hook/internal/extract"
	"github.com/speedwagon-io/co2hook/internal/model"
)

const maxBodySize = 1 << 20

type HTTPGetAdapter struct {
	log           *slog.Logger
	url           string
	authorization string
	key           string
	client        *http.Client
}

func NewHTTPGetAdapter(log *slog.Logger, src model.HTTPGetSource, timeout time.Duration) *HTTPGetAdapter {
	return &HTTPGetAdapter{
		log:           log.With(slog.String("adapter", "http-get")),
		url:           src.URL,
		authorization: src.Authorization,
		key:           src.Key,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (a *HTTPGetAdapter) Name() string {
	return string(model.KindHTTPGet)
}

func (a *HTTPGetAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

func (a *HTTPGetAdapter) Collect(ctx context.Context) (model.Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return 0, model.NewError(model.CategoryNetwork, model.ErrRequest, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", a.authorization)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, model.NewError(model.CategoryNetwork, model.ErrRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return 0, model.NewError(model.CategoryNetwork, model.ErrStatus, fmt.Errorf("status code %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, model.NewError(model.CategoryNetwork, model.ErrRequest, fmt.Errorf("failed to read response body: %w", err))
	}

	a.log.Debug("response received",
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
	)

	return extract.Reading(body, a.key)
}

package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"github.com/speedwagon-io/co2hook/internal/lib/logger/sl"
	"github.com/speedwagon-io/co2hook/internal/model"
	"github.com/speedwagon-io/co2hook/internal/protocol"
)

var errNoData = errors.New("timed out waiting for response")

// Opener opens the named serial device. Tests substitute an in-memory port.
type Opener func(name string) (io.ReadWriteCloser, error)

type SerialAdapter struct {
	log    *slog.Logger
	port   string
	open   Opener
	settle time.Duration
}

// NewSerialAdapter returns an adapter for port. A nil open uses OpenSerial.
func NewSerialAdapter(log *slog.Logger, port string, open Opener) *SerialAdapter {
	if open == nil {
		open = OpenSerial
	}
	return &SerialAdapter{
		log:    log.With(slog.String("adapter", "serial"), slog.String("port", port)),
		port:   port,
		open:   open,
		settle: protocol.SettleDelay,
	}
}

// OpenSerial opens name at 9600 8N1 with a timed, non-blocking read.
func OpenSerial(name string) (io.ReadWriteCloser, error) {
	return serial.Open(serial.OpenOptions{
		PortName:              name,
		BaudRate:              protocol.BaudRate,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: interCharacterTimeout(protocol.ReadTimeout),
	})
}

// interCharacterTimeout converts d to the millisecond value go-serial expects.
// termios counts in tenths of a second, so anything shorter is rounded up.
func interCharacterTimeout(d time.Duration) uint {
	ms := uint(d / time.Millisecond)
	return (ms + 99) / 100 * 100
}

func (a *SerialAdapter) Name() string {
	return string(model.KindSerial)
}

func (a *SerialAdapter) Close() error {
	return nil
}

// Collect runs one request/response exchange. The port is opened and closed
// within the call.
func (a *SerialAdapter) Collect(ctx context.Context) (model.Reading, error) {
	port, err := a.open(a.port)
	if err != nil {
		return 0, model.NewError(model.CategoryPort, model.ErrPortOpen, err)
	}
	defer func() {
		if err := port.Close(); err != nil {
			a.log.Warn("failed to close port", sl.Err(err))
		}
	}()

	if err := flush(port); err != nil {
		return 0, model.NewError(model.CategoryPort, model.ErrPortWrite, fmt.Errorf("flush: %w", err))
	}

	req := protocol.BuildRequest()
	n, err := port.Write(req)
	if err != nil {
		return 0, model.NewError(model.CategoryPort, model.ErrPortWrite, err)
	}
	if n != len(req) {
		return 0, model.NewError(model.CategoryPort, model.ErrPortWrite, fmt.Errorf("wrote %d of %d bytes", n, len(req)))
	}

	timer := time.NewTimer(a.settle)
	select {
	case <-ctx.Done():
		timer.Stop()
		return 0, model.NewError(model.CategoryPort, model.ErrPortRead, ctx.Err())
	case <-timer.C:
	}

	frame, err := readFrame(port)
	if err != nil && len(frame) == 0 {
		return 0, model.NewError(model.CategoryPort, model.ErrPortRead, err)
	}
	if err != nil {
		a.log.Debug("partial response frame",
			slog.Int("bytes", len(frame)),
			sl.Err(err),
		)
	}

	return protocol.DecodeResponse(frame)
}

// readFrame reads up to one response frame. A read that returns no data is
// treated as the inter-character timeout expiring.
func readFrame(r io.Reader) ([]byte, error) {
	buf := make([]byte, protocol.FrameSize)
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errNoData
			}
			return buf[:n], err
		}
		if m == 0 {
			return buf[:n], errNoData
		}
	}
	return buf, nil
}

type flusher interface {
	Flush() error
}

func flush(port io.ReadWriteCloser) error {
	if f, ok := port.(flusher); ok {
		return f.Flush()
	}
	return discardBuffers(port)
}

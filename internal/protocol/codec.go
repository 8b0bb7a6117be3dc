// Package protocol implements the fixed request/response frames spoken by the
// CO2 sensor over its serial line.
package protocol

import (
	"fmt"
	"time"

	"github.com/speedwagon-io/co2hook/internal/model"
)

const (
	FrameSize = 7

	BaudRate    = 9600
	ReadTimeout = 10 * time.Millisecond
	// SettleDelay is how long the device needs between receiving a request
	// and having its response ready.
	SettleDelay = 100 * time.Millisecond
)

var requestFrame = [FrameSize]byte{0xFE, 0x44, 0x00, 0x08, 0x02, 0x9F, 0x25}

// BuildRequest returns a fresh copy of the read-CO2 command frame.
func BuildRequest() []byte {
	frame := requestFrame
	return frame[:]
}

// DecodeResponse extracts the reading from a response frame. Only the length
// is checked; header, trailer and checksum bytes are not validated.
func DecodeResponse(frame []byte) (model.Reading, error) {
	if len(frame) < FrameSize {
		return 0, model.NewError(model.CategoryFraming, model.ErrShortFrame,
			fmt.Errorf("got %d of %d bytes", len(frame), FrameSize))
	}
	return model.Reading(uint16(frame[3])<<8 | uint16(frame[4])), nil
}

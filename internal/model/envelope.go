package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Reading is a raw CO2 level as reported by the sensor. No unit conversion is applied.
type Reading uint16

func (r Reading) String() string {
	return strconv.FormatUint(uint64(r), 10)
}

// Envelope describes one successful acquisition for outbound consumers
// (HTTP callers, MQTT subscribers).
type Envelope struct {
	ID        string    `json:"id"`
	Source    Kind      `json:"source"`
	Value     Reading   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEnvelope(id string, source Kind, value Reading) *Envelope {
	return &Envelope{
		ID:        id,
		Source:    source,
		Value:     value,
		Timestamp: time.Now().UTC(),
	}
}

func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

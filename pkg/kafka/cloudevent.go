package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CloudEvent is a minimal CloudEvents 1.0 envelope used on all topics.
type CloudEvent struct {
	SpecVersion string          `json:"specversion"`
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Type        string          `json:"type"`
	Time        time.Time       `json:"time"`
	Data        json.RawMessage `json:"data"`
}

// NewCloudEvent wraps the given payload in a CloudEvent envelope.
func NewCloudEvent(source, eventType string, data interface{}) (CloudEvent, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return CloudEvent{}, fmt.Errorf("failed to marshal event data: %w", err)
	}

	return CloudEvent{
		SpecVersion: "1.0",
		ID:          uuid.New().String(),
		Source:      source,
		Type:        eventType,
		Time:        time.Now().UTC(),
		Data:        payload,
	}, nil
}

// ParseCloudEvent decodes a CloudEvent from raw message bytes.
func ParseCloudEvent(raw []byte) (CloudEvent, error) {
	var event CloudEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return CloudEvent{}, fmt.Errorf("failed to parse cloud event: %w", err)
	}
	return event, nil
}

// ParseData unmarshals the event payload into out.
func (e CloudEvent) ParseData(out interface{}) error {
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("failed to parse event data: %w", err)
	}
	return nil
}

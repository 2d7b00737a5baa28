package job

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message is the queue payload that describes one job. StorageKey and
// RequestedSizes are only present for process_file jobs.
type Message struct {
	JobID          string `json:"jobId"`
	Type           Type   `json:"type"`
	FileID         string `json:"fileId"`
	UserID         string `json:"userId"`
	StorageKey     string `json:"storageKey,omitempty"`
	RequestedSizes []int  `json:"requestedSizes,omitempty"`
}

var errMalformedMessage = errors.New("malformed job message")

// DecodeMessage parses and validates a raw queue message body.
func DecodeMessage(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Validate checks the fields required for the message's job type.
func (m *Message) Validate() error {
	if m.JobID == "" {
		return fmt.Errorf("%w: missing jobId", errMalformedMessage)
	}
	if m.FileID == "" {
		return fmt.Errorf("%w: missing fileId", errMalformedMessage)
	}
	if m.UserID == "" {
		return fmt.Errorf("%w: missing userId", errMalformedMessage)
	}
	switch m.Type {
	case TypeProcessFile:
		if m.StorageKey == "" {
			return fmt.Errorf("%w: process_file requires storageKey", errMalformedMessage)
		}
		if len(m.RequestedSizes) == 0 {
			return fmt.Errorf("%w: process_file requires requestedSizes", errMalformedMessage)
		}
		for _, size := range m.RequestedSizes {
			if size <= 0 {
				return fmt.Errorf("%w: requested size %d is not positive", errMalformedMessage, size)
			}
		}
	case TypeDeleteFile:
		// fileId and userId are enough
	default:
		return fmt.Errorf("%w: unknown job type %q", errMalformedMessage, m.Type)
	}
	return nil
}

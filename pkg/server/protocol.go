package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"dosecast/pkg/session"
)

// ErrUnknownMessage is returned for a message type the session does not
// understand
var ErrUnknownMessage = errors.New("unknown message type")

// Message is one JSON input event sent by a client
type Message struct {
	// Type is key, motion, wheel, resize, centre or compact
	Type string `json:"type"`

	// Key and Down describe a key event; Key is a KeyboardEvent.key name
	Key  string `json:"key,omitempty"`
	Down bool   `json:"down,omitempty"`

	// DX and DY are a mouse drag in pixels
	DX int `json:"dx,omitempty"`
	DY int `json:"dy,omitempty"`

	// Delta is the wheel step in degrees of field of view
	Delta float64 `json:"delta,omitempty"`

	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// Threshold overrides the configured compaction threshold
	Threshold *float64 `json:"threshold,omitempty"`
}

// ParseMessage decodes a client message
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("invalid message: %w", err)
	}
	return msg, nil
}

// Apply feeds msg into the session. Keys without a binding are ignored.
func Apply(sess *session.Session, msg Message) error {
	switch msg.Type {
	case "key":
		if k, ok := session.ParseKey(msg.Key); ok {
			sess.SetKey(k, msg.Down)
		}
		return nil
	case "motion":
		sess.Motion(msg.DX, msg.DY)
		return nil
	case "wheel":
		return sess.Wheel(msg.Delta)
	case "resize":
		return sess.Resize(msg.Width, msg.Height)
	case "centre", "center":
		sess.Centre()
		return nil
	case "compact":
		threshold := -1.0
		if msg.Threshold != nil {
			threshold = *msg.Threshold
		}
		return sess.Compact(threshold)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

package types

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrMissingAction is returned when a request names no action
var ErrMissingAction = errors.New("request is missing an action")

// CallActionRequest asks a remote's worker to run one action.
// A nil Args means the action was invoked without arguments.
type CallActionRequest struct {
	Action ActionID `json:"action"`
	Args   []any    `json:"args"`
}

// OutboundEvent is an update published by script code via server.update
type OutboundEvent struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args"`
}

// MessageType tags a ServerMessage
type MessageType string

const (
	MessageUpdate MessageType = "update"
	MessageError  MessageType = "error"
)

// ServerMessage is the envelope a transport pushes to its clients
type ServerMessage struct {
	Type    MessageType     `json:"type"`
	Remote  RemoteID        `json:"remote"`
	Events  []OutboundEvent `json:"events,omitempty"`
	Message string          `json:"message,omitempty"`
}

// NewUpdateMessage wraps outbound events for a remote
func NewUpdateMessage(remote RemoteID, events ...OutboundEvent) ServerMessage {
	return ServerMessage{Type: MessageUpdate, Remote: remote, Events: events}
}

// NewErrorMessage reports a failure for a remote
func NewErrorMessage(remote RemoteID, err error) ServerMessage {
	return ServerMessage{Type: MessageError, Remote: remote, Message: err.Error()}
}

// DecodeCallActionRequest parses the wire form of a request
func DecodeCallActionRequest(data []byte) (CallActionRequest, error) {
	var req CallActionRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		return CallActionRequest{}, fmt.Errorf("failed to decode call request: %w", err)
	}
	if req.Action == "" {
		return CallActionRequest{}, ErrMissingAction
	}
	return req, nil
}

// Encode returns the wire form of the request
func (r CallActionRequest) Encode() ([]byte, error) {
	return sonic.Marshal(r)
}

// Encode returns the wire form of the event
func (e OutboundEvent) Encode() ([]byte, error) {
	if e.Args == nil {
		e.Args = map[string]any{}
	}
	return sonic.Marshal(e)
}

// Encode returns the wire form of the message
func (m ServerMessage) Encode() ([]byte, error) {
	return sonic.Marshal(m)
}

package host

import (
	"encoding/json"
	"fmt"

	"github.com/hkcm91/stickernest-runtime/bus"
	"github.com/hkcm91/stickernest-runtime/store"
)

// MessageType names one sandbox wire message.
type MessageType string

// Sandbox protocol message types. The widget side sends hello, output, emit,
// setState, replaceState and log; the host side sends mounted, input, event,
// stateChanged and destroy.
const (
	MsgHello        MessageType = "hello"
	MsgMounted      MessageType = "mounted"
	MsgInput        MessageType = "input"
	MsgOutput       MessageType = "output"
	MsgEmit         MessageType = "emit"
	MsgEvent        MessageType = "event"
	MsgSetState     MessageType = "setState"
	MsgReplaceState MessageType = "replaceState"
	MsgStateChanged MessageType = "stateChanged"
	MsgDestroy      MessageType = "destroy"
	MsgLog          MessageType = "log"
	MsgError        MessageType = "error"
)

// Message is the JSON envelope exchanged with a sandboxed widget over its
// session. Fields are populated per message type; unused fields are omitted.
type Message struct {
	Type     MessageType     `json:"type"`
	WidgetID string          `json:"widgetId,omitempty"`
	Port     string          `json:"port,omitempty"`
	Event    string          `json:"event,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	State    store.State     `json:"state,omitempty"`
	Envelope *bus.Envelope   `json:"envelope,omitempty"`
	Level    string          `json:"level,omitempty"`
	Text     string          `json:"text,omitempty"`
}

// decodePayload unmarshals the raw payload into a generic value. A missing
// payload decodes to nil.
func (m *Message) decodePayload() (any, error) {
	if len(m.Payload) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(m.Payload, &v); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return v, nil
}

// encodePayload marshals a value into the raw payload slot.
func encodePayload(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

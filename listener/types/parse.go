package types

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ParseMessage decodes a JSON message. Numeric or boolean "type" and "meta.id" values
// are coerced to strings; any other top-level fields are dropped.
func ParseMessage(data []byte) (*Message, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	return MessageFromMap(raw)
}

// MessageFromMap converts a loosely typed map into a Message.
func MessageFromMap(raw map[string]any) (*Message, error) {
	if raw == nil {
		return nil, fmt.Errorf("parse message: empty message")
	}

	typ, err := cast.ToStringE(raw["type"])
	if err != nil {
		return nil, fmt.Errorf("parse message: type: %w", err)
	}
	if typ == "" {
		return nil, fmt.Errorf("parse message: type is required")
	}

	msg := &Message{Type: typ, Payload: raw["payload"]}
	if m, ok := raw["meta"]; ok && m != nil {
		meta, err := cast.ToStringMapE(m)
		if err != nil {
			return nil, fmt.Errorf("parse message: meta: %w", err)
		}
		id, err := cast.ToStringE(meta["id"])
		if err != nil {
			return nil, fmt.Errorf("parse message: meta.id: %w", err)
		}
		msg.Meta = &Meta{ID: id}
	}
	return msg, nil
}

// Map is the inverse of MessageFromMap, used as the environment of definition expressions.
func (msg *Message) Map() map[string]any {
	meta := map[string]any{"id": msg.MetaID()}
	return map[string]any{
		"type":    msg.Type,
		"payload": msg.Payload,
		"meta":    meta,
	}
}

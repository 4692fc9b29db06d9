package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

type CallbackType string

const (
	ReceivedCallback      CallbackType = "ReceivedCallback"
	MessageStatusCallback CallbackType = "MessageStatusCallback"
	PresenceChatCallback  CallbackType = "PresenceChatCallback"
	ConnectedCallback     CallbackType = "ConnectedCallback"
	DisconnectedCallback  CallbackType = "DisconnectedCallback"
)

// Envelope is the discriminated webhook body. Scalar fields are decoded
// leniently; message sub-objects stay raw until the normalizer reads them.
type Envelope struct {
	Type         CallbackType
	InstanceID   string
	MessageID    string
	Phone        string
	FromMe       bool
	Moment       int64
	Status       string
	IDs          []string
	SenderName   string
	ChatName     string
	SenderPhoto  string
	Photo        string
	IsGroup      bool
	IsNewsletter bool
	Broadcast    bool
	Connected    bool
	Error        string

	Raw map[string]json.RawMessage
}

// Parse decodes a webhook body. Only a body that is not a JSON object, or an
// object without a type, is rejected.
func Parse(body []byte) (*Envelope, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, Malformed("body is not a JSON object")
	}
	if raw == nil {
		return nil, Malformed("body is null")
	}

	env := &Envelope{
		Type:         CallbackType(String(raw, "type")),
		InstanceID:   String(raw, "instanceId"),
		MessageID:    String(raw, "messageId"),
		Phone:        String(raw, "phone"),
		FromMe:       Bool(raw, "fromMe"),
		Moment:       Int(raw, "momment"),
		Status:       String(raw, "status"),
		IDs:          Strings(raw, "ids"),
		SenderName:   String(raw, "senderName"),
		ChatName:     String(raw, "chatName"),
		SenderPhoto:  String(raw, "senderPhoto"),
		Photo:        String(raw, "photo"),
		IsGroup:      Bool(raw, "isGroup"),
		IsNewsletter: Bool(raw, "isNewsletter"),
		Broadcast:    Bool(raw, "broadcast"),
		Connected:    Bool(raw, "connected"),
		Error:        String(raw, "error"),
		Raw:          raw,
	}
	if env.Moment == 0 {
		env.Moment = Int(raw, "moment")
	}
	if env.Type == "" {
		return nil, Malformed("missing type")
	}
	return env, nil
}

// Validate checks the fields each known callback type needs.
func (e *Envelope) Validate() error {
	switch e.Type {
	case ReceivedCallback:
		if e.Phone == "" {
			return Malformed("ReceivedCallback without phone")
		}
	case ConnectedCallback, DisconnectedCallback:
		if e.InstanceID == "" {
			return Malformed(string(e.Type) + " without instanceId")
		}
	}
	return nil
}

// Known reports whether the callback type is one the pipeline handles.
func (e *Envelope) Known() bool {
	switch e.Type {
	case ReceivedCallback, MessageStatusCallback, PresenceChatCallback, ConnectedCallback, DisconnectedCallback:
		return true
	}
	return false
}

// Avatar returns the best profile picture URL carried by the callback.
func (e *Envelope) Avatar() string {
	if e.SenderPhoto != "" {
		return e.SenderPhoto
	}
	return e.Photo
}

// Object decodes raw[key] into out when it holds a JSON object.
func Object(raw map[string]json.RawMessage, key string, out any) bool {
	v, ok := raw[key]
	if !ok {
		return false
	}
	trimmed := strings.TrimSpace(string(v))
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	return json.Unmarshal(v, out) == nil
}

// String reads a string or number field; anything else yields "".
func String(raw map[string]json.RawMessage, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(v, &n) == nil {
		return n.String()
	}
	return ""
}

func Bool(raw map[string]json.RawMessage, key string) bool {
	v, ok := raw[key]
	if !ok {
		return false
	}
	var b bool
	if json.Unmarshal(v, &b) == nil {
		return b
	}
	s := String(raw, key)
	parsed, _ := strconv.ParseBool(s)
	return parsed
}

func Int(raw map[string]json.RawMessage, key string) int64 {
	v, ok := raw[key]
	if !ok {
		return 0
	}
	var n int64
	if json.Unmarshal(v, &n) == nil {
		return n
	}
	var f float64
	if json.Unmarshal(v, &f) == nil {
		return int64(f)
	}
	parsed, _ := strconv.ParseInt(String(raw, key), 10, 64)
	return parsed
}

func Strings(raw map[string]json.RawMessage, key string) []string {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	var out []string
	if json.Unmarshal(v, &out) == nil {
		return out
	}
	if s := String(raw, key); s != "" {
		return []string{s}
	}
	return nil
}

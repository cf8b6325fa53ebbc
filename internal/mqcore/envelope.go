package mqcore

import (
	"encoding/json"
	"fmt"
)

// Envelope 用于不支持消息头的队列（如 lmstfy），把头部与负载一起序列化。
type Envelope struct {
	Headers map[string]string `json:"h,omitempty"`
	Key     string            `json:"k,omitempty"`
	Payload []byte            `json:"p"`
}

// EncodeEnvelope 序列化信封。
func EncodeEnvelope(e Envelope) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	return b, nil
}

// DecodeEnvelope 反序列化信封。
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	return e, nil
}

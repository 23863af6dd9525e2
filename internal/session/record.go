package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorruptRecord 保存的会话记录不是合法的 JSON（例如写了一半）
var ErrCorruptRecord = errors.New("corrupt session record")

// record 持久化格式
type record struct {
	Marker  string   `json:"marker"`
	Cookies []Cookie `json:"cookies,omitempty"`
}

func encodeRecord(codec *MarkerCodec, s *Session) ([]byte, error) {
	marker, err := codec.Encode(s.Username())
	if err != nil {
		return nil, fmt.Errorf("failed to sign session marker: %w", err)
	}
	return json.Marshal(record{Marker: marker, Cookies: s.Cookies()})
}

func decodeRecord(codec *MarkerCodec, data []byte) (*Session, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	username, err := codec.Decode(rec.Marker)
	if err != nil {
		return nil, err
	}
	return New(username, rec.Cookies), nil
}

package snapshot

import (
	"encoding/json"
	"time"
)

// Snapshot holds a session's persistent values, keyed by application-chosen
// names. Values stay as raw JSON until the application asks for them, so a
// snapshot round-trips unknown keys untouched.
type Snapshot struct {
	SessionID string                     `json:"session_id"`
	SavedAt   time.Time                  `json:"saved_at"`
	Values    map[string]json.RawMessage `json:"values,omitempty"`
}

// New creates an empty snapshot for the given session.
func New(sessionID string) *Snapshot {
	return &Snapshot{
		SessionID: sessionID,
		Values:    make(map[string]json.RawMessage),
	}
}

// Set marshals v under key.
func (s *Snapshot) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if s.Values == nil {
		s.Values = make(map[string]json.RawMessage)
	}
	s.Values[key] = data
	return nil
}

// Get unmarshals the value under key into out. The boolean reports whether
// the key was present.
func (s *Snapshot) Get(key string, out any) (bool, error) {
	raw, ok := s.Values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

// Encode serializes the snapshot for storage.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Decode deserializes a stored snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

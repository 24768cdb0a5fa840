package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/normanking/zira/internal/llm"
)

// SnapshotVersion is the current encoding version.
const SnapshotVersion = 1

// Snapshot is the persisted form of a session.
type Snapshot struct {
	Version     int           `json:"version"`
	ID          string        `json:"id"`
	Messages    []llm.Message `json:"messages"`
	LastOutcome Outcome       `json:"last_outcome,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Encode serializes a snapshot. Roles, content, tool-call ids and names are
// kept in order, so Decode(Encode(s)) equals s.
func Encode(s *Snapshot) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("encode snapshot: nil snapshot")
	}
	out := *s
	if out.Version == 0 {
		out.Version = SnapshotVersion
	}
	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", s.ID, err)
	}
	return data, nil
}

// Decode parses data produced by Encode.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version > SnapshotVersion {
		return nil, fmt.Errorf("decode snapshot: unsupported version %d", s.Version)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("decode snapshot: missing session id")
	}
	return &s, nil
}

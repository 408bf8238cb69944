package persist

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tbxark/intakeagent/types"
)

const FormatVersion = 1

type envelope struct {
	Version  int                      `json:"version"`
	SavedAt  time.Time                `json:"saved_at"`
	Sessions []types.PersistedSession `json:"sessions"`
}

// Encode renders sessions as the versioned JSON envelope.
func Encode(sessions []types.PersistedSession, now time.Time) ([]byte, error) {
	if sessions == nil {
		sessions = []types.PersistedSession{}
	}
	data, err := sonic.ConfigStd.Marshal(envelope{
		Version:  FormatVersion,
		SavedAt:  now.UTC(),
		Sessions: sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal sessions: %w", err)
	}
	return data, nil
}

func Decode(data []byte) ([]types.PersistedSession, error) {
	var env envelope
	if err := sonic.ConfigStd.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal sessions: %w", err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported sessions format version %d", env.Version)
	}
	return env.Sessions, nil
}

func encodeSession(ps types.PersistedSession) ([]byte, error) {
	data, err := sonic.ConfigStd.Marshal(ps)
	if err != nil {
		return nil, fmt.Errorf("marshal session %s: %w", ps.SessionID, err)
	}
	return data, nil
}

func decodeSession(data []byte) (types.PersistedSession, error) {
	var ps types.PersistedSession
	if err := sonic.ConfigStd.Unmarshal(data, &ps); err != nil {
		return ps, fmt.Errorf("unmarshal session: %w", err)
	}
	return ps, nil
}

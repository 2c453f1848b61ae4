package service

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Keys of the two independently persisted records.
const (
	PortfolioStateKey   = "portfolio"
	BookkeepingStateKey = "token-update-bookkeeping"
)

const stateVersion = 0

// persistedState is the envelope every record is stored in.
type persistedState struct {
	State   jsoniter.RawMessage `json:"state"`
	Version int                 `json:"version"`
}

func encodeState(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return json.Marshal(persistedState{State: raw, Version: stateVersion})
}

func decodeState(data []byte, v any) error {
	var envelope persistedState
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("unmarshal state envelope: %w", err)
	}
	if len(envelope.State) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.State, v); err != nil {
		return fmt.Errorf("unmarshal state (version %d): %w", envelope.Version, err)
	}
	return nil
}

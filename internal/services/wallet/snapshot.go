package wallet

import (
	"encoding/json"
	"fmt"

	"github.com/mcoot/tabletop-bank/internal/model"
)

const snapshotVersion = 1

type snapshot struct {
	Version int                `json:"version"`
	State   *model.WalletState `json:"state"`
}

// MarshalState serializes the device state for storage
func MarshalState(state *model.WalletState) ([]byte, error) {
	data, err := json.Marshal(snapshot{Version: snapshotVersion, State: state})
	if err != nil {
		return nil, fmt.Errorf("marshal wallet: %w", err)
	}
	return data, nil
}

// UnmarshalState restores device state written by MarshalState
func UnmarshalState(data []byte) (*model.WalletState, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal wallet: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported wallet snapshot version %d", snap.Version)
	}
	if snap.State == nil {
		return nil, fmt.Errorf("wallet snapshot has no state")
	}

	state := snap.State
	if state.CurrentSeq < 1 {
		state.CurrentSeq = 1
	}
	if state.History == nil {
		state.History = []model.WalletEntry{}
	}
	return state, nil
}

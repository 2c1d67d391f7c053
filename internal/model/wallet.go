package model

import "time"

// WalletEntryKind identifies the kind of a wallet history entry
type WalletEntryKind string

const (
	WalletEntryTransact WalletEntryKind = "transact"
	WalletEntryUndo     WalletEntryKind = "undo"
)

// WalletEntry is the player device's mirror of one committed payload
type WalletEntry struct {
	Seq       int64           `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      WalletEntryKind `json:"kind"`
	Amount    int64           `json:"amount,omitempty"`
	TargetSeq int64           `json:"target_seq,omitempty"`
	IsUndone  bool            `json:"is_undone,omitempty"`
}

// WalletState is the complete persisted state of a player device.
// History is ordered newest first.
type WalletState struct {
	Profile    *PlayerProfile `json:"profile,omitempty"`
	CurrentSeq int64          `json:"current_seq"`
	History    []WalletEntry  `json:"history"`
}

// NewWalletState returns an unregistered device state
func NewWalletState() *WalletState {
	return &WalletState{CurrentSeq: 1, History: []WalletEntry{}}
}

// Clone returns a deep copy of the state
func (s *WalletState) Clone() *WalletState {
	c := &WalletState{
		CurrentSeq: s.CurrentSeq,
		History:    make([]WalletEntry, len(s.History)),
	}
	copy(c.History, s.History)
	if s.Profile != nil {
		p := *s.Profile
		c.Profile = &p
	}
	return c
}

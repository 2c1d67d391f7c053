package wallet

import (
	"slices"

	"golang.org/x/text/unicode/norm"

	"github.com/mcoot/tabletop-bank/internal/dependencies/clock"
	"github.com/mcoot/tabletop-bank/internal/dependencies/idgen"
	"github.com/mcoot/tabletop-bank/internal/model"
)

// Sequencer issues sequence numbers for a player device and mirrors every
// committed payload in a local history. Sequence numbers are consumed when
// reserved, so a rolled back reservation leaves a gap and is never reissued.
// A Sequencer is not safe for concurrent use; Service serializes access.
type Sequencer struct {
	state *model.WalletState
	clock clock.Clock
	ids   idgen.Generator

	// epoch changes whenever the state is replaced wholesale, which
	// invalidates reservations taken before the change
	epoch int
}

// NewSequencer creates a sequencer operating on state
func NewSequencer(state *model.WalletState, clk clock.Clock, ids idgen.Generator) *Sequencer {
	return &Sequencer{state: state, clock: clk, ids: ids}
}

// Profile returns the device profile, if registered
func (s *Sequencer) Profile() (model.PlayerProfile, bool) {
	if s.state.Profile == nil {
		return model.PlayerProfile{}, false
	}
	return *s.state.Profile, true
}

// CurrentSeq returns the next sequence number that will be reserved
func (s *Sequencer) CurrentSeq() int64 {
	return s.state.CurrentSeq
}

// History returns a copy of the local history, newest first
func (s *Sequencer) History() []model.WalletEntry {
	return slices.Clone(s.state.History)
}

// Register sets the profile, restarts sequencing at 1 and clears the history.
// The player id is generated on first registration only.
func (s *Sequencer) Register(name, color string, initialBalance int64) model.PlayerProfile {
	id := model.PlayerID("")
	if s.state.Profile != nil {
		id = s.state.Profile.ID
	}
	if id == "" {
		id = s.ids.NewPlayerID()
	}

	profile := model.PlayerProfile{
		ID:             id,
		Name:           norm.NFC.String(name),
		Color:          color,
		InitialBalance: initialBalance,
	}
	s.state.Profile = &profile
	s.state.CurrentSeq = 1
	s.state.History = []model.WalletEntry{}
	s.epoch++
	return profile
}

// RegisterPayload renders the profile for the bank to scan
func (s *Sequencer) RegisterPayload() (model.RegisterPayload, error) {
	p, ok := s.Profile()
	if !ok {
		return model.RegisterPayload{}, model.ErrNotRegistered
	}
	return model.RegisterPayload{UUID: p.ID, Name: p.Name, Color: p.Color, Balance: p.InitialBalance}, nil
}

// BeginTransaction reserves a sequence number for a transfer of amount
// (positive to receive, negative to pay)
func (s *Sequencer) BeginTransaction(amount int64) (*Reservation, error) {
	p, ok := s.Profile()
	if !ok {
		return nil, model.ErrNotRegistered
	}
	if !model.ValidAmount(amount) {
		return nil, model.ErrAmountOutOfRange
	}

	seq := s.reserve()
	return &Reservation{
		Seq:     seq,
		Payload: model.TransactPayload{UUID: p.ID, Amount: amount, Seq: seq},
		owner:   s,
		epoch:   s.epoch,
		entry:   model.WalletEntry{Seq: seq, Kind: model.WalletEntryTransact, Amount: amount},
	}, nil
}

// BeginUndo reserves a sequence number for reversing the transaction at targetSeq
func (s *Sequencer) BeginUndo(targetSeq int64) (*Reservation, error) {
	p, ok := s.Profile()
	if !ok {
		return nil, model.ErrNotRegistered
	}
	if targetSeq < 1 || targetSeq >= s.state.CurrentSeq {
		return nil, model.ErrInvalidUndoTarget
	}

	seq := s.reserve()
	return &Reservation{
		Seq:     seq,
		Payload: model.UndoPayload{UUID: p.ID, TargetSeq: targetSeq, Seq: seq},
		owner:   s,
		epoch:   s.epoch,
		entry:   model.WalletEntry{Seq: seq, Kind: model.WalletEntryUndo, TargetSeq: targetSeq},
	}, nil
}

// Replace swaps in a whole new state, as produced by recovery
func (s *Sequencer) Replace(state *model.WalletState) {
	*s.state = *state.Clone()
	s.epoch++
}

// Reset wipes the device back to unregistered
func (s *Sequencer) Reset() {
	*s.state = *model.NewWalletState()
	s.epoch++
}

// checkpoint captures the state so a failed save can be undone with restore
func (s *Sequencer) checkpoint() checkpoint {
	return checkpoint{state: s.state.Clone(), epoch: s.epoch}
}

func (s *Sequencer) restore(c checkpoint) {
	*s.state = *c.state
	s.epoch = c.epoch
}

type checkpoint struct {
	state *model.WalletState
	epoch int
}

func (s *Sequencer) reserve() int64 {
	seq := s.state.CurrentSeq
	s.state.CurrentSeq++
	return seq
}

func (s *Sequencer) commit(entry model.WalletEntry) {
	entry.Timestamp = s.clock.Now()
	s.state.History = slices.Insert(s.state.History, 0, entry)

	if entry.Kind != model.WalletEntryUndo {
		return
	}
	for i := range s.state.History {
		e := &s.state.History[i]
		if e.Kind == model.WalletEntryTransact && e.Seq == entry.TargetSeq {
			e.IsUndone = true
		}
	}
}

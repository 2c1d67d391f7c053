package wallet

import (
	"github.com/mcoot/tabletop-bank/internal/model"
)

// Reservation is a sequence number handed out for a payload the player is
// about to show the bank. Exactly one of Commit or Rollback takes effect; any
// later call is a no-op.
type Reservation struct {
	Seq     int64
	Payload model.Payload

	owner     *Sequencer
	epoch     int
	entry     model.WalletEntry
	settled   bool
	committed bool
}

// Commit records the payload in the local history. It returns false when the
// reservation was already settled or the device was re-registered, recovered
// or reset since the reservation was taken.
func (r *Reservation) Commit() bool {
	if r.settled {
		return false
	}
	r.settled = true
	if r.Stale() {
		return false
	}
	r.owner.commit(r.entry)
	r.committed = true
	return true
}

// Rollback abandons the reservation. The sequence number stays consumed.
func (r *Reservation) Rollback() bool {
	if r.settled {
		return false
	}
	r.settled = true
	return true
}

// Settled reports whether Commit or Rollback has been called
func (r *Reservation) Settled() bool {
	return r.settled
}

// Stale reports whether the device was re-registered, recovered or reset
// after the reservation was taken
func (r *Reservation) Stale() bool {
	return r.epoch != r.owner.epoch
}

// Committed reports whether the reservation was committed
func (r *Reservation) Committed() bool {
	return r.committed
}

// Kind returns the wallet entry kind this reservation will record
func (r *Reservation) Kind() model.WalletEntryKind {
	return r.entry.Kind
}

// reopen returns a committed reservation to the pending state after the
// caller failed to persist the commit
func (r *Reservation) reopen() {
	r.settled = false
	r.committed = false
}

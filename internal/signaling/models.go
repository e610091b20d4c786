package signaling

import "time"

// Signal is one unit in a session's append-only signaling log. It is the only
// shared state between the two call clients: offers, answers, connectivity
// candidates and end markers all travel as signals.
//
// Invariants:
// - Signals are never updated. Deletion happens only in bulk via Clear.
// - ID is assigned by the store and is monotonically increasing within a
//   session; consumers order by it. CreatedAt is informational only.
// - Payload is opaque to the relay; only the peer layer interprets it.

type Signal struct {
	ID        int64      `json:"id" db:"id"`
	SessionID int64      `json:"session_id" db:"session_id"`
	SenderID  int64      `json:"sender_id" db:"sender_id"`
	Type      SignalType `json:"signal_type" db:"signal_type"`
	Payload   string     `json:"signal_data" db:"signal_data"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

type SignalType string

const (
	SignalTypeOffer  SignalType = "offer"
	SignalTypeAnswer SignalType = "answer"
	SignalTypeICE    SignalType = "ice"
	SignalTypeEnd    SignalType = "end"
)

// Valid reports whether t is one of the four wire types.
func (t SignalType) Valid() bool {
	switch t {
	case SignalTypeOffer, SignalTypeAnswer, SignalTypeICE, SignalTypeEnd:
		return true
	default:
		return false
	}
}

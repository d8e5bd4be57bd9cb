// Package store persists outbound message records. The dispatcher writes a
// record when a unit is first submitted and updates the same record as the
// unit moves through its lifecycle.
package store

import (
	"context"
	"time"
)

// Handle identifies a persisted record. HandleNone means the record has not
// been written yet.
type Handle int64

const HandleNone Handle = 0

// State is the persisted lifecycle state of a logical message.
type State string

const (
	StateSending State = "sending"
	StateSent    State = "sent"
	StateFailed  State = "failed"
)

// Record is one logical outbound message. Multi-part messages share a single
// record; the final completing part settles its state.
type Record struct {
	MessageID int64
	Dest      string
	Body      string
	State     State
	ErrorCode int
	CreatedAt time.Time
}

// MessageStore is the persistence boundary.
type MessageStore interface {
	Insert(ctx context.Context, rec Record) (Handle, error)
	Update(ctx context.Context, h Handle, state State, errorCode int) error
}

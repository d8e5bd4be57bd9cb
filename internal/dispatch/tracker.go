package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/modemstack/smsdispatch/internal/anomaly"
	"github.com/modemstack/smsdispatch/internal/logging"
	"github.com/modemstack/smsdispatch/internal/store"
)

// Outcome is delivered to a caller's result sink. ErrorCode is a
// carrier-specific sub-code when one accompanied the failure, 0 otherwise.
// LastPart is set on the completion that settles a multi-part batch.
type Outcome struct {
	Result      Result
	ErrorCode   int
	MessageID   int64
	StoreHandle store.Handle
	LastPart    bool
}

// ResultSink receives completion or delivery outcomes. The dispatcher
// invokes each sink at most once per tracked unit.
type ResultSink func(Outcome)

// Caller identifies the requesting application.
type Caller struct {
	Package string
	// CanSendUnconfirmed bypasses the short-code consent gate, as granted
	// to carrier-privileged callers.
	CanSendUnconfirmed bool
}

// AppInfoResolver answers package-level questions about callers.
type AppInfoResolver interface {
	IsDefaultMessagingApp(pkg string) bool
}

// partGroup is shared by reference across the sibling units of one
// multi-part message. The carrier service may complete siblings on foreign
// goroutines before the events reach the loop, so both fields are atomic.
type partGroup struct {
	unsent    atomic.Int32
	anyFailed atomic.Bool
}

// Tracker carries one PDU segment through dispatch, retry and completion.
// All fields except the shared partGroup are mutated only on the dispatch
// loop.
type Tracker struct {
	Dest           string
	ServiceCenter  string
	PDU            []byte
	SMSC           []byte
	Text           string
	UCS2           bool
	Format         string
	MessageRef     int
	Priority       int
	ValidityPeriod int

	// MessageID correlates this unit across process boundaries; unitID is
	// locally unique for request de-duplication.
	MessageID int64
	unitID    int64

	Caller         Caller
	DeliveryReport bool
	PersistMessage bool

	RetryCount    int
	MaxRetryCount int
	// CarrierRetry counts attempts already made over the carrier-service
	// transport. Nonzero changes the no-service handling in the
	// completion path.
	CarrierRetry int

	SkipShortCodeCheck bool
	VoicemailClass     bool
	Emergency          bool

	sentSink      ResultSink
	deliverySink  ResultSink
	sentFired     bool
	deliveryFired bool

	group    *partGroup
	partSeq  int
	fullText string

	handle store.Handle
	sentAt time.Time

	fromDefaultApp *bool
}

func (t *Tracker) logContext(ctx context.Context) context.Context {
	ctx = logging.ContextWithMessageID(ctx, t.MessageID)
	ctx = logging.ContextWithUnitID(ctx, t.unitID)
	ctx = logging.ContextWithDest(ctx, t.Dest)
	ctx = logging.ContextWithMessageRef(ctx, t.MessageRef)
	if t.group != nil {
		ctx = logging.ContextWithPart(ctx, t.partSeq)
	}
	return ctx
}

// isFromDefaultApp resolves the default-messaging-app flag once and caches
// it for the tracker's remaining lifetime.
func (t *Tracker) isFromDefaultApp(apps AppInfoResolver) bool {
	if t.fromDefaultApp == nil {
		v := apps.IsDefaultMessagingApp(t.Caller.Package)
		t.fromDefaultApp = &v
	}
	return *t.fromDefaultApp
}

// noteCompletion records one sibling completion and reports whether this
// unit is the single part or the last completing part of its batch.
func (t *Tracker) noteCompletion() bool {
	if t.group == nil {
		return true
	}
	return t.group.unsent.Add(-1) == 0
}

func (t *Tracker) anySiblingFailed() bool {
	return t.group != nil && t.group.anyFailed.Load()
}

// onSent finalizes a successful submission: it settles persistence when this
// is the single or last part and fires the caller's completion sink.
func (t *Tracker) onSent(ctx context.Context, st store.MessageStore, apps AppInfoResolver) {
	ctx = t.logContext(ctx)
	last := t.noteCompletion()
	if last {
		state := store.StateSent
		if t.anySiblingFailed() {
			state = store.StateFailed
		}
		t.persist(ctx, st, apps, state, 0)
	}
	t.fireSent(ctx, Outcome{
		Result:      ResultOK,
		MessageID:   t.MessageID,
		StoreHandle: t.handle,
		LastPart:    t.group != nil && last,
	})
}

// onFailed finalizes a terminal failure and reports unexpected results to
// the anomaly sink.
func (t *Tracker) onFailed(ctx context.Context, st store.MessageStore, apps AppInfoResolver, reporter anomaly.Reporter, res Result, errorCode int) {
	ctx = t.logContext(ctx)
	if t.group != nil {
		t.group.anyFailed.Store(true)
	}
	last := t.noteCompletion()
	if last {
		t.persist(ctx, st, apps, store.StateFailed, errorCode)
	}
	t.fireSent(ctx, Outcome{
		Result:      res,
		ErrorCode:   errorCode,
		MessageID:   t.MessageID,
		StoreHandle: t.handle,
		LastPart:    t.group != nil && last,
	})
	if reporter != nil && reportableFailure(res) {
		reporter.Report(anomaly.WithCode(anomaly.UnexpectedRadioError, int(res), errorCode),
			"SMS send failed")
	}
}

// persist writes or updates the logical message's store record. Messages
// from the default messaging app are not persisted here; that app writes
// its own records.
func (t *Tracker) persist(ctx context.Context, st store.MessageStore, apps AppInfoResolver, state store.State, errorCode int) {
	if st == nil || !t.PersistMessage || t.isFromDefaultApp(apps) {
		return
	}
	if t.handle == store.HandleNone {
		h, err := st.Insert(ctx, store.Record{
			MessageID: t.MessageID,
			Dest:      t.Dest,
			Body:      t.fullText,
			State:     state,
			ErrorCode: errorCode,
			CreatedAt: time.Now(),
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to persist message record", slog.Any("error", err))
			return
		}
		t.handle = h
		return
	}
	if err := st.Update(ctx, t.handle, state, errorCode); err != nil {
		slog.ErrorContext(ctx, "failed to update message record", slog.Any("error", err))
	}
}

func (t *Tracker) fireSent(ctx context.Context, out Outcome) {
	if t.sentFired {
		slog.WarnContext(ctx, "duplicate completion for tracked unit suppressed",
			slog.String("result", out.Result.String()))
		return
	}
	t.sentFired = true
	if t.sentSink != nil {
		t.sentSink(out)
	}
}

func (t *Tracker) fireDelivery(ctx context.Context, out Outcome) {
	if t.deliveryFired {
		slog.WarnContext(ctx, "duplicate delivery report for tracked unit suppressed")
		return
	}
	t.deliveryFired = true
	if t.deliverySink != nil {
		t.deliverySink(out)
	}
}

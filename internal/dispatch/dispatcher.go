// Package dispatch implements the outbound SMS orchestration core: it
// builds tracked units from send requests, gates them through consent and
// volume checks, routes them over the carrier service or the radio channel,
// and drives retry, persistence and completion notification.
package dispatch

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/modemstack/smsdispatch/internal/anomaly"
	"github.com/modemstack/smsdispatch/internal/carrier"
	"github.com/modemstack/smsdispatch/internal/encoding"
	"github.com/modemstack/smsdispatch/internal/logging"
	"github.com/modemstack/smsdispatch/internal/radio"
	"github.com/modemstack/smsdispatch/internal/sim"
	"github.com/modemstack/smsdispatch/internal/stats"
	"github.com/modemstack/smsdispatch/internal/store"
	"github.com/modemstack/smsdispatch/internal/usage"
)

// CountryPolicy selects which country code(s) drive short-code
// classification.
type CountryPolicy int

const (
	CountrySIM CountryPolicy = iota
	CountryNetwork
	CountryBoth
)

// DeviceState exposes the device conditions the dispatch decisions depend
// on. Implementations must be safe for concurrent reads.
type DeviceState interface {
	SendAllowed() bool
	ServiceAvailable() bool
	RadioOn() bool
	VoiceServiceAvailable() bool
	Provisioned() bool
	EmergencyCallbackMode() bool
	SIMCountry() string
	NetworkCountry() string
	IsEmergencyNumber(dest string) bool
}

// ConsentSurface receives confirmation requests raised by the gate. The
// surface answers by calling Dispatcher.ResolveConfirmation with the prompt
// id, on any goroutine.
type ConsentSurface interface {
	RequestConfirmation(req ConfirmationRequest)
}

// Config tunes the dispatcher core.
type Config struct {
	SubID              int
	MaxSendRetries     int
	SendRetryDelay     time.Duration
	CarrierTimeout     time.Duration
	PendingQueueLimit  int
	EventQueueDepth    int
	MessageRefViaModem bool
	CountryPolicy      CountryPolicy
	Format             string
}

func (c *Config) applyDefaults() {
	if c.MaxSendRetries <= 0 {
		c.MaxSendRetries = 3
	}
	if c.SendRetryDelay <= 0 {
		c.SendRetryDelay = 2 * time.Second
	}
	if c.CarrierTimeout <= 0 {
		c.CarrierTimeout = 10 * time.Minute
	}
	if c.PendingQueueLimit <= 0 {
		c.PendingQueueLimit = 5
	}
	if c.EventQueueDepth <= 0 {
		c.EventQueueDepth = 64
	}
	if c.Format == "" {
		c.Format = "3gpp"
	}
}

// Dependencies are the dispatcher's external collaborators.
type Dependencies struct {
	Radio     radio.Channel
	Carrier   carrier.Locator
	Encoder   encoding.Encoder
	Store     store.MessageStore
	SIMRefs   sim.RefStore
	SubRefs   sim.RefStore
	Usage     usage.Monitor
	Consent   ConsentSurface
	Device    DeviceState
	Apps      AppInfoResolver
	Anomalies anomaly.Reporter
	Stats     stats.Sink
}

// Dispatcher serializes all dispatch, retry and confirmation decisions onto
// a single event loop. Completion callbacks from the radio channel and the
// carrier bridge re-enter through the event queue; the only cross-goroutine
// mutable state is the multi-part counters on partGroup and the parked
// delivery-report map.
type Dispatcher struct {
	cfg  Config
	deps Dependencies
	refs *RefAllocator

	events chan event

	// Loop-confined confirmation state.
	pendingGroups int
	prompts       map[int64]*confirmGroup

	// Trackers awaiting a delivery report, keyed by message reference.
	// Status reports arrive from the radio goroutines.
	delivery cmap.ConcurrentMap[string, *Tracker]

	nextUnitID   atomic.Int64
	nextBatchID  atomic.Int64
	nextPromptID atomic.Int64
}

func New(cfg Config, deps Dependencies) *Dispatcher {
	cfg.applyDefaults()
	if deps.Carrier == nil {
		deps.Carrier = carrier.NoService{}
	}
	if deps.Anomalies == nil {
		deps.Anomalies = anomaly.LogReporter{}
	}
	if deps.Stats == nil {
		deps.Stats = stats.NopSink{}
	}
	return &Dispatcher{
		cfg:      cfg,
		deps:     deps,
		refs:     NewRefAllocator(cfg.SubID, cfg.MessageRefViaModem, deps.SIMRefs, deps.SubRefs),
		events:   make(chan event, cfg.EventQueueDepth),
		prompts:  make(map[int64]*confirmGroup),
		delivery: cmap.New[*Tracker](),
	}
}

// Run consumes the event queue until ctx is cancelled. All tracker mutation
// happens here, in strict event arrival order.
func (d *Dispatcher) Run(ctx context.Context) error {
	ctx = logging.ContextWithSubID(ctx, d.cfg.SubID)
	slog.InfoContext(ctx, "dispatcher started",
		slog.Int("sub_id", d.cfg.SubID),
		slog.Int("max_send_retries", d.cfg.MaxSendRetries),
		slog.Duration("send_retry_delay", d.cfg.SendRetryDelay),
	)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "dispatcher stopping")
			return ctx.Err()
		case ev := <-d.events:
			d.handle(ctx, ev)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case evDispatch:
		d.routeBatch(ctx, e.b)
	case evSendComplete:
		d.handleSendComplete(ctx, e.tr, e.res, e.overCarrier)
	case evCarrierComplete:
		d.handleCarrierComplete(ctx, e.b, e.status, e.refs)
	case evRetryDue:
		d.sendRawPDU(ctx, e.tr)
	case evConsentResolved:
		d.handleConsentResolved(ctx, e)
	case evStatusReport:
		d.handleStatusReport(ctx, e)
	default:
		slog.WarnContext(ctx, "unexpected event type on dispatch loop")
	}
}

func (d *Dispatcher) post(ev event) {
	d.events <- ev
}

// TextRequest is a single-part text send.
type TextRequest struct {
	Dest           string
	ServiceCenter  string
	Text           string
	Caller         Caller
	SentSink       ResultSink
	DeliverySink   ResultSink
	Priority       int
	ValidityPeriod int
	MessageID      int64
	Persist        bool
	// SkipShortCodeCheck bypasses the consent gate, used for resends the
	// user already approved.
	SkipShortCodeCheck bool
	// VoicemailClass marks messages destined for the voicemail system;
	// they are exempt from the consent gate.
	VoicemailClass bool
}

// DataRequest is a single-part binary send to an application port.
type DataRequest struct {
	Dest          string
	ServiceCenter string
	Port          int
	Data          []byte
	Caller        Caller
	SentSink      ResultSink
	DeliverySink  ResultSink
	MessageID     int64
	Persist       bool
}

// MultipartTextRequest is a long text send. The encoder segments the text;
// the sinks are invoked once per resulting part.
type MultipartTextRequest struct {
	Dest           string
	ServiceCenter  string
	Text           string
	Caller         Caller
	SentSink       ResultSink
	DeliverySink   ResultSink
	Priority       int
	ValidityPeriod int
	MessageID      int64
	Persist        bool
}

// SendText builds one tracked unit and enters it into the pipeline.
// Encoding failure fails the request synchronously; no unit is built.
func (d *Dispatcher) SendText(ctx context.Context, req TextRequest) {
	ctx = logging.ContextWithMessageID(ctx, req.MessageID)
	msgRef := d.refs.Next()
	pdu, err := d.deps.Encoder.EncodeText(req.ServiceCenter, req.Dest, req.Text,
		req.DeliverySink != nil, req.ValidityPeriod, msgRef, nil)
	if err != nil {
		slog.ErrorContext(ctx, "text encoding failed", slog.Any("error", err), slog.String("dest", req.Dest))
		failSink(req.SentSink, ResultGenericFailure, req.MessageID)
		return
	}
	if pdu == nil {
		slog.ErrorContext(ctx, "encoder returned no PDU", slog.String("dest", req.Dest))
		failSink(req.SentSink, ResultNullPDU, req.MessageID)
		return
	}

	tr := d.newTracker(req.Dest, req.ServiceCenter, pdu, msgRef, req.MessageID, req.Caller)
	tr.Text = req.Text
	tr.fullText = req.Text
	tr.Priority = req.Priority
	tr.ValidityPeriod = req.ValidityPeriod
	tr.PersistMessage = req.Persist
	tr.SkipShortCodeCheck = req.SkipShortCodeCheck
	tr.VoicemailClass = req.VoicemailClass
	tr.sentSink = req.SentSink
	tr.deliverySink = req.DeliverySink
	tr.DeliveryReport = req.DeliverySink != nil

	d.post(evDispatch{b: d.newBatch(batchText, req.Dest, req.Caller, tr)})
}

// SendData builds one tracked unit for a binary payload.
func (d *Dispatcher) SendData(ctx context.Context, req DataRequest) {
	ctx = logging.ContextWithMessageID(ctx, req.MessageID)
	msgRef := d.refs.Next()
	pdu, err := d.deps.Encoder.EncodeData(req.ServiceCenter, req.Dest, req.Port,
		req.Data, req.DeliverySink != nil, msgRef)
	if err != nil {
		slog.ErrorContext(ctx, "data encoding failed", slog.Any("error", err), slog.String("dest", req.Dest))
		failSink(req.SentSink, ResultGenericFailure, req.MessageID)
		return
	}
	if pdu == nil {
		slog.ErrorContext(ctx, "encoder returned no PDU", slog.String("dest", req.Dest))
		failSink(req.SentSink, ResultNullPDU, req.MessageID)
		return
	}

	tr := d.newTracker(req.Dest, req.ServiceCenter, pdu, msgRef, req.MessageID, req.Caller)
	tr.PersistMessage = req.Persist
	tr.sentSink = req.SentSink
	tr.deliverySink = req.DeliverySink
	tr.DeliveryReport = req.DeliverySink != nil

	b := d.newBatch(batchData, req.Dest, req.Caller, tr)
	b.data = req.Data
	b.port = req.Port
	d.post(evDispatch{b: b})
}

// SendMultipartText segments the text and builds one tracked unit per part,
// wired to a shared completion group.
func (d *Dispatcher) SendMultipartText(ctx context.Context, req MultipartTextRequest) {
	ctx = logging.ContextWithMessageID(ctx, req.MessageID)
	parts, err := d.deps.Encoder.Segment(req.Text)
	if err != nil || len(parts) == 0 {
		slog.ErrorContext(ctx, "segmentation failed", slog.Any("error", err), slog.String("dest", req.Dest))
		failSink(req.SentSink, ResultGenericFailure, req.MessageID)
		return
	}

	group := &partGroup{}
	group.unsent.Store(int32(len(parts)))
	concat := nextConcatRef()

	trackers := make([]*Tracker, 0, len(parts))
	for i, part := range parts {
		msgRef := d.refs.Next()
		pdu, err := d.deps.Encoder.EncodeText(req.ServiceCenter, req.Dest, part,
			req.DeliverySink != nil, req.ValidityPeriod, msgRef,
			&encoding.ConcatInfo{Ref: concat, Seq: i + 1, Total: len(parts)})
		if err != nil || pdu == nil {
			slog.ErrorContext(ctx, "part encoding failed",
				slog.Any("error", err), slog.Int("part", i+1), slog.String("dest", req.Dest))
			failSink(req.SentSink, ResultGenericFailure, req.MessageID)
			return
		}

		tr := d.newTracker(req.Dest, req.ServiceCenter, pdu, msgRef, req.MessageID, req.Caller)
		tr.Text = part
		tr.fullText = req.Text
		tr.Priority = req.Priority
		tr.ValidityPeriod = req.ValidityPeriod
		tr.PersistMessage = req.Persist
		tr.sentSink = req.SentSink
		tr.deliverySink = req.DeliverySink
		tr.DeliveryReport = req.DeliverySink != nil
		tr.group = group
		tr.partSeq = i + 1
		trackers = append(trackers, tr)
	}

	b := d.newBatch(batchMultipartText, req.Dest, req.Caller, trackers...)
	b.parts = parts
	d.post(evDispatch{b: b})
}

// ResolveConfirmation supplies the user's decision for a pending prompt.
// Safe to call from any goroutine.
func (d *Dispatcher) ResolveConfirmation(promptID int64, decision ConsentDecision, remember bool) {
	d.post(evConsentResolved{promptID: promptID, decision: decision, remember: remember})
}

// HandleStatusReport routes an inbound delivery report to the unit that
// requested it, matched by protocol message reference. Safe to call from
// any goroutine.
func (d *Dispatcher) HandleStatusReport(ref int, pdu []byte) {
	d.post(evStatusReport{ref: ref, pdu: pdu})
}

func (d *Dispatcher) newTracker(dest, smsc string, pdu *encoding.SubmitPDU, msgRef int, messageID int64, caller Caller) *Tracker {
	return &Tracker{
		Dest:          dest,
		ServiceCenter: smsc,
		PDU:           pdu.Encoded,
		SMSC:          pdu.EncodedSMSC,
		UCS2:          pdu.UCS2,
		Format:        d.cfg.Format,
		MessageRef:    msgRef,
		MessageID:     messageID,
		unitID:        d.nextUnitID.Add(1),
		Caller:        caller,
		MaxRetryCount: d.cfg.MaxSendRetries,
		Emergency:     d.deps.Device.IsEmergencyNumber(dest),
	}
}

func (d *Dispatcher) newBatch(kind batchKind, dest string, caller Caller, trackers ...*Tracker) *batch {
	return &batch{
		id:       d.nextBatchID.Add(1),
		kind:     kind,
		trackers: trackers,
		dest:     dest,
		caller:   caller,
	}
}

// routeBatch picks a transport for a freshly built batch: the carrier
// service when one is installed, otherwise the radio path behind the
// confirmation gate. The whole batch always travels together.
func (d *Dispatcher) routeBatch(ctx context.Context, b *batch) {
	ctx = logging.ContextWithDest(ctx, b.dest)
	if d.deps.Device.EmergencyCallbackMode() {
		slog.WarnContext(ctx, "send blocked during emergency callback mode")
		d.failBatch(ctx, b, ResultBlockedDuringEmergency, 0)
		return
	}

	if svc := d.deps.Carrier.Lookup(d.cfg.SubID); svc != nil {
		slog.DebugContext(ctx, "routing batch to carrier messaging service", slog.Int64("batch", b.id))
		d.startCarrierSend(b, svc)
		return
	}

	if d.admitBatch(ctx, b) {
		d.sendRawBatch(ctx, b)
	}
}

func (d *Dispatcher) sendRawBatch(ctx context.Context, b *batch) {
	for _, tr := range b.trackers {
		d.sendRawPDU(ctx, tr)
	}
}

// sendRawPDU submits one unit over the radio channel. Used for first
// attempts, retries and carrier fallback.
func (d *Dispatcher) sendRawPDU(ctx context.Context, tr *Tracker) {
	ctx = tr.logContext(ctx)
	if !d.deps.Device.SendAllowed() {
		slog.WarnContext(ctx, "sending disabled on this device")
		tr.onFailed(ctx, d.deps.Store, d.deps.Apps, d.deps.Anomalies, ResultNoService, 0)
		return
	}
	if len(tr.PDU) == 0 {
		slog.ErrorContext(ctx, "tracked unit has no PDU")
		tr.onFailed(ctx, d.deps.Store, d.deps.Apps, d.deps.Anomalies, ResultNullPDU, 0)
		return
	}
	if tr.sentAt.IsZero() {
		tr.sentAt = time.Now()
	}

	slog.DebugContext(ctx, "submitting unit to radio channel",
		slog.Int("retry_count", tr.RetryCount), slog.Int("msg_ref", tr.MessageRef))
	d.deps.Radio.Submit(radio.Submission{
		Dest:          tr.Dest,
		ServiceCenter: tr.ServiceCenter,
		PDU:           tr.PDU,
		SMSC:          tr.SMSC,
		Text:          tr.Text,
		UCS2:          tr.UCS2,
		MessageRef:    tr.MessageRef,
		Format:        tr.Format,
		StatusReport:  tr.DeliveryReport,
	}, func(res radio.Result) {
		d.post(evSendComplete{tr: tr, res: res})
	})
}

func (d *Dispatcher) failBatch(ctx context.Context, b *batch, res Result, errorCode int) {
	for _, tr := range b.trackers {
		tr.onFailed(ctx, d.deps.Store, d.deps.Apps, d.deps.Anomalies, res, errorCode)
	}
}

func failSink(sink ResultSink, res Result, messageID int64) {
	if sink != nil {
		sink(Outcome{Result: res, MessageID: messageID})
	}
}

func deliveryKey(ref int) string {
	return strconv.Itoa(ref & 0xFF)
}

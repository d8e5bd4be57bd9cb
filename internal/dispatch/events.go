package dispatch

import (
	"github.com/modemstack/smsdispatch/internal/carrier"
	"github.com/modemstack/smsdispatch/internal/radio"
)

// event is the closed set of inputs serialized onto the dispatch loop.
type event interface{ isEvent() }

type batchKind int

const (
	batchText batchKind = iota
	batchData
	batchMultipartText
)

// batch groups the sibling trackers of one logical send request. Single-part
// requests are a batch of one.
type batch struct {
	id       int64
	kind     batchKind
	trackers []*Tracker
	dest     string
	parts    []string
	data     []byte
	port     int
	caller   Caller
}

func (b *batch) skipShortCodeCheck() bool {
	return len(b.trackers) > 0 && b.trackers[0].SkipShortCodeCheck
}

func (b *batch) voicemailClass() bool {
	return len(b.trackers) > 0 && b.trackers[0].VoicemailClass
}

// evDispatch enters a freshly built batch into the pipeline.
type evDispatch struct{ b *batch }

// evSendComplete resolves one radio submission.
type evSendComplete struct {
	tr          *Tracker
	res         radio.Result
	overCarrier bool
}

// evCarrierComplete resolves a whole batch sent through the carrier bridge.
type evCarrierComplete struct {
	b      *batch
	status carrier.SendStatus
	refs   []int
}

// evRetryDue fires when a scheduled retry delay elapses.
type evRetryDue struct{ tr *Tracker }

// evConsentResolved carries the user's decision for a pending prompt.
type evConsentResolved struct {
	promptID int64
	decision ConsentDecision
	remember bool
}

// evStatusReport routes an inbound delivery report by message reference.
type evStatusReport struct {
	ref int
	pdu []byte
}

func (evDispatch) isEvent()        {}
func (evSendComplete) isEvent()    {}
func (evCarrierComplete) isEvent() {}
func (evRetryDue) isEvent()        {}
func (evConsentResolved) isEvent() {}
func (evStatusReport) isEvent()    {}

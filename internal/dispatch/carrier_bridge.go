package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/modemstack/smsdispatch/internal/anomaly"
	"github.com/modemstack/smsdispatch/internal/carrier"
)

type senderState int

const (
	senderIdle senderState = iota
	senderBinding
	senderBound
	senderAwaitingResult
	senderResultReceived
	senderTimedOut
	senderDisconnected
)

func (s senderState) String() string {
	switch s {
	case senderIdle:
		return "idle"
	case senderBinding:
		return "binding"
	case senderBound:
		return "bound"
	case senderAwaitingResult:
		return "awaiting_result"
	case senderResultReceived:
		return "result_received"
	case senderTimedOut:
		return "timed_out"
	case senderDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

type completionOrigin int

const (
	originCallback completionOrigin = iota
	originTimeout
)

// carrierSender drives one batch through the carrier messaging service:
// bind, forward, await a bounded-time result, disconnect. Service callbacks
// arrive on foreign goroutines, so completion is guarded by a mutex and a
// once flag; whichever of {result callback, timeout} wins completes the
// bridge, the loser is dropped (with an anomaly report for a genuine
// duplicate callback).
type carrierSender struct {
	d   *Dispatcher
	b   *batch
	svc carrier.Service

	mu    sync.Mutex
	state senderState
	done  bool
	timer *time.Timer
}

func (d *Dispatcher) startCarrierSend(b *batch, svc carrier.Service) {
	s := &carrierSender{d: d, b: b, svc: svc, state: senderIdle}
	go s.run()
}

func (s *carrierSender) run() {
	s.setState(senderBinding)
	s.svc.Bind(s.b.caller.Package, func(err error) {
		if err != nil {
			slog.Warn("carrier service bind failed, falling back to radio path",
				slog.Any("error", err), slog.Int64("batch", s.b.id))
			s.complete(originCallback, carrier.SendResult{Status: carrier.SendStatusRetryOnCarrierNetwork})
			return
		}
		s.onBound()
	})
}

func (s *carrierSender) onBound() {
	s.setState(senderBound)

	s.mu.Lock()
	s.timer = time.AfterFunc(s.d.cfg.CarrierTimeout, s.onTimeout)
	s.state = senderAwaitingResult
	s.mu.Unlock()

	done := func(res carrier.SendResult) { s.complete(originCallback, res) }
	switch s.b.kind {
	case batchData:
		s.svc.SendData(carrier.DataRequest{Dest: s.b.dest, Port: s.b.port, Data: s.b.data}, done)
	case batchMultipartText:
		s.svc.SendText(carrier.TextRequest{Dest: s.b.dest, Parts: s.b.parts}, done)
	default:
		s.svc.SendText(carrier.TextRequest{Dest: s.b.dest, Parts: []string{s.b.trackers[0].Text}}, done)
	}
}

func (s *carrierSender) onTimeout() {
	s.d.deps.Anomalies.Report(anomaly.NoCarrierResponse,
		"no response from carrier messaging service")
	s.complete(originTimeout, carrier.SendResult{Status: carrier.SendStatusRetryOnCarrierNetwork})
}

// complete settles the bridge exactly once: it stops the timer, always
// disconnects from the service, and hands the result to the dispatch loop.
func (s *carrierSender) complete(origin completionOrigin, res carrier.SendResult) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		if origin == originCallback {
			s.d.deps.Anomalies.Report(anomaly.UnexpectedCarrierCallback,
				"carrier messaging service callback called more than once")
			slog.Warn("duplicate carrier service callback ignored",
				slog.Int64("batch", s.b.id), slog.String("status", res.Status.String()))
		}
		return
	}
	s.done = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if origin == originTimeout {
		s.state = senderTimedOut
	} else {
		s.state = senderResultReceived
	}
	s.mu.Unlock()

	s.svc.Disconnect()
	s.setState(senderDisconnected)

	slog.Debug("carrier bridge completed",
		slog.Int64("batch", s.b.id), slog.String("status", res.Status.String()))
	s.d.post(evCarrierComplete{b: s.b, status: res.Status, refs: res.MessageRefs})
}

func (s *carrierSender) setState(st senderState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

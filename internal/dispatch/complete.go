package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/modemstack/smsdispatch/internal/carrier"
	"github.com/modemstack/smsdispatch/internal/radio"
	"github.com/modemstack/smsdispatch/internal/stats"
)

// handleSendComplete is the single serialization point for every
// asynchronous submission result, regardless of transport.
func (d *Dispatcher) handleSendComplete(ctx context.Context, tr *Tracker, res radio.Result, overCarrier bool) {
	ctx = tr.logContext(ctx)

	if res.Err == radio.ErrNone {
		slog.InfoContext(ctx, "unit sent",
			slog.Int("ack_ref", res.AckRef), slog.Int("retry_count", tr.RetryCount))
		tr.onSent(ctx, d.deps.Store, d.deps.Apps)
		if tr.DeliveryReport {
			d.delivery.Set(deliveryKey(tr.MessageRef), tr)
		}
		d.emitStats(tr, overCarrier, true, ResultOK)
		return
	}

	// A unit that already went out over the carrier path gets no radio
	// retries while voice service is down; force it to its ceiling.
	if tr.CarrierRetry > 0 && !d.deps.Device.VoiceServiceAvailable() {
		tr.RetryCount = tr.MaxRetryCount
	}

	if !d.deps.Device.ServiceAvailable() && tr.CarrierRetry == 0 {
		d.handleNotInService(ctx, tr)
		return
	}

	if transient(res.Err) && tr.RetryCount < tr.MaxRetryCount {
		tr.RetryCount++
		slog.InfoContext(ctx, "transient send failure, scheduling retry",
			slog.String("error", res.Err.String()),
			slog.Int("retry_count", tr.RetryCount),
			slog.Duration("delay", d.cfg.SendRetryDelay),
		)
		time.AfterFunc(d.cfg.SendRetryDelay, func() {
			d.post(evRetryDue{tr: tr})
		})
		return
	}

	out := resultFromCommandError(res.Err)
	slog.WarnContext(ctx, "unit failed",
		slog.String("error", res.Err.String()),
		slog.String("result", out.String()),
		slog.Int("error_code", res.ErrorCode),
		slog.Int("retry_count", tr.RetryCount),
	)
	tr.onFailed(ctx, d.deps.Store, d.deps.Apps, d.deps.Anomalies, out, res.ErrorCode)
	d.emitStats(tr, overCarrier, false, out)
}

// handleNotInService fails a unit immediately, distinguishing radio-off
// from plain loss of service by the power state.
func (d *Dispatcher) handleNotInService(ctx context.Context, tr *Tracker) {
	res := ResultNoService
	if !d.deps.Device.RadioOn() {
		res = ResultRadioOff
	}
	slog.WarnContext(ctx, "no service, failing unit", slog.String("result", res.String()))
	tr.onFailed(ctx, d.deps.Store, d.deps.Apps, d.deps.Anomalies, res, 0)
	d.emitStats(tr, false, false, res)
}

// handleCarrierComplete applies the carrier verdict to a whole batch.
// Success and the closed set of permanent failures are terminal; everything
// else resubmits the batch through the radio path.
func (d *Dispatcher) handleCarrierComplete(ctx context.Context, b *batch, status carrier.SendStatus, refs []int) {
	switch status {
	case carrier.SendStatusOK:
		for i, tr := range b.trackers {
			ackRef := tr.MessageRef
			if i < len(refs) {
				ackRef = refs[i]
			}
			d.handleSendComplete(ctx, tr, radio.Result{AckRef: ackRef}, true)
		}

	case carrier.SendStatusError,
		carrier.SendStatusNetworkReject,
		carrier.SendStatusInvalidArguments,
		carrier.SendStatusEncodingError,
		carrier.SendStatusBlockedDuringEmergency:
		out := resultFromCarrierStatus(status)
		slog.WarnContext(ctx, "carrier service rejected batch",
			slog.Int64("batch", b.id), slog.String("status", status.String()))
		for _, tr := range b.trackers {
			tr.onFailed(tr.logContext(ctx), d.deps.Store, d.deps.Apps, d.deps.Anomalies, out, 0)
			d.emitStats(tr, true, false, out)
		}

	default:
		// Explicit retry-on-carrier-network, timeout and unknown codes
		// all fall back to the radio path.
		slog.InfoContext(ctx, "carrier send falling back to radio path",
			slog.Int64("batch", b.id), slog.String("status", status.String()))
		for _, tr := range b.trackers {
			tr.CarrierRetry++
			d.sendRawPDU(ctx, tr)
		}
	}
}

func resultFromCarrierStatus(status carrier.SendStatus) Result {
	switch status {
	case carrier.SendStatusNetworkReject:
		return ResultNetworkReject
	case carrier.SendStatusInvalidArguments:
		return ResultInvalidArguments
	case carrier.SendStatusEncodingError:
		return ResultEncodingError
	case carrier.SendStatusBlockedDuringEmergency:
		return ResultBlockedDuringEmergency
	default:
		return ResultGenericFailure
	}
}

// handleStatusReport routes an inbound delivery report to the parked unit
// with the matching message reference and fires its delivery sink once.
func (d *Dispatcher) handleStatusReport(ctx context.Context, ev evStatusReport) {
	tr, ok := d.delivery.Pop(deliveryKey(ev.ref))
	if !ok {
		slog.DebugContext(ctx, "status report with no pending unit", slog.Int("msg_ref", ev.ref))
		return
	}
	ctx = tr.logContext(ctx)
	slog.InfoContext(ctx, "delivery report received", slog.Int("msg_ref", ev.ref))
	tr.fireDelivery(ctx, Outcome{
		Result:      ResultOK,
		MessageID:   tr.MessageID,
		StoreHandle: tr.handle,
	})
}

func (d *Dispatcher) emitStats(tr *Tracker, overCarrier, success bool, res Result) {
	var latency time.Duration
	if !tr.sentAt.IsZero() {
		latency = time.Since(tr.sentAt)
	}
	d.deps.Stats.OutgoingSMS(stats.Outgoing{
		OverCarrier: overCarrier,
		Format:      tr.Format,
		Latency:     latency,
		Emergency:   tr.Emergency,
		Success:     success,
		Result:      res.String(),
		RetryCount:  tr.RetryCount,
	})
}

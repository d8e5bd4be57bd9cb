package dispatch

import (
	"context"
	"log/slog"

	"github.com/modemstack/smsdispatch/internal/logging"
	"github.com/modemstack/smsdispatch/internal/usage"
)

// PromptKind distinguishes the two confirmation prompts.
type PromptKind int

const (
	PromptShortCode PromptKind = iota
	PromptRateLimit
)

func (k PromptKind) String() string {
	switch k {
	case PromptShortCode:
		return "short_code"
	case PromptRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// ConsentDecision is the user's answer to a confirmation prompt.
type ConsentDecision int

const (
	ConsentAllow ConsentDecision = iota
	ConsentDeny
	ConsentDismiss
)

// ConfirmationRequest is raised toward the consent surface when a batch
// needs an interactive decision.
type ConfirmationRequest struct {
	PromptID int64
	Kind     PromptKind
	Caller   string
	Dest     string
	Category usage.Category
}

// ConsentFunc adapts a function to the ConsentSurface interface.
type ConsentFunc func(ConfirmationRequest)

func (f ConsentFunc) RequestConfirmation(req ConfirmationRequest) { f(req) }

// confirmGroup is a batch parked behind a prompt. It counts against the
// pending-group limit until resolved.
type confirmGroup struct {
	id       int64
	kind     PromptKind
	b        *batch
	category usage.Category
}

// admitBatch runs the confirmation state machine for a batch headed to the
// radio path. It returns true when the batch may be submitted now; false
// when it was parked behind a prompt or rejected (the batch's sinks have
// already fired in the rejected case).
func (d *Dispatcher) admitBatch(ctx context.Context, b *batch) bool {
	ctx = logging.ContextWithCaller(ctx, b.caller.Package)

	if b.caller.CanSendUnconfirmed || b.voicemailClass() || b.skipShortCodeCheck() {
		return d.checkVolume(ctx, b)
	}

	category := d.classifyDestination(b.dest)
	if !category.NeedsConfirmation() {
		return d.checkVolume(ctx, b)
	}

	// No prompts before setup completes; premium-capable destinations are
	// rejected outright.
	if !d.deps.Device.Provisioned() {
		slog.InfoContext(ctx, "premium destination rejected while device unprovisioned",
			slog.String("category", category.String()))
		d.failBatch(ctx, b, ResultShortCodeNotAllowed, 0)
		return false
	}

	switch d.deps.Usage.RememberedDecision(b.caller.Package) {
	case usage.DecisionAlwaysAllow:
		return d.checkVolume(ctx, b)
	case usage.DecisionNeverAllow:
		slog.InfoContext(ctx, "short code send rejected by remembered decision")
		d.failBatch(ctx, b, ResultShortCodeNeverAllowed, 0)
		return false
	}

	d.enqueuePrompt(ctx, b, PromptShortCode, category)
	return false
}

func (d *Dispatcher) checkVolume(ctx context.Context, b *batch) bool {
	if d.deps.Usage.CheckVolume(b.caller.Package, len(b.trackers)) {
		return true
	}
	slog.InfoContext(ctx, "caller exceeded send volume, asking for confirmation",
		slog.Int("parts", len(b.trackers)))
	d.enqueuePrompt(ctx, b, PromptRateLimit, usage.CategoryNotShortCode)
	return false
}

func (d *Dispatcher) classifyDestination(dest string) usage.Category {
	switch d.cfg.CountryPolicy {
	case CountryNetwork:
		return d.deps.Usage.ClassifyDestination(dest, d.deps.Device.NetworkCountry())
	case CountryBoth:
		return usage.Stricter(
			d.deps.Usage.ClassifyDestination(dest, d.deps.Device.SIMCountry()),
			d.deps.Usage.ClassifyDestination(dest, d.deps.Device.NetworkCountry()),
		)
	default:
		return d.deps.Usage.ClassifyDestination(dest, d.deps.Device.SIMCountry())
	}
}

// enqueuePrompt parks a batch behind a confirmation prompt, subject to the
// pending-group limit. Over the limit the batch is rejected outright; this
// is back-pressure, not a wait.
func (d *Dispatcher) enqueuePrompt(ctx context.Context, b *batch, kind PromptKind, category usage.Category) {
	if d.pendingGroups >= d.cfg.PendingQueueLimit {
		slog.WarnContext(ctx, "confirmation queue full, rejecting batch",
			slog.Int("pending", d.pendingGroups), slog.Int("limit", d.cfg.PendingQueueLimit))
		d.failBatch(ctx, b, ResultLimitExceeded, 0)
		return
	}

	g := &confirmGroup{
		id:       d.nextPromptID.Add(1),
		kind:     kind,
		b:        b,
		category: category,
	}
	d.pendingGroups++
	d.prompts[g.id] = g

	ctx = logging.ContextWithPromptID(ctx, g.id)
	slog.InfoContext(ctx, "raising confirmation prompt",
		slog.String("kind", kind.String()),
		slog.String("category", category.String()),
	)
	d.deps.Consent.RequestConfirmation(ConfirmationRequest{
		PromptID: g.id,
		Kind:     kind,
		Caller:   b.caller.Package,
		Dest:     b.dest,
		Category: category,
	})
}

func (d *Dispatcher) handleConsentResolved(ctx context.Context, ev evConsentResolved) {
	ctx = logging.ContextWithPromptID(ctx, ev.promptID)
	g, ok := d.prompts[ev.promptID]
	if !ok {
		slog.WarnContext(ctx, "consent decision for unknown prompt")
		return
	}
	delete(d.prompts, ev.promptID)
	d.pendingGroups--

	ctx = logging.ContextWithCaller(ctx, g.b.caller.Package)

	switch ev.decision {
	case ConsentAllow:
		if ev.remember && g.kind == PromptShortCode {
			d.deps.Usage.SetRememberedDecision(g.b.caller.Package, usage.DecisionAlwaysAllow)
		}
		slog.InfoContext(ctx, "send confirmed by user")
		d.sendRawBatch(ctx, g.b)

	case ConsentDeny:
		res := ResultShortCodeNotAllowed
		if g.kind == PromptRateLimit {
			res = ResultLimitExceeded
		} else if ev.remember {
			d.deps.Usage.SetRememberedDecision(g.b.caller.Package, usage.DecisionNeverAllow)
			res = ResultShortCodeNeverAllowed
		}
		slog.InfoContext(ctx, "send denied by user", slog.Bool("remember", ev.remember))
		d.failBatch(ctx, g.b, res, 0)

	case ConsentDismiss:
		res := ResultShortCodeNotAllowed
		if g.kind == PromptRateLimit {
			res = ResultLimitExceeded
		}
		slog.InfoContext(ctx, "confirmation prompt dismissed")
		d.failBatch(ctx, g.b, res, 0)

	default:
		slog.WarnContext(ctx, "unrecognized consent decision, stopping send")
		d.failBatch(ctx, g.b, ResultUnexpectedStopSending, 0)
	}
}

package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modemstack/smsdispatch/internal/usage"
)

// 29999 is premium under the built-in US rules.
const premiumDest = "29999"

func sendPremium(env *testEnv, caller string, sent chan Outcome) {
	env.d.SendText(context.Background(), TextRequest{
		Dest:     premiumDest,
		Text:     "WIN NOW",
		Caller:   Caller{Package: caller},
		SentSink: outcomeSink(sent),
	})
}

func TestPremiumDestinationPromptsAndAllowProceeds(t *testing.T) {
	env := newTestEnv(t, nil)
	sent := make(chan Outcome, 1)

	sendPremium(env, "app.example", sent)

	p := waitPrompt(t, env)
	assert.Equal(t, PromptShortCode, p.Kind)
	assert.Equal(t, usage.CategoryPremium, p.Category)
	assert.Equal(t, "app.example", p.Caller)
	assert.Equal(t, premiumDest, p.Dest)
	assertNoOutcome(t, sent, 20*time.Millisecond)

	env.d.ResolveConfirmation(p.PromptID, ConsentAllow, false)
	assert.Equal(t, ResultOK, waitOutcome(t, sent).Result)
}

func TestDenyWithRememberSuppressesFuturePrompts(t *testing.T) {
	env := newTestEnv(t, nil)
	sent := make(chan Outcome, 1)

	sendPremium(env, "app.example", sent)
	p := waitPrompt(t, env)
	env.d.ResolveConfirmation(p.PromptID, ConsentDeny, true)
	assert.Equal(t, ResultShortCodeNeverAllowed, waitOutcome(t, sent).Result)

	// The remembered decision rejects the next send without a prompt.
	sendPremium(env, "app.example", sent)
	assert.Equal(t, ResultShortCodeNeverAllowed, waitOutcome(t, sent).Result)
	select {
	case <-env.prompts:
		t.Fatal("unexpected second prompt after remembered denial")
	default:
	}
}

func TestAllowWithRememberSkipsFuturePrompts(t *testing.T) {
	env := newTestEnv(t, nil)
	sent := make(chan Outcome, 1)

	sendPremium(env, "app.example", sent)
	p := waitPrompt(t, env)
	env.d.ResolveConfirmation(p.PromptID, ConsentAllow, true)
	assert.Equal(t, ResultOK, waitOutcome(t, sent).Result)

	sendPremium(env, "app.example", sent)
	assert.Equal(t, ResultOK, waitOutcome(t, sent).Result)
	select {
	case <-env.prompts:
		t.Fatal("unexpected prompt after remembered approval")
	default:
	}
}

func TestDismissFailsWithoutRemembering(t *testing.T) {
	env := newTestEnv(t, nil)
	sent := make(chan Outcome, 1)

	sendPremium(env, "app.example", sent)
	p := waitPrompt(t, env)
	env.d.ResolveConfirmation(p.PromptID, ConsentDismiss, false)
	assert.Equal(t, ResultShortCodeNotAllowed, waitOutcome(t, sent).Result)

	// Dismissal is not sticky; the next send prompts again.
	sendPremium(env, "app.example", sent)
	waitPrompt(t, env)
}

func TestUnprovisionedDeviceRejectsPremium(t *testing.T) {
	env := newTestEnv(t, nil)
	env.device.Set(func(s *StaticDeviceState) { s.SetupComplete = false })
	sent := make(chan Outcome, 1)

	sendPremium(env, "app.example", sent)
	assert.Equal(t, ResultShortCodeNotAllowed, waitOutcome(t, sent).Result)
	select {
	case <-env.prompts:
		t.Fatal("unexpected prompt before device setup completed")
	default:
	}
}

func TestRegularDestinationNeedsNoConfirmation(t *testing.T) {
	env := newTestEnv(t, nil)
	sent := make(chan Outcome, 1)

	env.d.SendText(context.Background(), TextRequest{
		Dest:     "+15550100",
		Text:     "hi",
		Caller:   Caller{Package: "app.example"},
		SentSink: outcomeSink(sent),
	})
	assert.Equal(t, ResultOK, waitOutcome(t, sent).Result)
}

func TestPrivilegedCallerBypassesGate(t *testing.T) {
	env := newTestEnv(t, nil)
	sent := make(chan Outcome, 1)

	env.d.SendText(context.Background(), TextRequest{
		Dest:     premiumDest,
		Text:     "carrier app",
		Caller:   Caller{Package: "com.carrier.app", CanSendUnconfirmed: true},
		SentSink: outcomeSink(sent),
	})
	assert.Equal(t, ResultOK, waitOutcome(t, sent).Result)
}

func TestVoicemailClassBypassesGate(t *testing.T) {
	env := newTestEnv(t, nil)
	sent := make(chan Outcome, 1)

	env.d.SendText(context.Background(), TextRequest{
		Dest:           premiumDest,
		Text:           "mwi",
		Caller:         Caller{Package: "app.example"},
		SentSink:       outcomeSink(sent),
		VoicemailClass: true,
	})
	assert.Equal(t, ResultOK, waitOutcome(t, sent).Result)
}

func TestSkipShortCodeCheckBypassesGate(t *testing.T) {
	env := newTestEnv(t, nil)
	sent := make(chan Outcome, 1)

	env.d.SendText(context.Background(), TextRequest{
		Dest:               premiumDest,
		Text:               "resend",
		Caller:             Caller{Package: "app.example"},
		SentSink:           outcomeSink(sent),
		SkipShortCodeCheck: true,
	})
	assert.Equal(t, ResultOK, waitOutcome(t, sent).Result)
}

func TestPendingQueueLimitRejectsOverflow(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Dependencies) {
		cfg.PendingQueueLimit = 5
	})
	sent := make(chan Outcome, 8)

	for i := 0; i < 5; i++ {
		sendPremium(env, fmt.Sprintf("app.pending%d", i), sent)
	}
	first := waitPrompt(t, env)
	for i := 0; i < 4; i++ {
		waitPrompt(t, env)
	}
	assertNoOutcome(t, sent, 20*time.Millisecond)

	// The sixth batch is rejected outright, not queued.
	sendPremium(env, "app.overflow", sent)
	assert.Equal(t, ResultLimitExceeded, waitOutcome(t, sent).Result)

	// Resolving one prompt frees a slot.
	env.d.ResolveConfirmation(first.PromptID, ConsentAllow, false)
	assert.Equal(t, ResultOK, waitOutcome(t, sent).Result)

	sendPremium(env, "app.after", sent)
	waitPrompt(t, env)
}

func TestVolumeLimitPromptsAndDenyRejects(t *testing.T) {
	env := newTestEnv(t, func(_ *Config, deps *Dependencies) {
		deps.Usage = usage.NewDefaultMonitor(usage.VolumeConfig{MessagesPerSecond: 0.001, Burst: 1})
	})
	sent := make(chan Outcome, 2)

	env.d.SendText(context.Background(), TextRequest{
		Dest:     "+15550100",
		Text:     "first",
		Caller:   Caller{Package: "app.chatty"},
		SentSink: outcomeSink(sent),
	})
	assert.Equal(t, ResultOK, waitOutcome(t, sent).Result)

	env.d.SendText(context.Background(), TextRequest{
		Dest:     "+15550100",
		Text:     "second",
		Caller:   Caller{Package: "app.chatty"},
		SentSink: outcomeSink(sent),
	})
	p := waitPrompt(t, env)
	assert.Equal(t, PromptRateLimit, p.Kind)

	env.d.ResolveConfirmation(p.PromptID, ConsentDeny, false)
	assert.Equal(t, ResultLimitExceeded, waitOutcome(t, sent).Result)
}

func TestUnknownPromptDecisionIgnored(t *testing.T) {
	env := newTestEnv(t, nil)

	env.d.ResolveConfirmation(9999, ConsentAllow, false)

	sent := make(chan Outcome, 1)
	env.d.SendText(context.Background(), TextRequest{
		Dest:     "+15550100",
		Text:     "still fine",
		SentSink: outcomeSink(sent),
	})
	assert.Equal(t, ResultOK, waitOutcome(t, sent).Result)
}

func TestNetworkCountryPolicyClassifies(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Dependencies) {
		cfg.CountryPolicy = CountryNetwork
	})
	// 79999 is premium under the GB rules but standard under the US
	// rules; with the network policy and a GB network, it prompts.
	env.device.Set(func(s *StaticDeviceState) {
		s.SIMISO = "us"
		s.NetworkISO = "gb"
	})
	sent := make(chan Outcome, 1)

	env.d.SendText(context.Background(), TextRequest{
		Dest:     "79999",
		Text:     "roaming",
		Caller:   Caller{Package: "app.example"},
		SentSink: outcomeSink(sent),
	})
	p := waitPrompt(t, env)
	assert.Equal(t, usage.CategoryPremium, p.Category)
	require.NotZero(t, p.PromptID)
}

func TestBothCountryPolicyTakesStricter(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Dependencies) {
		cfg.CountryPolicy = CountryBoth
	})
	env.device.Set(func(s *StaticDeviceState) {
		s.SIMISO = "us"
		s.NetworkISO = "gb"
	})
	sent := make(chan Outcome, 1)

	env.d.SendText(context.Background(), TextRequest{
		Dest:     "79999",
		Text:     "roaming",
		Caller:   Caller{Package: "app.example"},
		SentSink: outcomeSink(sent),
	})
	p := waitPrompt(t, env)
	assert.Equal(t, usage.CategoryPremium, p.Category)
}

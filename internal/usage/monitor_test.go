package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDestination(t *testing.T) {
	m := NewDefaultMonitor(VolumeConfig{})

	tests := []struct {
		name    string
		dest    string
		country string
		want    Category
	}{
		{"regular number", "+15551234567", "us", CategoryNotShortCode},
		{"us premium 2xxxx", "21234", "us", CategoryPremium},
		{"us premium 9xxxx", "98765", "us", CategoryPremium},
		{"us standard", "51234", "us", CategoryStandardShortCode},
		{"gb free", "51234", "gb", CategoryFreeShortCode},
		{"gb premium", "79999", "gb", CategoryPremium},
		{"country case insensitive", "21234", "US", CategoryPremium},
		{"unknown country stays suspect", "12345", "fr", CategoryPossiblePremium},
		{"short digits without rule match", "1", "us", CategoryPossiblePremium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ClassifyDestination(tt.dest, tt.country))
		})
	}
}

func TestNeedsConfirmation(t *testing.T) {
	assert.False(t, CategoryNotShortCode.NeedsConfirmation())
	assert.False(t, CategoryFreeShortCode.NeedsConfirmation())
	assert.False(t, CategoryStandardShortCode.NeedsConfirmation())
	assert.True(t, CategoryPossiblePremium.NeedsConfirmation())
	assert.True(t, CategoryPremium.NeedsConfirmation())
}

func TestStricterPrefersMoreRestrictive(t *testing.T) {
	assert.Equal(t, CategoryPremium, Stricter(CategoryStandardShortCode, CategoryPremium))
	assert.Equal(t, CategoryPremium, Stricter(CategoryPremium, CategoryFreeShortCode))
	assert.Equal(t, CategoryPossiblePremium, Stricter(CategoryNotShortCode, CategoryPossiblePremium))
	assert.Equal(t, CategoryFreeShortCode, Stricter(CategoryFreeShortCode, CategoryFreeShortCode))
}

func TestCheckVolumeEnforcesBurst(t *testing.T) {
	m := NewDefaultMonitor(VolumeConfig{MessagesPerSecond: 0.001, Burst: 3})

	assert.True(t, m.CheckVolume("app.a", 2))
	assert.True(t, m.CheckVolume("app.a", 1))
	assert.False(t, m.CheckVolume("app.a", 1))

	// Callers have independent buckets.
	assert.True(t, m.CheckVolume("app.b", 3))
}

func TestRememberedDecisions(t *testing.T) {
	m := NewDefaultMonitor(VolumeConfig{})

	assert.Equal(t, DecisionAsk, m.RememberedDecision("app.a"))

	m.SetRememberedDecision("app.a", DecisionAlwaysAllow)
	assert.Equal(t, DecisionAlwaysAllow, m.RememberedDecision("app.a"))

	m.SetRememberedDecision("app.a", DecisionNeverAllow)
	assert.Equal(t, DecisionNeverAllow, m.RememberedDecision("app.a"))

	// Resetting to Ask forgets the entry.
	m.SetRememberedDecision("app.a", DecisionAsk)
	assert.Equal(t, DecisionAsk, m.RememberedDecision("app.a"))
}

package usage

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Compile-time check
var _ Monitor = (*DefaultMonitor)(nil)

// countryRules hold per-country short-code patterns. A destination matching
// Premium (or Standard/Free) gets that category outright; one that merely
// looks like a short code (all digits, at most six of them) is flagged
// possible-premium so the consent gate still runs.
type countryRules struct {
	premium  *regexp.Regexp
	standard *regexp.Regexp
	free     *regexp.Regexp
}

// A small built-in rule set. Real deployments would load carrier-provided
// tables; the shapes below follow the common national numbering plans.
var builtinRules = map[string]countryRules{
	"us": {
		premium:  regexp.MustCompile(`^(?:2[0-9]{4}|9[0-9]{4})$`),
		standard: regexp.MustCompile(`^[0-9]{5,6}$`),
	},
	"gb": {
		premium:  regexp.MustCompile(`^(?:7[0-9]{4}|8[0-9]{4})$`),
		standard: regexp.MustCompile(`^[0-9]{5}$`),
		free:     regexp.MustCompile(`^(?:5[0-9]{4})$`),
	},
	"de": {
		premium:  regexp.MustCompile(`^(?:8[0-9]{4})$`),
		standard: regexp.MustCompile(`^[0-9]{5}$`),
	},
}

var looksLikeShortCode = regexp.MustCompile(`^[0-9]{1,6}$`)

// VolumeConfig bounds per-caller send volume over a sliding refill window.
type VolumeConfig struct {
	MessagesPerSecond float64
	Burst             int
}

// DefaultMonitor implements Monitor with the built-in rule tables, a
// token-bucket volume limiter per caller, and remembered decisions in a
// concurrent map.
type DefaultMonitor struct {
	volume    VolumeConfig
	bucketsMu sync.Mutex
	buckets   map[string]*tokenBucket
	decisions cmap.ConcurrentMap[string, Decision]
}

func NewDefaultMonitor(volume VolumeConfig) *DefaultMonitor {
	if volume.MessagesPerSecond <= 0 {
		volume.MessagesPerSecond = 1
	}
	if volume.Burst <= 0 {
		volume.Burst = 30
	}
	return &DefaultMonitor{
		volume:    volume,
		buckets:   make(map[string]*tokenBucket),
		decisions: cmap.New[Decision](),
	}
}

func (m *DefaultMonitor) ClassifyDestination(dest, countryISO string) Category {
	dest = strings.TrimSpace(dest)
	if !looksLikeShortCode.MatchString(dest) {
		return CategoryNotShortCode
	}

	rules, ok := builtinRules[strings.ToLower(countryISO)]
	if !ok {
		// No table for this country. Short-code-shaped destinations stay
		// suspect so the consent gate still runs.
		slog.Debug("no short code rules for country, flagging possible premium",
			slog.String("country", countryISO), slog.String("dest", dest))
		return CategoryPossiblePremium
	}

	if rules.free != nil && rules.free.MatchString(dest) {
		return CategoryFreeShortCode
	}
	if rules.premium != nil && rules.premium.MatchString(dest) {
		return CategoryPremium
	}
	if rules.standard != nil && rules.standard.MatchString(dest) {
		return CategoryStandardShortCode
	}
	return CategoryPossiblePremium
}

func (m *DefaultMonitor) CheckVolume(caller string, count int) bool {
	m.bucketsMu.Lock()
	bucket, ok := m.buckets[caller]
	if !ok {
		bucket = newTokenBucket(float64(m.volume.Burst), m.volume.MessagesPerSecond)
		m.buckets[caller] = bucket
	}
	m.bucketsMu.Unlock()

	return bucket.take(count)
}

func (m *DefaultMonitor) RememberedDecision(caller string) Decision {
	if d, ok := m.decisions.Get(caller); ok {
		return d
	}
	return DecisionAsk
}

func (m *DefaultMonitor) SetRememberedDecision(caller string, d Decision) {
	if d == DecisionAsk {
		m.decisions.Remove(caller)
		return
	}
	m.decisions.Set(caller, d)
}

type tokenBucket struct {
	capacity   float64
	tokens     float64
	refillRate float64
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(capacity, refillRate float64) *tokenBucket {
	return &tokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *tokenBucket) take(n int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	tb.tokens = min(tb.capacity, tb.tokens+(elapsed.Seconds()*tb.refillRate))
	tb.lastRefill = now

	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true
	}
	return false
}

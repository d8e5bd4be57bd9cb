// Package usage classifies destinations against per-country premium
// short-code rules and tracks per-caller send volume and remembered consent
// decisions.
package usage

// Category is the premium classification of a destination address.
type Category int

const (
	CategoryNotShortCode Category = iota
	CategoryFreeShortCode
	CategoryStandardShortCode
	CategoryPossiblePremium
	CategoryPremium
)

func (c Category) String() string {
	switch c {
	case CategoryNotShortCode:
		return "not_short_code"
	case CategoryFreeShortCode:
		return "free_short_code"
	case CategoryStandardShortCode:
		return "standard_short_code"
	case CategoryPossiblePremium:
		return "possible_premium"
	case CategoryPremium:
		return "premium"
	default:
		return "unknown"
	}
}

// NeedsConfirmation reports whether sends to this category require user
// consent.
func (c Category) NeedsConfirmation() bool {
	return c == CategoryPossiblePremium || c == CategoryPremium
}

// Stricter returns the more restrictive of two classifications. Used when
// SIM and network country rules are both consulted.
func Stricter(a, b Category) Category {
	if b > a {
		return b
	}
	return a
}

// Decision is a caller's remembered premium-consent choice.
type Decision int

const (
	DecisionAsk Decision = iota
	DecisionAlwaysAllow
	DecisionNeverAllow
)

func (d Decision) String() string {
	switch d {
	case DecisionAsk:
		return "ask"
	case DecisionAlwaysAllow:
		return "always_allow"
	case DecisionNeverAllow:
		return "never_allow"
	default:
		return "unknown"
	}
}

// Monitor is the usage-policy boundary consulted by the confirmation gate.
type Monitor interface {
	ClassifyDestination(dest, countryISO string) Category
	CheckVolume(caller string, count int) bool
	RememberedDecision(caller string) Decision
	SetRememberedDecision(caller string, d Decision)
}

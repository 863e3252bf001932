package domain

import "strings"

// Urgency is how soon a product needs replenishment.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

var urgencyRanks = map[Urgency]int{
	UrgencyCritical: 0,
	UrgencyHigh:     1,
	UrgencyMedium:   2,
	UrgencyLow:      3,
}

// Rank orders urgencies from most (0) to least (3) urgent. Unknown values
// sort after low.
func (u Urgency) Rank() int {
	if rank, ok := urgencyRanks[u]; ok {
		return rank
	}
	return len(urgencyRanks)
}

// AtLeast reports whether u is as urgent as min or more.
func (u Urgency) AtLeast(min Urgency) bool {
	return u.Rank() <= min.Rank()
}

// ParseUrgency returns the urgency for a given label (case-insensitive).
func ParseUrgency(label string) (Urgency, bool) {
	u := Urgency(strings.ToLower(strings.TrimSpace(label)))
	_, ok := urgencyRanks[u]
	return u, ok
}

// Horizon is the planning window requested for recommendations.
type Horizon string

const (
	HorizonWeek  Horizon = "week"
	HorizonMonth Horizon = "month"
)

// Days returns the horizon length; anything other than week is a month.
func (h Horizon) Days() int {
	if h == HorizonWeek {
		return 7
	}
	return 30
}

// ParseHorizon accepts "week" or "month" (case-insensitive).
func ParseHorizon(label string) (Horizon, bool) {
	switch Horizon(strings.ToLower(strings.TrimSpace(label))) {
	case HorizonWeek:
		return HorizonWeek, true
	case HorizonMonth:
		return HorizonMonth, true
	}
	return "", false
}

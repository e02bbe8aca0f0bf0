// Package affinity computes the user-companion affinity score, a single
// [0,100] number derived from engagement aggregates and relationship
// state. The computation is pure; reading the inputs and persisting the
// result belong to callers.
package affinity

import "math"

// Component weight caps. Nominal maximum is 110 before the final clamp,
// so no single component can saturate the score alone.
const (
	conversationCap = 30.0
	messageCap      = 20.0
	trustWeight     = 25.0
	intimacyWeight  = 25.0
	timeBonusCap    = 10.0

	conversationsFull = 30.0  // conversations at which the component maxes out
	messagesFull      = 200.0 // messages at which the component maxes out
	activeDaysFull    = 30.0  // active days at which the bonus maxes out
)

// MaxScore is the ceiling of the final score.
const MaxScore = 100

// Metrics are the inputs to the score. Conversations and Messages come
// from relational aggregates; Trust and Intimacy from the relationship
// memory category; ActiveDays from account age.
type Metrics struct {
	Conversations int
	Messages      int
	Trust         int // 0-100
	Intimacy      int // 0-100
	ActiveDays    int
}

// ComputeScore maps metrics to a score in [0, MaxScore]. Each
// engagement component is capped before summation, then the weighted
// sum is rounded and clamped.
func ComputeScore(m Metrics) int {
	conversationScore := math.Min(float64(m.Conversations)/conversationsFull*conversationCap, conversationCap)
	messageScore := math.Min(float64(m.Messages)/messagesFull*messageCap, messageCap)
	trustScore := float64(m.Trust) / 100 * trustWeight
	intimacyScore := float64(m.Intimacy) / 100 * intimacyWeight
	timeBonus := math.Min(float64(m.ActiveDays)/activeDaysFull*timeBonusCap, timeBonusCap)

	score := int(math.Round(conversationScore + messageScore + trustScore + intimacyScore + timeBonus))
	if score > MaxScore {
		score = MaxScore
	}
	return score
}

package enums

import "slices"

// MatchStatus maps to the match_status enum in Postgres.
type MatchStatus string

const (
	MatchStatusProposed  MatchStatus = "proposed"
	MatchStatusPresented MatchStatus = "presented"
	MatchStatusAccepted  MatchStatus = "accepted"
	MatchStatusRejected  MatchStatus = "rejected"
)

var matchStatuses = newSet("match status",
	MatchStatusProposed,
	MatchStatusPresented,
	MatchStatusAccepted,
	MatchStatusRejected,
)

// Accepted and rejected are terminal.
var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchStatusProposed:  {MatchStatusPresented, MatchStatusRejected},
	MatchStatusPresented: {MatchStatusAccepted, MatchStatusRejected},
}

func (s MatchStatus) IsValid() bool { return matchStatuses.has(s) }

// CanTransitionTo reports whether personnel may move a match from s to next.
func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	return slices.Contains(matchTransitions[s], next)
}

func ParseMatchStatus(value string) (MatchStatus, error) { return matchStatuses.parse(value) }

package enums

// ActivityEventType labels entries on a request timeline.
type ActivityEventType string

const (
	ActivityAutoMatch       ActivityEventType = "auto-match"
	ActivityAutoMatchFailed ActivityEventType = "auto-match-failed"
	ActivityMatchError      ActivityEventType = "match-error"
	ActivityMatchPresented  ActivityEventType = "match-presented"
	ActivityMatchAccepted   ActivityEventType = "match-accepted"
	ActivityMatchRejected   ActivityEventType = "match-rejected"
)

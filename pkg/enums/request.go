package enums

import "slices"

// RequestStatus maps to the request_status enum in Postgres.
type RequestStatus string

const (
	RequestStatusOpen       RequestStatus = "open"
	RequestStatusInProgress RequestStatus = "in_progress"
	RequestStatusFulfilled  RequestStatus = "fulfilled"
	RequestStatusCancelled  RequestStatus = "cancelled"
)

var requestStatuses = newSet("request status",
	RequestStatusOpen,
	RequestStatusInProgress,
	RequestStatusFulfilled,
	RequestStatusCancelled,
)

// MatchableRequestStatuses lists the statuses the matching engine works on.
var MatchableRequestStatuses = []RequestStatus{RequestStatusOpen, RequestStatusInProgress}

func (s RequestStatus) IsValid() bool { return requestStatuses.has(s) }

func (s RequestStatus) IsMatchable() bool {
	return slices.Contains(MatchableRequestStatuses, s)
}

func ParseRequestStatus(value string) (RequestStatus, error) { return requestStatuses.parse(value) }

// RequestPriority maps to the request_priority enum in Postgres.
type RequestPriority string

const (
	RequestPriorityLow    RequestPriority = "low"
	RequestPriorityNormal RequestPriority = "normal"
	RequestPriorityHigh   RequestPriority = "high"
	RequestPriorityUrgent RequestPriority = "urgent"
)

var requestPriorities = newSet("request priority",
	RequestPriorityLow,
	RequestPriorityNormal,
	RequestPriorityHigh,
	RequestPriorityUrgent,
)

func (p RequestPriority) IsValid() bool { return requestPriorities.has(p) }

func ParseRequestPriority(value string) (RequestPriority, error) {
	return requestPriorities.parse(value)
}

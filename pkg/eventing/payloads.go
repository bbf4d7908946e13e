package eventing

import "github.com/google/uuid"

// MatchRequested asks for a single request to be re-matched.
type MatchRequested struct {
	RequestID uuid.UUID `json:"requestId"`
	Reason    string    `json:"reason,omitempty"`
}

// CriteriaChanged is published by the request-edit handler after a save that
// touched criteria-bearing fields.
type CriteriaChanged struct {
	RequestID     uuid.UUID `json:"requestId"`
	ChangedFields []string  `json:"changedFields"`
}

type MatchAllRequested struct {
	Reason string `json:"reason,omitempty"`
}

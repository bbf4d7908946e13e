package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/pkg/enums"
)

// Event asks for a notification about a request and, optionally, one of its
// matches. Extra carries template inputs such as counts and scores.
type Event struct {
	Type       enums.NotificationType
	RequestID  uuid.UUID
	MatchID    *uuid.UUID
	Extra      map[string]any
	OccurredAt time.Time
}

// Recipient is the personnel member a notification is addressed to.
type Recipient struct {
	ID       uuid.UUID
	FullName string
	Email    string
}

// RequestView is the read-model of a customer request used for rendering.
type RequestView struct {
	ID           uuid.UUID
	CustomerName string
	Category     enums.PropertyCategory
	SubCategory  string
	Status       enums.RequestStatus
	Priority     enums.RequestPriority
}

// MatchView is the read-model of a match used for rendering.
type MatchView struct {
	ID               uuid.UUID
	PropertyID       uuid.UUID
	PropertyTitle    string
	Score            float64
	Status           enums.MatchStatus
	PersonnelNote    string
	CustomerFeedback string
}

// Views groups everything loaded for one event before rendering.
type Views struct {
	Recipient *Recipient
	Request   RequestView
	Match     *MatchView
}

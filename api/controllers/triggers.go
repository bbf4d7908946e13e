package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/api/validators"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	"github.com/emlakofis/emlak-backend/pkg/eventing"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

const triggerSource = "api"

// TriggerPublisher is implemented by eventing.Publisher.
type TriggerPublisher interface {
	Publish(ctx context.Context, eventType enums.TriggerEventType, actor *eventing.ActorRef, payload any) (uuid.UUID, error)
}

type matchTriggerBody struct {
	Reason        string   `json:"reason" validate:"max=64"`
	ChangedFields []string `json:"changed_fields" validate:"omitempty,max=32,dive,required,max=64"`
}

type matchAllBody struct {
	Reason string `json:"reason" validate:"max=64"`
}

// TriggerRequestMatch publishes a re-match trigger for one request. When the
// caller lists changed criteria fields the trigger is a criteria change, which
// also notifies the assigned agent.
func TriggerRequestMatch(pub TriggerPublisher, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, http.StatusAccepted, func(r *http.Request) (any, error) {
		actor, err := triggerActor(r)
		if err != nil {
			return nil, err
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			return nil, err
		}
		var body matchTriggerBody
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			return nil, err
		}

		if len(body.ChangedFields) > 0 {
			return publish(r.Context(), pub, actor, enums.TriggerCriteriaChanged,
				eventing.CriteriaChanged{RequestID: requestID, ChangedFields: body.ChangedFields})
		}
		return publish(r.Context(), pub, actor, enums.TriggerMatchRequested, eventing.MatchRequested{
			RequestID: requestID,
			Reason:    validators.SanitizeString(body.Reason, 64),
		})
	})
}

func TriggerMatchAll(pub TriggerPublisher, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, http.StatusAccepted, func(r *http.Request) (any, error) {
		actor, err := triggerActor(r)
		if err != nil {
			return nil, err
		}
		var body matchAllBody
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			return nil, err
		}
		return publish(r.Context(), pub, actor, enums.TriggerMatchAllRequested, eventing.MatchAllRequested{
			Reason: validators.SanitizeString(body.Reason, 64),
		})
	})
}

func publish(ctx context.Context, pub TriggerPublisher, actor *eventing.ActorRef, eventType enums.TriggerEventType, payload any) (any, error) {
	eventID, err := pub.Publish(ctx, eventType, actor, payload)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"event_id":   eventID.String(),
		"event_type": eventType.String(),
	}, nil
}

func triggerActor(r *http.Request) (*eventing.ActorRef, error) {
	personnelID, err := personnelFromRequest(r)
	if err != nil {
		return nil, err
	}
	return &eventing.ActorRef{PersonnelID: personnelID, Source: triggerSource}, nil
}

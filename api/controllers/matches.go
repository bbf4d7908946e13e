package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/api/validators"
	"github.com/emlakofis/emlak-backend/pkg/db/models"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

const maxWorkflowTextLength = 2000

// MatchWorkflow is implemented by matching.Actions.
type MatchWorkflow interface {
	ListForRequest(ctx context.Context, requestID uuid.UUID) ([]models.Match, error)
	Present(ctx context.Context, matchID, personnelID uuid.UUID, note string) (*models.Match, error)
	Accept(ctx context.Context, matchID uuid.UUID, feedback string) (*models.Match, error)
	Reject(ctx context.Context, matchID uuid.UUID, feedback string) (*models.Match, error)
}

type presentMatchBody struct {
	Note string `json:"note" validate:"max=4000"`
}

type feedbackBody struct {
	Feedback string `json:"feedback" validate:"max=4000"`
}

// ListRequestMatches returns the active matches of a request, best first.
func ListRequestMatches(svc MatchWorkflow, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, http.StatusOK, func(r *http.Request) (any, error) {
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			return nil, err
		}
		matches, err := svc.ListForRequest(r.Context(), requestID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": matches}, nil
	})
}

func PresentMatch(svc MatchWorkflow, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, http.StatusOK, func(r *http.Request) (any, error) {
		personnelID, err := personnelFromRequest(r)
		if err != nil {
			return nil, err
		}
		var body presentMatchBody
		matchID, err := matchAction(r, &body)
		if err != nil {
			return nil, err
		}
		return svc.Present(r.Context(), matchID, personnelID, validators.SanitizeString(body.Note, maxWorkflowTextLength))
	})
}

func AcceptMatch(svc MatchWorkflow, logg *logger.Logger) http.HandlerFunc {
	return feedbackTransition(logg, svc.Accept)
}

func RejectMatch(svc MatchWorkflow, logg *logger.Logger) http.HandlerFunc {
	return feedbackTransition(logg, svc.Reject)
}

func feedbackTransition(logg *logger.Logger, apply func(context.Context, uuid.UUID, string) (*models.Match, error)) http.HandlerFunc {
	return serve(logg, http.StatusOK, func(r *http.Request) (any, error) {
		if _, err := personnelFromRequest(r); err != nil {
			return nil, err
		}
		var body feedbackBody
		matchID, err := matchAction(r, &body)
		if err != nil {
			return nil, err
		}
		return apply(r.Context(), matchID, validators.SanitizeString(body.Feedback, maxWorkflowTextLength))
	})
}

// matchAction reads the matchId path parameter and the optional body.
func matchAction(r *http.Request, body any) (uuid.UUID, error) {
	matchID, err := validators.ParseUUIDParam(r, "matchId")
	if err != nil {
		return uuid.Nil, err
	}
	if err := validators.DecodeOptionalJSONBody(r, body); err != nil {
		return uuid.Nil, err
	}
	return matchID, nil
}

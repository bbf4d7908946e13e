package controllers

import (
	"net/http"

	"github.com/emlakofis/emlak-backend/api/validators"
	"github.com/emlakofis/emlak-backend/internal/activity"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

// ListRequestActivity returns a page of the request's timeline, newest first.
func ListRequestActivity(svc activity.Service, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, http.StatusOK, func(r *http.Request) (any, error) {
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			return nil, err
		}
		limit, cursor, err := pageQuery(r)
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), activity.ListParams{RequestID: requestID, Limit: limit, Cursor: cursor})
	})
}

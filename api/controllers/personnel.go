package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/api/middleware"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
)

func personnelFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.PersonnelIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "personnel context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid personnel id")
	}
	return id, nil
}

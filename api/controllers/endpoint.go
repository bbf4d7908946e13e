package controllers

import (
	"net/http"
	"strings"

	"github.com/emlakofis/emlak-backend/api/responses"
	"github.com/emlakofis/emlak-backend/api/validators"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

const maxPageSize = 100

// endpoint produces the data for a success envelope or an error to render.
type endpoint func(r *http.Request) (any, error)

func serve(logg *logger.Logger, status int, fn endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fn(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, data)
	}
}

// pageQuery reads the limit and cursor parameters shared by list endpoints.
// A zero limit lets the service apply its default.
func pageQuery(r *http.Request) (limit int, cursor string, err error) {
	limit, err = validators.ParseQueryInt(r, "limit", 0, 1, maxPageSize)
	if err != nil {
		return 0, "", err
	}
	return limit, strings.TrimSpace(r.URL.Query().Get("cursor")), nil
}

package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
)

// queryValue parses the named query parameter, returning fallback when it is
// absent or blank.
func queryValue[T any](r *http.Request, key string, fallback T, parse func(string) (T, error), kind string) (T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := parse(raw)
	if err != nil {
		var zero T
		return zero, pkgerrors.Newf(pkgerrors.CodeValidation, "query parameter %s must be %s", key, kind).
			WithDetails(map[string]any{"field": key})
	}
	return v, nil
}

// ParseQueryInt reads an integer in [min, max].
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	v, err := queryValue(r, key, defaultVal, strconv.Atoi, "numeric")
	if err != nil {
		return 0, err
	}
	if v < min || v > max {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "query parameter %s out of range", key).
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return v, nil
}

func ParseQueryBool(r *http.Request, key string) (bool, error) {
	return queryValue(r, key, false, strconv.ParseBool, "a boolean")
}

// ParseUUIDParam reads a chi path parameter as a UUID.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s is required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, name+" must be a uuid").
			WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

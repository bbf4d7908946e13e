package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emlakofis/emlak-backend/pkg/logger"
)

func TestRequestIDPropagatesCallerValue(t *testing.T) {
	var seen string
	handler := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = chimw.GetReqID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, " abc-123 ")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", resp.Header().Get(requestIDHeader))
}

func TestRequestIDReplacesUnacceptableValues(t *testing.T) {
	for name, incoming := range map[string]string{
		"blank":     "",
		"too long":  strings.Repeat("x", maxRequestIDLength+1),
		"non ascii": "istek-ğ",
		"control":   "a\x01b",
	} {
		var seen string
		handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = chimw.GetReqID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, incoming)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		_, err := uuid.Parse(seen)
		require.NoError(t, err, name)
		assert.Equal(t, seen, resp.Header().Get(requestIDHeader), name)
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	handler := Recoverer(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), "INTERNAL_ERROR")
}

func TestRecovererReraisesAbort(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	cases := []struct {
		code      Code
		status    int
		retryable bool
		details   bool
	}{
		{CodeValidation, http.StatusBadRequest, false, true},
		{CodeUnauthorized, http.StatusUnauthorized, false, false},
		{CodeForbidden, http.StatusForbidden, false, false},
		{CodeNotFound, http.StatusNotFound, false, false},
		{CodeConflict, http.StatusConflict, false, false},
		{CodeStateConflict, http.StatusUnprocessableEntity, false, true},
		{CodeRateLimit, http.StatusTooManyRequests, false, false},
		{CodeInternal, http.StatusInternalServerError, true, false},
		{CodeDependency, http.StatusServiceUnavailable, true, true},
		{CodeNotificationDelivery, http.StatusBadGateway, false, false},
	}
	for _, tc := range cases {
		meta := MetadataFor(tc.code)
		assert.Equal(t, tc.status, meta.HTTPStatus, tc.code)
		assert.Equal(t, tc.retryable, meta.Retryable, tc.code)
		assert.Equal(t, tc.details, meta.DetailsAllowed, tc.code)
		assert.NotEmpty(t, meta.PublicMessage, tc.code)
	}
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestConstructors(t *testing.T) {
	err := Newf(CodeValidation, "score %.2f out of range", 1.5)
	assert.Equal(t, "VALIDATION_ERROR: score 1.50 out of range", err.Error())
	assert.Nil(t, err.Details())
	assert.Equal(t, map[string]any{"field": "score"}, err.WithDetails(map[string]any{"field": "score"}).Details())

	cause := stdErrors.New("connection reset")
	wrapped := Wrap(CodeDependency, cause, "load request")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "load request", wrapped.Message())
	assert.Nil(t, Wrap(CodeInternal, nil, "x").Unwrap())
}

func TestNilReceivers(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Message())
	assert.Empty(t, e.Error())
	assert.Nil(t, e.WithDetails("x"))
	assert.NoError(t, e.Unwrap())
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("actions: %w", New(CodeNotFound, "match not found"))
	assert.ErrorIs(t, err, New(CodeNotFound, ""))
	assert.NotErrorIs(t, err, New(CodeConflict, ""))
}

func TestAsAndHTTPStatus(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeForbidden, "no entry"))
	require.NotNil(t, As(err))
	assert.Equal(t, CodeForbidden, As(err).Code())
	assert.Nil(t, As(nil))
	assert.Nil(t, As(stdErrors.New("plain")))

	assert.Equal(t, http.StatusForbidden, HTTPStatus(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stdErrors.New("plain")))
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
}

func TestIsRetryable(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":               {nil, false},
		"dependency":        {New(CodeDependency, "db down"), true},
		"internal":          {New(CodeInternal, "boom"), true},
		"not found":         {New(CodeNotFound, "missing"), false},
		"deadline":          {fmt.Errorf("attempt: %w", context.DeadlineExceeded), true},
		"canceled":          {context.Canceled, false},
		"wrapped not found": {fmt.Errorf("outer: %w", New(CodeNotFound, "x")), false},
		"plain":             {stdErrors.New("plain"), true},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.want, IsRetryable(tc.err), name)
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("ctx: %w", Wrap(CodeNotificationDelivery, stdErrors.New("smtp"), "email"))
	assert.True(t, IsCode(err, CodeNotificationDelivery))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(nil, CodeInternal))
}

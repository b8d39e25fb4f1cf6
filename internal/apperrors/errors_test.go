package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid", fmt.Errorf("%w: title is required", ErrInvalidInput), http.StatusBadRequest},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("%w: not the author", ErrForbidden), http.StatusForbidden},
		{"not found", fmt.Errorf("post abc: %w", ErrNotFound), http.StatusNotFound},
		{"unavailable", fmt.Errorf("%w: image storage", ErrUnavailable), http.StatusServiceUnavailable},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestPublicMessageHidesInternalDetail(t *testing.T) {
	assert.Equal(t, "internal server error", PublicMessage(errors.New("mongo: socket closed")))
	assert.Equal(t, "forbidden: not the author", PublicMessage(fmt.Errorf("%w: not the author", ErrForbidden)))
}

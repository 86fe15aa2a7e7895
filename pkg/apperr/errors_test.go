package apperr

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
		{"invalid", Invalid("missing file"), http.StatusBadRequest},
		{"not found", NotFound("template not found"), http.StatusNotFound},
		{"upstream", Upstream("docusign", errors.New("boom")), http.StatusBadGateway},
		{"database", Database("insert failed", errors.New("locked")), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("handler: %w", Invalid("x")), http.StatusBadRequest},
		{"plain", errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestPublic(t *testing.T) {
	code, msg := Public(Upstream("docusign", errors.New("ENVELOPE_IS_INCOMPLETE")))
	assert.Equal(t, "UPSTREAM_ERROR", code)
	assert.Contains(t, msg, "ENVELOPE_IS_INCOMPLETE")

	code, msg = Public(errors.New("secret detail"))
	assert.Equal(t, "INTERNAL_ERROR", code)
	assert.NotContains(t, msg, "secret")
}

func TestUnwrapKeepsCause(t *testing.T) {
	root := errors.New("connection refused")
	err := Upstream("smtp", root)
	assert.True(t, errors.Is(err, root))
	assert.True(t, errors.Is(err, ErrUpstream))
}

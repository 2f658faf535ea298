package errors_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

func TestHTTPStatusForCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code errors.ErrorCode
		want int
	}{
		{errors.ErrCodeBadRequest, http.StatusBadRequest},
		{errors.ErrCodeProductNotFound, http.StatusNotFound},
		{errors.ErrCodeValidation, http.StatusUnprocessableEntity},
		{errors.ErrCodeConfiguration, http.StatusInternalServerError},
		{errors.ErrCodeBatchTimeout, http.StatusGatewayTimeout},
		{errors.ErrorCode("NOPE_999"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, errors.HTTPStatusForCode(tc.code), tc.code.String())
	}
}

func TestEveryCodeHasStatusAndMessage(t *testing.T) {
	t.Parallel()

	for code := range errors.ErrorCodeHTTPStatus {
		_, ok := errors.ErrorCodeMessage[code]
		assert.True(t, ok, "missing message for %s", code)
	}
	for code := range errors.ErrorCodeMessage {
		_, ok := errors.ErrorCodeHTTPStatus[code]
		assert.True(t, ok, "missing status for %s", code)
	}
}

func TestClientServerClassification(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsClientError(errors.ErrCodeEmptyBatch))
	assert.False(t, errors.IsServerError(errors.ErrCodeEmptyBatch))
	assert.True(t, errors.IsServerError(errors.ErrCodePipelineStage))
	assert.Equal(t, "unknown error", errors.DefaultMessageForCode("X"))
	assert.Equal(t, "product not found", errors.DefaultMessageForCode(errors.ErrCodeProductNotFound))
}

func TestModuleForCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CAT", errors.ModuleForCode(errors.ErrCodeCatalogInvalid))
	assert.Equal(t, "REC", errors.ModuleForCode(errors.ErrCodePipelineStage))
	assert.Equal(t, "COMMON", errors.ModuleForCode(errors.ErrCodeInternal))
	assert.Equal(t, "UNKNOWN", errors.ModuleForCode(errors.CodeOK))
}

package error

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodedError_WrapsCause(t *testing.T) {
	cause := errors.New("timeout")
	var err error = &CodedError{Code: "GATEWAY_SEND_FAILURE", Status: http.StatusBadGateway, Message: "send failed", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "send failed: timeout", err.Error())

	var ge GenericError
	assert.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusBadGateway, ge.StatusCode())
}

func TestStringErrors(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFoundError("x").StatusCode())
	assert.Equal(t, "VALIDATION_ERROR", ValidationError("x").ErrCode())
	assert.Equal(t, http.StatusInternalServerError, InternalServerError("x").StatusCode())
}

package handler_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"policonv/internal/domain"
	"policonv/internal/handler"
)

func TestMapDomainError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("%w: filename is required", domain.ErrValidation), http.StatusBadRequest, "VALIDATION_FAILED"},
		{domain.ErrUnknownField, http.StatusBadRequest, "UNKNOWN_FIELD"},
		{domain.ErrJobNotMappable, http.StatusConflict, "JOB_NOT_MAPPABLE"},
		{domain.ErrUnsupportedFileType, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE"},
		{domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{domain.ErrUploadFailed, http.StatusInternalServerError, "UPLOAD_FAILED"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		status, code, msg := handler.MapDomainError(tc.err)
		assert.Equal(t, tc.status, status, tc.code)
		assert.Equal(t, tc.code, code)
		assert.NotEmpty(t, msg)
	}
}

func TestMapDomainError_ValidationMessagePassesThrough(t *testing.T) {
	err := fmt.Errorf("%w: either file content or extracted pages must be provided", domain.ErrValidation)
	_, _, msg := handler.MapDomainError(err)
	assert.Contains(t, msg, "either file content or extracted pages")
}

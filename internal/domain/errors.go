package domain

import "errors"

var (
	ErrNotFound            = errors.New("resource not found")
	ErrValidation          = errors.New("validation failed")
	ErrUnknownField        = errors.New("unknown canonical field")
	ErrJobNotMappable      = errors.New("job is not in a mappable state")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrUploadFailed        = errors.New("file upload to storage failed")
)

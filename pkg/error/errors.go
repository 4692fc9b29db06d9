package error

import "net/http"

// GenericError is implemented by every error that knows how it should be
// rendered in the REST response envelope.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}

type ValidationError string

func (err ValidationError) Error() string {
	return string(err)
}

func (err ValidationError) ErrCode() string {
	return "VALIDATION_ERROR"
}

func (err ValidationError) StatusCode() int {
	return http.StatusBadRequest
}

type InternalServerError string

func (err InternalServerError) Error() string {
	return string(err)
}

func (err InternalServerError) ErrCode() string {
	return "INTERNAL_SERVER_ERROR"
}

func (err InternalServerError) StatusCode() int {
	return http.StatusInternalServerError
}

// CodedError is a GenericError with an explicit code and status, used by
// domain packages for their typed failures.
type CodedError struct {
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *CodedError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CodedError) ErrCode() string { return e.Code }

func (e *CodedError) StatusCode() int { return e.Status }

func (e *CodedError) Unwrap() error { return e.Err }

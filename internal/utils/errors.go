package utils

import (
	"errors"
	"ms-checkout/internal/models"
	"net/http"
)

// StatusCoder is an error that knows its own HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

type publicMessager interface {
	PublicMessage() string
}

// StatusFor maps domain errors to HTTP status codes. Unknown errors are 500.
func StatusFor(err error) int {
	var sc StatusCoder
	var ve *models.ValidationError
	var nf *models.NotFoundError
	switch {
	case errors.As(err, &sc):
		return sc.HTTPStatus()
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// WriteServiceError writes err with the mapped status. Internal errors are not echoed to the client.
func WriteServiceError(w http.ResponseWriter, message string, err error) int {
	status := StatusFor(err)
	detail := err.Error()
	var pm publicMessager
	if errors.As(err, &pm) {
		detail = pm.PublicMessage()
	}
	if status >= http.StatusInternalServerError {
		if pm == nil {
			detail = http.StatusText(status)
		}
	}
	WriteError(w, status, message, detail)
	return status
}

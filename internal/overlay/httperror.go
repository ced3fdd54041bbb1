package overlay

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
)

// HTTPError is an error rendered as a JSON body with a status code.
type HTTPError struct {
	error
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *HTTPError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Code)
	return nil
}

func notFound(message string) *HTTPError {
	return &HTTPError{error: errors.New(message), Code: http.StatusNotFound, Message: message}
}

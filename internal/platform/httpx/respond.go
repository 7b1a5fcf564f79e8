// Package httpx provides HTTP response utilities around the API envelope.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/shared"
)

// Envelope is the response body shared by every API endpoint.
type Envelope struct {
	Success bool    `json:"success"`
	Message *string `json:"message"`
	Data    any     `json:"data"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Success writes a success envelope carrying data.
func Success(w http.ResponseWriter, status int, message string, data any) {
	env := Envelope{Success: true, Data: data}
	if message != "" {
		env.Message = &message
	}
	JSON(w, status, env)
}

// Fail writes a failure envelope with no data.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Message: &message})
}

var errEmptyBody = fmt.Errorf("%w: request body required", shared.ErrValidation)

// DecodeJSON decodes JSON request body into the target struct. Unknown fields
// and malformed payloads are validation errors.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return nil
}

// DecodeOptionalJSON is DecodeJSON for endpoints whose body may be omitted.
// An empty body leaves target untouched.
func DecodeOptionalJSON(r *http.Request, target any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	err := DecodeJSON(r, target)
	if err != nil && r.ContentLength < 0 && errors.Is(err, errEmptyBody) {
		return nil
	}
	return err
}

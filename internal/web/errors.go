package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
)

// StatusError is an error carrying the HTTP status it should be rendered with
type StatusError struct {
	Status int
	Err    error
}

// NewStatusError wraps err with an HTTP status
func NewStatusError(status int, err error) *StatusError {
	return &StatusError{Status: status, Err: err}
}

func (e *StatusError) Error() string {
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusOf returns the HTTP status for err, 500 when it carries none
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return http.StatusInternalServerError
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

type slotKey struct{}

type errorSlot struct {
	mu       sync.Mutex
	err      error
	rendered bool
}

// ErrorScope gives each request a slot that Fail records errors into.
// Errors nobody rendered are written as JSON once the chain returns.
func ErrorScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slot := &errorSlot{}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		r = r.WithContext(context.WithValue(r.Context(), slotKey{}, slot))

		next.ServeHTTP(ww, r)

		if err := Err(r); err != nil && ww.Status() == 0 && !Rendered(r) {
			WriteError(ww, err)
		}
	})
}

func slotFrom(r *http.Request) *errorSlot {
	slot, _ := r.Context().Value(slotKey{}).(*errorSlot)
	return slot
}

// Fail records err for the error handler. The first error wins.
// It reports false when the request has no error scope.
func Fail(r *http.Request, err error) bool {
	slot := slotFrom(r)
	if slot == nil || err == nil {
		return false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.err == nil {
		slot.err = err
	}
	return true
}

// Err returns the error recorded for the request, if any
func Err(r *http.Request) error {
	slot := slotFrom(r)
	if slot == nil {
		return nil
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.err
}

// MarkRendered notes that the recorded error has been written to the client
func MarkRendered(r *http.Request) {
	if slot := slotFrom(r); slot != nil {
		slot.mu.Lock()
		slot.rendered = true
		slot.mu.Unlock()
	}
}

// Rendered reports whether the recorded error was already written
func Rendered(r *http.Request) bool {
	slot := slotFrom(r)
	if slot == nil {
		return false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.rendered
}

// Error hands err to the error handler, or writes it directly when the
// request is not running inside an error scope.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	if Fail(r, err) {
		return
	}
	WriteError(w, err)
}

// WriteError writes err as an ErrorResponse
func WriteError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	WriteJSON(w, status, ErrorResponse{Error: err.Error(), Code: status})
}

// WriteJSON writes v as a JSON body with status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// The status code has already been sent, nothing left to do
		return
	}
}

// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dalemusser/joinlink/internal/app/rollover"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ErrBadRequest marks input that could not be parsed.
var ErrBadRequest = stderrors.New("bad request")

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Message writes {"error": msg} with the given status.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, errorBody{Error: msg})
}

// NotFound is the router's fallback for unknown paths.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Message(w, http.StatusNotFound, "not found")
}

// MethodNotAllowed is the router's fallback for known paths with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Message(w, http.StatusMethodNotAllowed, "method not allowed")
}

// ErrorLogger maps service errors to HTTP responses and logs the ones that
// are not the caller's fault.
type ErrorLogger struct {
	log *zap.Logger
}

func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case stderrors.Is(err, ErrBadRequest),
		stderrors.Is(err, rollover.ErrInvalidTarget),
		stderrors.Is(err, rollover.ErrInvalidCount),
		stderrors.Is(err, rollover.ErrInvalidSlug):
		return http.StatusBadRequest
	case stderrors.Is(err, rollover.ErrUnauthenticated):
		return http.StatusUnauthorized
	case stderrors.Is(err, rollover.ErrPlanLimit),
		stderrors.Is(err, rollover.ErrNotOwner):
		return http.StatusForbidden
	case stderrors.Is(err, rollover.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, rollover.ErrSlugTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Write responds with the status for err. Client errors carry their message;
// server errors are logged and answered with a generic one.
func (e *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	switch status {
	case http.StatusInternalServerError:
		e.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		Message(w, status, "internal error")
	case http.StatusForbidden:
		if stderrors.Is(err, rollover.ErrNotOwner) {
			Message(w, status, "forbidden")
			return
		}
		Message(w, status, err.Error())
	case http.StatusNotFound:
		Message(w, status, "not found")
	default:
		Message(w, status, err.Error())
	}
}

// Decode reads a JSON body of at most maxBytes into dst.
func Decode(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if stderrors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// ObjectIDParam parses the named chi URL parameter as an ObjectID. A
// malformed id reads as not found.
func ObjectIDParam(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, rollover.ErrNotFound
	}
	return id, nil
}

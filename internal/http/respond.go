package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

const maxBodyBytes = 1 << 20

// errorBody is the shape of every error response.
type errorBody struct {
	Message string            `json:"message"`
	Errors  []core.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Message: msg})
}

// writeError maps err onto a status code. Unclassified errors are logged
// and reported as a bare 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: ve.Message, Errors: ve.Fields})
	case errors.Is(err, services.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, core.ErrUnauthenticated):
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, core.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Not found")
	default:
		ctx := r.Context()
		s.logger.ErrorContext(ctx, "Request failed",
			log.FieldRequestID, trace.GetRequestID(ctx),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeInternal)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields
// and bodies over maxBodyBytes. It writes the error response itself and
// reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err == nil {
		if dec.Decode(&struct{}{}) != io.EOF {
			writeMessage(w, http.StatusBadRequest, "Request body must contain a single JSON object")
			return false
		}
		return true
	}

	var (
		maxErr  *http.MaxBytesError
		typeErr *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &maxErr):
		writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
	case errors.Is(err, io.EOF):
		writeMessage(w, http.StatusBadRequest, "Request body is required")
	case errors.As(err, &typeErr):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Message: "Validation failed",
			Errors:  []core.FieldError{{Field: typeErr.Field, Message: "Invalid value"}},
		})
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		writeJSON(w, http.StatusBadRequest, errorBody{
			Message: "Validation failed",
			Errors:  []core.FieldError{{Field: field, Message: "Unknown field"}},
		})
	default:
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
	}
	return false
}

// methods dispatches on r.Method and answers anything else with 405.
func methods(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	allowed := make([]string, 0, len(handlers))
	for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete} {
		if _, ok := handlers[m]; ok {
			allowed = append(allowed, m)
		}
	}
	allow := strings.Join(allowed, ", ")

	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.Method]; ok {
			h(w, r)
			return
		}
		w.Header().Set("Allow", allow)
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

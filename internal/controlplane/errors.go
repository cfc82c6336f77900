package controlplane

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flagforge/flagforge/internal/model"
)

// errorResponse is the wire shape for every error crossing the HTTP
// boundary: one line, no internal cause leaked.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps an error to a status code and writes the flat error
// envelope. Unrecognised errors (driver failures, programmer mistakes)
// are logged by the caller and reported as a generic 500 here - their
// detail never reaches the wire.
func writeError(w http.ResponseWriter, err error) {
	status, message := classify(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}

func classify(err error) (int, string) {
	var me *model.Error
	if errors.As(err, &me) {
		switch me.Kind {
		case model.ErrKindValidation:
			return http.StatusBadRequest, me.Message
		case model.ErrKindNotFound:
			return http.StatusNotFound, me.Message
		case model.ErrKindConflict:
			return http.StatusConflict, me.Message
		case model.ErrKindCrossEnvironment:
			return http.StatusBadRequest, me.Message
		case model.ErrKindIllegalTransition:
			return http.StatusUnprocessableEntity, me.Message
		case model.ErrKindPublish:
			return http.StatusInternalServerError, me.Message
		case model.ErrKindConfigUnavailable:
			return http.StatusServiceUnavailable, me.Message
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package decisionapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flagforge/flagforge/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

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

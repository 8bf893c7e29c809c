package handler

import (
	"strings"

	"nexushq/internal/dispute/models"
	dErrors "nexushq/pkg/domain-errors"
)

// TransitionRequest is the body of POST /api/disputes/{id}/transition.
type TransitionRequest struct {
	Status     string `json:"status"`
	Resolution string `json:"resolution"`

	status models.Status
}

func (r *TransitionRequest) Validate() error {
	if strings.TrimSpace(r.Status) == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	status, err := models.ParseStatus(r.Status)
	if err != nil {
		return err
	}
	r.status = status
	r.Resolution = strings.TrimSpace(r.Resolution)
	return nil
}

package handler

import (
	"strings"

	dErrors "scorevc/pkg/domain-errors"
)

// LinkRequest is the body of POST /score/link and POST /score/refresh.
type LinkRequest struct {
	Signature string `json:"signature"`
	Address   string `json:"address"`
}

// Validate implements httputil.Validatable. Format checks beyond presence
// belong to the service so the error codes stay specific.
func (r *LinkRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Signature = strings.TrimSpace(r.Signature)
	r.Address = strings.TrimSpace(r.Address)
	if r.Address == "" {
		return dErrors.New(dErrors.CodeValidation, "address is required")
	}
	if r.Signature == "" {
		return dErrors.New(dErrors.CodeValidation, "signature is required")
	}
	return nil
}

package handler

import (
	"strings"

	"scorevc/internal/vc/models"
	dErrors "scorevc/pkg/domain-errors"
)

// PrepareRequest is the body of POST /vc/prepare.
type PrepareRequest struct {
	models.PrepareRequest
}

func (r *PrepareRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.SignedIDAlias.CredentialJWS = strings.TrimSpace(r.SignedIDAlias.CredentialJWS)
	if r.SignedIDAlias.CredentialJWS == "" {
		return dErrors.New(dErrors.CodeValidation, "signed_id_alias is required")
	}
	return nil
}

// GetCredentialRequest is the body of POST /vc/credential. An empty
// prepared_context is left for the service to reject.
type GetCredentialRequest struct {
	models.GetCredentialRequest
}

func (r *GetCredentialRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.SignedIDAlias.CredentialJWS = strings.TrimSpace(r.SignedIDAlias.CredentialJWS)
	r.PreparedContext = strings.TrimSpace(r.PreparedContext)
	if r.SignedIDAlias.CredentialJWS == "" {
		return dErrors.New(dErrors.CodeValidation, "signed_id_alias is required")
	}
	return nil
}

// ConsentMessageRequest is the body of POST /vc/consent-message.
type ConsentMessageRequest struct {
	models.ConsentMessageRequest
}

func (r *ConsentMessageRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Preferences.Language = strings.TrimSpace(r.Preferences.Language)
	return nil
}

// DerivationOriginRequest is the body of POST /vc/derivation-origin.
type DerivationOriginRequest struct {
	models.DerivationOriginRequest
}

func (r *DerivationOriginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}

// ReplaceAssetsRequest is the body of PUT /admin/assets. Bodies are base64.
type ReplaceAssetsRequest struct {
	models.ReplaceAssetsRequest
}

func (r *ReplaceAssetsRequest) Validate() error {
	if r == nil || r.Assets == nil {
		return dErrors.New(dErrors.CodeValidation, "assets is required")
	}
	for p := range r.Assets {
		if strings.TrimSpace(p) == "" {
			return dErrors.New(dErrors.CodeValidation, "asset paths must not be empty")
		}
	}
	return nil
}

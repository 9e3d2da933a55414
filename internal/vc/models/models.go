package models

import "scorevc/internal/vc"

// PrepareRequest starts issuance.
type PrepareRequest struct {
	SignedIDAlias  vc.SignedIDAlias  `json:"signed_id_alias"`
	CredentialSpec vc.CredentialSpec `json:"credential_spec"`
}

// GetCredentialRequest completes issuance. PreparedContext is the token
// returned by prepare.
type GetCredentialRequest struct {
	SignedIDAlias   vc.SignedIDAlias  `json:"signed_id_alias"`
	CredentialSpec  vc.CredentialSpec `json:"credential_spec"`
	PreparedContext string            `json:"prepared_context"`
}

// ConsentPreferences carries the holder's language preference.
type ConsentPreferences struct {
	Language string `json:"language"`
}

type ConsentMessageRequest struct {
	CredentialSpec vc.CredentialSpec  `json:"credential_spec"`
	Preferences    ConsentPreferences `json:"preferences"`
}

type DerivationOriginRequest struct {
	FrontendHostname string `json:"frontend_hostname"`
}

// PreparedCredential is the opaque continuation of a prepared issuance.
type PreparedCredential struct {
	PreparedContext string `json:"prepared_context"`
}

// IssuedCredential is the signed credential as a compact JWS.
type IssuedCredential struct {
	VCJWS string `json:"vc_jws"`
}

type DerivationOrigin struct {
	Origin string `json:"origin"`
}

// CertifiedRoot is the state root clients poll before fetching.
type CertifiedRoot struct {
	RootHash    string `json:"root_hash"`
	Certificate []byte `json:"certificate"`
}

// ReplaceAssetsRequest maps asset paths to their bodies.
type ReplaceAssetsRequest struct {
	Assets map[string][]byte `json:"assets"`
}

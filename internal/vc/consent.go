package vc

import (
	"fmt"

	"scorevc/internal/platform/config"
	dErrors "scorevc/pkg/domain-errors"
)

// ConsentLanguage is the language tag of every consent message.
const ConsentLanguage = "en"

const consentTemplate = "<h1>Gitcoin Passport Score</h1><br/>Minimum Score: %d<br/><br/>" +
	"Sharing the credential DOES NOT mean revealing your exact Passport Score, " +
	"Ethereum address or other personal information."

// ConsentInfo is the disclosure shown to the holder before issuance.
type ConsentInfo struct {
	ConsentMessage string `json:"consent_message"`
	Language       string `json:"language"`
}

// ConsentMessage renders the disclosure for spec. Only en-US is supported.
func ConsentMessage(spec CredentialSpec, language string) (ConsentInfo, error) {
	minScore, err := ValidateSpec(spec)
	if err != nil {
		return ConsentInfo{}, err
	}
	if language != config.SupportedConsentLang {
		return ConsentInfo{}, dErrors.New(dErrors.CodeUnsupportedLanguage,
			fmt.Sprintf("language %q is not supported", language))
	}
	return ConsentInfo{
		ConsentMessage: fmt.Sprintf(consentTemplate, minScore),
		Language:       ConsentLanguage,
	}, nil
}

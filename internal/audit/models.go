package audit

import (
	"context"
	"time"
)

// Action names a state change worth recording.
type Action string

const (
	ActionAddressLinked      Action = "address_linked"
	ActionScoreRefreshed     Action = "score_refreshed"
	ActionCredentialPrepared Action = "credential_prepared"
	ActionCredentialFetched  Action = "credential_fetched"
	ActionAssetsRecertified  Action = "assets_recertified"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// Principal is the caller's textual principal. External addresses never
// appear in events; only the privacy hash prefix in Detail.
type Event struct {
	Action      Action            `json:"action"`
	Principal   string            `json:"principal"`
	Timestamp   time.Time         `json:"timestamp"`
	RequestID   string            `json:"request_id,omitempty"`
	ClientAgent string            `json:"client_agent,omitempty"`
	Detail      map[string]string `json:"detail,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

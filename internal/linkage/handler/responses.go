package handler

import (
	"time"

	"scorevc/internal/linkage/models"
)

// ScoreResponse is returned by every score endpoint.
type ScoreResponse struct {
	Score     float64    `json:"score"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func fromResult(r models.ScoreResult) ScoreResponse {
	resp := ScoreResponse{Score: r.Score}
	if !r.UpdatedAt.IsZero() {
		t := r.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

// LinkMessageResponse carries the challenge text a wallet must sign.
type LinkMessageResponse struct {
	Message string `json:"message"`
}

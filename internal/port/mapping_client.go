package port

import (
	"context"
	"encoding/json"

	"policonv/internal/canonical"
)

// MappingRequest carries the deterministic skeleton and the serialized
// extraction payload for the enrichment model.
type MappingRequest struct {
	Deterministic *canonical.Bundle
	Payload       json.RawMessage
}

// MappingResponse contains the model's bundle and trace material.
type MappingResponse struct {
	Bundle      *canonical.Bundle
	RawResponse string
	ModelUsed   string
}

// MappingClient abstracts the LLM gap-filling pass over a deterministic
// bundle. Implementations must not mutate the request's bundle.
type MappingClient interface {
	GenerateBundle(ctx context.Context, req MappingRequest) (*MappingResponse, error)
}

// Package renderer hands credential payloads to the out-of-band
// renderer/object-store collaborator. Producing the scannable image itself is
// that collaborator's job; this package encodes the payload, stores it, and
// returns the stored-resource locator that accompanies the pass.
package renderer

import (
	"context"
	"fmt"
	"path"

	"gatepass/internal/guestpass/credential"
	"gatepass/internal/guestpass/models"
)

// ObjectStore is the object storage collaborator (S3 in production).
type ObjectStore interface {
	// Put stores body under key and returns the resource locator.
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// Renderer encodes payloads and stores them under
// guestPasses/{projectId}/{passId}.
type Renderer struct {
	objects ObjectStore
	prefix  string
}

func New(objects ObjectStore) (*Renderer, error) {
	if objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	return &Renderer{objects: objects, prefix: "guestPasses"}, nil
}

func (r *Renderer) Render(ctx context.Context, payload models.CredentialPayload) (string, error) {
	data, err := credential.Encode(payload)
	if err != nil {
		return "", fmt.Errorf("encode credential payload: %w", err)
	}
	key := path.Join(r.prefix, payload.ProjectID, payload.PassID+".json")
	locator, err := r.objects.Put(ctx, key, "application/json", data)
	if err != nil {
		return "", fmt.Errorf("store credential: %w", err)
	}
	return locator, nil
}

package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// EncoderClient implements port.ImageEncoder against an /api/embed endpoint
// that accepts base64 images as input.
type EncoderClient struct {
	client
}

// NewEncoderClient creates an image embedding client.
func NewEncoderClient(cfg EndpointConfig) *EncoderClient {
	return &EncoderClient{client: newClient(cfg)}
}

// ModelName returns the embedding model identifier.
func (e *EncoderClient) ModelName() string {
	return e.cfg.Model
}

// EncodeImage returns the raw embedding for one encoded image.
func (e *EncoderClient) EncodeImage(ctx context.Context, image []byte) ([]float64, error) {
	payload := map[string]interface{}{
		"model": e.cfg.Model,
		"input": []string{base64.StdEncoding.EncodeToString(image)},
	}

	body, err := e.post(ctx, "/api/embed", payload)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", e.cfg.Model, err)
	}

	var resp struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("embed %s decode: %w", e.cfg.Model, err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("embed %s: empty response", e.cfg.Model)
	}

	return resp.Embeddings[0], nil
}

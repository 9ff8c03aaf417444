package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/arturoeanton/go-product-lens/internal/domain"
)

// DetectorClient implements port.Detector against an /api/detect endpoint
// serving an open-vocabulary detector.
type DetectorClient struct {
	client
}

// NewDetectorClient creates a detection client.
func NewDetectorClient(cfg EndpointConfig) *DetectorClient {
	return &DetectorClient{client: newClient(cfg)}
}

// ModelName returns the detection model identifier.
func (d *DetectorClient) ModelName() string {
	return d.cfg.Model
}

type detection struct {
	Box        [4]float64 `json:"box"` // x1, y1, x2, y2
	Confidence float64    `json:"confidence"`
	Label      string     `json:"label"`
}

// Detect returns all detections for the image conditioned on labels.
func (d *DetectorClient) Detect(ctx context.Context, image []byte, labels []string) ([]domain.BoundingBox, error) {
	payload := map[string]interface{}{
		"model":  d.cfg.Model,
		"image":  base64.StdEncoding.EncodeToString(image),
		"labels": labels,
	}

	body, err := d.post(ctx, "/api/detect", payload)
	if err != nil {
		return nil, fmt.Errorf("detect %s: %w", d.cfg.Model, err)
	}

	var resp struct {
		Detections []detection `json:"detections"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("detect %s decode: %w", d.cfg.Model, err)
	}

	boxes := make([]domain.BoundingBox, len(resp.Detections))
	for i, det := range resp.Detections {
		boxes[i] = domain.BoundingBox{
			X1:         det.Box[0],
			Y1:         det.Box[1],
			X2:         det.Box[2],
			Y2:         det.Box[3],
			Confidence: det.Confidence,
			Label:      det.Label,
		}
	}
	return boxes, nil
}

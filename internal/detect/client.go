// Package detect is the glue to the external vehicle-detection service.
// The model itself is an external collaborator: this package only posts
// camera frames, reads back predictions and commits per-road demand to the
// store.
package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultConfidence = 0.5
	defaultOverlap    = 0.5
)

// Prediction is one detected object.
type Prediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// Result is the service's answer for one frame.
type Result struct {
	Predictions []Prediction
	DurationMS  int64
}

// Detector is the interface to a vehicle-detection backend.
type Detector interface {
	Detect(ctx context.Context, imageB64 string) (*Result, error)
	Name() string
}

// HTTPDetector calls a hosted detection model over HTTP. The frame travels
// as a base64 body; thresholds go in the query string.
type HTTPDetector struct {
	client     *http.Client
	apiKey     string
	endpoint   string
	confidence float64
	overlap    float64
}

// NewHTTPDetector creates a detector for the given model endpoint.
func NewHTTPDetector(apiKey, endpoint string) (*HTTPDetector, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("detect: apiKey is required")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("detect: endpoint is required")
	}
	return &HTTPDetector{
		client:     &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		endpoint:   endpoint,
		confidence: defaultConfidence,
		overlap:    defaultOverlap,
	}, nil
}

// Name returns the detector name.
func (d *HTTPDetector) Name() string { return "http" }

type detectionResponse struct {
	Predictions []Prediction `json:"predictions"`
	Error       *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Detect posts one frame and returns the predictions.
func (d *HTTPDetector) Detect(ctx context.Context, imageB64 string) (*Result, error) {
	q := url.Values{}
	q.Set("api_key", d.apiKey)
	q.Set("confidence", strconv.FormatFloat(d.confidence, 'f', 2, 64))
	q.Set("overlap", strconv.FormatFloat(d.overlap, 'f', 2, 64))

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.endpoint+"?"+q.Encode(), strings.NewReader(imageB64))
	if err != nil {
		return nil, fmt.Errorf("detect: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect: http: %w", err)
	}
	defer resp.Body.Close()
	durationMS := time.Since(start).Milliseconds()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("detect: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detect: service returned %d", resp.StatusCode)
	}

	var dr detectionResponse
	if err := json.Unmarshal(raw, &dr); err != nil {
		return nil, fmt.Errorf("detect: unmarshal: %w", err)
	}
	if dr.Error != nil {
		return nil, fmt.Errorf("detect: service error: %s", dr.Error.Message)
	}

	return &Result{Predictions: dr.Predictions, DurationMS: durationMS}, nil
}
